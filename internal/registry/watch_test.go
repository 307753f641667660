package registry

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pagetree-cli/internal/model"

	"github.com/charmbracelet/log"
)

func TestWatch_ReloadsOnWrite(t *testing.T) {
	t.Parallel()

	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("EvalSymlinks: %v", err)
	}
	path := filepath.Join(dir, "components.toml")
	// Replace the file atomically so the watcher never sees a truncated intermediate.
	write := func(body string) {
		t.Helper()
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := os.Rename(tmp, path); err != nil {
			t.Fatalf("rename: %v", err)
		}
	}
	write("[[component]]\nid = \"grid\"\nname = \"Grid\"\naccepts_children = true\n")

	reg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := reg.Watch(ctx, path, log.New(io.Discard), nil); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	write("[[component]]\nid = \"grid\"\nname = \"Grid\"\naccepts_children = true\n\n[[component]]\nid = \"badge\"\nname = \"Badge\"\n")
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, ok := reg.Definition("badge"); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("registry was not reloaded")
		}
		time.Sleep(20 * time.Millisecond)
	}

	write("[[component]\n")
	time.Sleep(200 * time.Millisecond)
	if _, ok := reg.Definition("badge"); !ok {
		t.Fatalf("a broken file must keep the previous definitions")
	}
}

func TestWatch_CheckRejectsIncompatibleSet(t *testing.T) {
	t.Parallel()

	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("EvalSymlinks: %v", err)
	}
	path := filepath.Join(dir, "components.toml")
	write := func(body string) {
		t.Helper()
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := os.Rename(tmp, path); err != nil {
			t.Fatalf("rename: %v", err)
		}
	}
	write("[[component]]\nid = \"grid\"\nname = \"Grid\"\naccepts_children = true\n")

	reg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	// A placed grid has children, so grid must keep accepting them.
	check := func(defs []model.Definition) error {
		for _, d := range defs {
			if d.ID == "grid" && d.AcceptsChildren {
				return nil
			}
		}
		return errors.New("grid has children")
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := reg.Watch(ctx, path, log.New(io.Discard), check); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	write("[[component]]\nid = \"grid\"\nname = \"Grid\"\n\n[[component]]\nid = \"badge\"\nname = \"Badge\"\n")
	time.Sleep(300 * time.Millisecond)
	if _, ok := reg.Definition("badge"); ok {
		t.Fatalf("a rejected set must not be applied")
	}
	if !AcceptsChildren(reg, "grid") {
		t.Fatalf("grid must keep accepting children")
	}

	write("[[component]]\nid = \"grid\"\nname = \"Grid\"\naccepts_children = true\n\n[[component]]\nid = \"badge\"\nname = \"Badge\"\n")
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, ok := reg.Definition("badge"); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("compatible set was not applied")
		}
		time.Sleep(20 * time.Millisecond)
	}
}
