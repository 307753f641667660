package store

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestSnapshot_IsIndependent(t *testing.T) {
	t.Parallel()

	db := seedDB()
	snap := db.Snapshot()

	sec, _ := db.FindNode("sec")
	sec.Properties["padding"] = "0"
	sec.Properties["style"].(map[string]any)["dark"] = false
	hd, _ := db.FindNode("hd")
	*hd.ParentID = "elsewhere"
	db.RemoveNodes(map[string]bool{"tx": true})

	if snap.Nodes[0].Properties["padding"] != "2rem" {
		t.Fatalf("snapshot shares property map with live db")
	}
	if snap.Nodes[0].Properties["style"].(map[string]any)["dark"] != true {
		t.Fatalf("snapshot shares nested property map with live db")
	}
	if *snap.Nodes[1].ParentID != "sec" {
		t.Fatalf("snapshot shares parent pointer with live db")
	}
	if len(snap.Nodes) != 3 {
		t.Fatalf("snapshot lost nodes after live removal")
	}
}

func TestRestore_ReplacesCollectionAndStaysReusable(t *testing.T) {
	t.Parallel()

	db := seedDB()
	snap := db.Snapshot()
	db.RemoveNodes(map[string]bool{"sec": true, "hd": true, "tx": true})

	db.Restore(snap)
	if !reflect.DeepEqual(db.Snapshot(), snap) {
		t.Fatalf("restore did not reproduce snapshot")
	}

	sec, _ := db.FindNode("sec")
	sec.Properties["padding"] = "9px"
	if snap.Nodes[0].Properties["padding"] != "2rem" {
		t.Fatalf("mutating restored db leaked into snapshot")
	}

	other := &DB{}
	other.Restore(snap)
	if !reflect.DeepEqual(other.Snapshot(), snap) {
		t.Fatalf("second restore from same snapshot differs")
	}
}

func TestSiblings_SortedByOrder(t *testing.T) {
	t.Parallel()

	db := seedDB()
	db.Nodes[1].Order, db.Nodes[2].Order = 5, 1
	got := ids(db.Siblings("page-a", strPtr("sec")))
	if want := []string{"tx", "hd"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if got := ids(db.Siblings("page-a", nil)); !reflect.DeepEqual(got, []string{"sec"}) {
		t.Fatalf("roots: got %v", got)
	}
	if got := db.Siblings("other-page", nil); len(got) != 0 {
		t.Fatalf("expected no siblings on other page, got %v", ids(got))
	}
	if got := ids(db.ChildrenOf("sec")); len(got) != 2 {
		t.Fatalf("ChildrenOf: got %v", got)
	}
}

func TestRemoveNodes(t *testing.T) {
	t.Parallel()

	db := seedDB()
	if n := db.RemoveNodes(map[string]bool{"hd": true, "nope": true}); n != 1 {
		t.Fatalf("expected 1 removed, got %d", n)
	}
	if _, ok := db.FindNode("hd"); ok {
		t.Fatalf("hd still present")
	}
	if len(db.Nodes) != 2 {
		t.Fatalf("expected 2 nodes left, got %d", len(db.Nodes))
	}
}

func TestDiscoverDir_WalksUp(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, dirName), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	got, ok := DiscoverDir(nested)
	if !ok || got != filepath.Join(root, dirName) {
		t.Fatalf("got %q ok=%v", got, ok)
	}
}

func TestNewUniqueNodeID(t *testing.T) {
	t.Parallel()

	db := seedDB()
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id := NewUniqueNodeID(db)
		if !strings.HasPrefix(id, "node-") || len(id) != len("node-")+8 {
			t.Fatalf("unexpected id shape %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}
