package store

import (
	"strings"
	"testing"

	"pagetree-cli/internal/model"
)

func TestNewIDs_PrefixAndLength(t *testing.T) {
	t.Parallel()

	for prefix, gen := range map[string]func() string{"node": NewNodeID, "page": NewPageID} {
		id := gen()
		suffix, ok := strings.CutPrefix(id, prefix+"-")
		if !ok {
			t.Fatalf("expected %s prefix, got %q", prefix, id)
		}
		if len(suffix) != 8 {
			t.Fatalf("expected 8 char suffix, got %q", id)
		}
	}
}

func TestNewUniqueNodeID_AvoidsExisting(t *testing.T) {
	t.Parallel()

	db := &DB{}
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		id := NewUniqueNodeID(db)
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
		db.Nodes = append(db.Nodes, model.Node{ID: id, PageID: "p"})
	}
}
