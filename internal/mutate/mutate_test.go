package mutate

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"pagetree-cli/internal/model"
	"pagetree-cli/internal/registry"
	"pagetree-cli/internal/store"
)

func strPtr(s string) *string { return &s }

func testRegistry() registry.Registry {
	return registry.NewStatic(registry.Builtin()...)
}

func emptyPage() *store.DB {
	return &store.DB{
		Version: 1,
		Pages:   []model.Page{{ID: "page-1", Name: "Home"}},
		Nodes:   []model.Node{},
	}
}

// roots A, B, C (sections), B has children b1 (text), b2 (heading).
func seeded() *store.DB {
	db := emptyPage()
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	db.Nodes = []model.Node{
		{ID: "A", PageID: "page-1", Order: 0, DefinitionID: "section", CreatedAt: ts},
		{ID: "B", PageID: "page-1", Order: 1, DefinitionID: "section", CreatedAt: ts},
		{ID: "C", PageID: "page-1", Order: 2, DefinitionID: "section", CreatedAt: ts},
		{ID: "b1", PageID: "page-1", ParentID: strPtr("B"), Order: 0, DefinitionID: "text", CreatedAt: ts,
			Properties: map[string]any{"text": "one"}},
		{ID: "b2", PageID: "page-1", ParentID: strPtr("B"), Order: 1, DefinitionID: "heading", CreatedAt: ts},
	}
	return db
}

func groupIDs(db *store.DB, parentID *string) []string {
	var out []string
	for _, n := range db.Siblings("page-1", parentID) {
		out = append(out, n.ID)
	}
	return out
}

// assertInvariants checks order totality, parent existence and acyclicity.
func assertInvariants(t *testing.T, db *store.DB, reg registry.Registry) {
	t.Helper()
	groups := map[string][]int{}
	byID := map[string]model.Node{}
	for _, n := range db.Nodes {
		groups[n.PageID+"/"+n.ParentKey()] = append(groups[n.PageID+"/"+n.ParentKey()], n.Order)
		byID[n.ID] = n
	}
	for key, orders := range groups {
		seen := make([]bool, len(orders))
		for _, o := range orders {
			if o < 0 || o >= len(orders) || seen[o] {
				t.Fatalf("group %s is not 0..n-1: %v", key, orders)
			}
			seen[o] = true
		}
	}
	for _, n := range db.Nodes {
		if n.ParentID != nil {
			p, ok := byID[*n.ParentID]
			if !ok {
				t.Fatalf("node %s has dangling parent %s", n.ID, *n.ParentID)
			}
			if p.PageID != n.PageID || !registry.AcceptsChildren(reg, p.DefinitionID) {
				t.Fatalf("node %s has invalid parent %s", n.ID, p.ID)
			}
		}
		seen := map[string]bool{n.ID: true}
		cur := n
		for cur.ParentID != nil {
			if seen[*cur.ParentID] {
				t.Fatalf("cycle through %s", n.ID)
			}
			seen[*cur.ParentID] = true
			cur = byID[*cur.ParentID]
		}
	}
}

func TestInsert_IntoEmptyPage(t *testing.T) {
	t.Parallel()

	db := emptyPage()
	res, err := Insert(db, testRegistry(), model.Node{ID: "A", PageID: "page-1", DefinitionID: "section"}, AppendToRoot())
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if res.Node.Order != 0 || res.Node.ParentID != nil {
		t.Fatalf("expected A at root order 0, got %+v", res.Node)
	}
	if len(db.Nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(db.Nodes))
	}
}

func TestInsert_Positions(t *testing.T) {
	t.Parallel()

	reg := testRegistry()

	db := seeded()
	res, err := Insert(db, reg, model.Node{PageID: "page-1", DefinitionID: "button"}, AppendTo("B"))
	if err != nil {
		t.Fatalf("append to parent: %v", err)
	}
	if res.Node.ID == "" || res.Node.Order != 2 || *res.Node.ParentID != "B" {
		t.Fatalf("unexpected node: %+v", res.Node)
	}

	db = seeded()
	res, err = Insert(db, reg, model.Node{ID: "X", PageID: "page-1", DefinitionID: "text"}, At(strPtr("B"), 1))
	if err != nil {
		t.Fatalf("insert at index: %v", err)
	}
	if got, want := groupIDs(db, strPtr("B")), []string{"b1", "X", "b2"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if res.OrderByID["b2"] != 2 {
		t.Fatalf("expected b2 shifted to 2, got %v", res.OrderByID)
	}
	assertInvariants(t, db, reg)
}

func TestInsert_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		node model.Node
		pos  Position
		code Code
	}{
		{name: "missing page", node: model.Node{PageID: "nope", DefinitionID: "text"}, pos: AppendToRoot(), code: CodeNotFound},
		{name: "unknown definition", node: model.Node{PageID: "page-1", DefinitionID: "widget"}, pos: AppendToRoot(), code: CodeNotFound},
		{name: "missing parent", node: model.Node{PageID: "page-1", DefinitionID: "text"}, pos: AppendTo("ghost"), code: CodeInvalidTarget},
		{name: "parent not container", node: model.Node{PageID: "page-1", DefinitionID: "text"}, pos: AppendTo("b1"), code: CodeInvalidTarget},
		{name: "id in use", node: model.Node{ID: "A", PageID: "page-1", DefinitionID: "text"}, pos: AppendToRoot(), code: CodeInvalidTarget},
		{name: "undeclared property", node: model.Node{PageID: "page-1", DefinitionID: "text", Properties: map[string]any{"href": "/"}}, pos: AppendToRoot(), code: CodeInvalidProperty},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			db := seeded()
			before := db.Snapshot()
			_, err := Insert(db, testRegistry(), tt.node, tt.pos)
			if got := CodeOf(err); got != tt.code {
				t.Fatalf("expected %s, got %s (%v)", tt.code, got, err)
			}
			if !reflect.DeepEqual(before, db.Snapshot()) {
				t.Fatalf("rejected insert mutated the store")
			}
		})
	}
}

func TestMove_SiblingReorder(t *testing.T) {
	t.Parallel()

	db := seeded()
	res, err := Move(db, testRegistry(), "C", nil, 0)
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if got, want := groupIDs(db, nil), []string{"C", "A", "B"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for id, want := range map[string]int{"C": 0, "A": 1, "B": 2} {
		n, _ := db.FindNode(id)
		if n.Order != want {
			t.Fatalf("%s: order %d want %d", id, n.Order, want)
		}
	}
	if !res.Changed || res.Node.ID != "C" {
		t.Fatalf("unexpected result: %+v", res)
	}
	assertInvariants(t, db, testRegistry())
}

func TestMove_ReparentIntoContainer(t *testing.T) {
	t.Parallel()

	db := emptyPage()
	db.Nodes = []model.Node{
		{ID: "A", PageID: "page-1", Order: 0, DefinitionID: "text"},
		{ID: "B", PageID: "page-1", Order: 1, DefinitionID: "section"},
	}
	res, err := Move(db, testRegistry(), "A", strPtr("B"), 0)
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	a, _ := db.FindNode("A")
	b, _ := db.FindNode("B")
	if a.ParentID == nil || *a.ParentID != "B" || a.Order != 0 {
		t.Fatalf("unexpected A: %+v", a)
	}
	if b.Order != 0 {
		t.Fatalf("expected B's group renormalized, B.order=%d", b.Order)
	}
	if res.OrderByID["B"] != 0 {
		t.Fatalf("expected B in side-effect orders: %v", res.OrderByID)
	}
	assertInvariants(t, db, testRegistry())
}

func TestMove_CrossLevel(t *testing.T) {
	t.Parallel()

	db := seeded()
	if _, err := Move(db, testRegistry(), "b1", nil, 1); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if got, want := groupIDs(db, nil), []string{"A", "b1", "B", "C"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("roots: got %v want %v", got, want)
	}
	if got, want := groupIDs(db, strPtr("B")), []string{"b2"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("B children: got %v want %v", got, want)
	}
	assertInvariants(t, db, testRegistry())
}

func TestMove_NoOp(t *testing.T) {
	t.Parallel()

	db := seeded()
	before := db.Snapshot()
	res, err := Move(db, testRegistry(), "B", nil, 1)
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if res.Changed {
		t.Fatalf("expected no change")
	}
	if !reflect.DeepEqual(before, db.Snapshot()) {
		t.Fatalf("no-op move mutated the store")
	}
}

func TestMove_RejectionsAreSideEffectFree(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		setup  func(db *store.DB)
		id     string
		parent *string
		code   Code
	}{
		{name: "unknown node", id: "ghost", code: CodeNotFound},
		{name: "cycle into child", id: "B", parent: strPtr("b1"), code: CodeInvalidTarget},
		{name: "cycle into descendant container", setup: func(db *store.DB) {
			db.Nodes = append(db.Nodes, model.Node{ID: "inner", PageID: "page-1", ParentID: strPtr("B"), Order: 2, DefinitionID: "row"})
		}, id: "B", parent: strPtr("inner"), code: CodeCycleDetected},
		{name: "self parent", id: "B", parent: strPtr("B"), code: CodeInvalidTarget},
		{name: "missing parent", id: "A", parent: strPtr("ghost"), code: CodeInvalidTarget},
		{name: "not a container", id: "A", parent: strPtr("b2"), code: CodeInvalidTarget},
		{name: "other page", setup: func(db *store.DB) {
			db.Pages = append(db.Pages, model.Page{ID: "page-2"})
			db.Nodes = append(db.Nodes, model.Node{ID: "P2", PageID: "page-2", DefinitionID: "section"})
		}, id: "A", parent: strPtr("P2"), code: CodeInvalidTarget},
		{name: "locked node", setup: func(db *store.DB) {
			n, _ := db.FindNode("A")
			n.Locked = true
		}, id: "A", code: CodeLocked},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			db := seeded()
			if tt.setup != nil {
				tt.setup(db)
			}
			before := db.Snapshot()
			_, err := Move(db, testRegistry(), tt.id, tt.parent, 0)
			if got := CodeOf(err); got != tt.code {
				t.Fatalf("expected %s, got %s (%v)", tt.code, got, err)
			}
			if !reflect.DeepEqual(before, db.Snapshot()) {
				t.Fatalf("rejected move mutated the store")
			}
		})
	}
}

func TestMove_CycleDetectedThroughChild(t *testing.T) {
	t.Parallel()

	// A is a child of B, both containers: move(B, A) must fail with CycleDetected.
	db := emptyPage()
	db.Nodes = []model.Node{
		{ID: "B", PageID: "page-1", Order: 0, DefinitionID: "section"},
		{ID: "A", PageID: "page-1", ParentID: strPtr("B"), Order: 0, DefinitionID: "container"},
	}
	before := db.Snapshot()
	_, err := Move(db, testRegistry(), "B", strPtr("A"), 0)
	var cyc CycleError
	if !errors.As(err, &cyc) {
		t.Fatalf("expected CycleError, got %v", err)
	}
	if !reflect.DeepEqual(before, db.Snapshot()) {
		t.Fatalf("store changed")
	}
}

func TestLockedNode_StructureRejectedFlagsAllowed(t *testing.T) {
	t.Parallel()

	db := seeded()
	if _, err := SetLocked(db, "A", true); err != nil {
		t.Fatalf("lock: %v", err)
	}
	before := db.Snapshot()
	if _, err := Move(db, testRegistry(), "A", nil, 0); CodeOf(err) != CodeLocked {
		t.Fatalf("expected Locked, got %v", err)
	}
	if _, err := Remove(db, "A", RemoveCascade); CodeOf(err) != CodeLocked {
		t.Fatalf("expected Locked on remove, got %v", err)
	}
	if !reflect.DeepEqual(before, db.Snapshot()) {
		t.Fatalf("store changed")
	}

	hidden := true
	res, err := Update(db, testRegistry(), "A", Patch{Hidden: &hidden})
	if err != nil {
		t.Fatalf("update on locked node: %v", err)
	}
	if !res.Changed || !res.Node.Hidden || !res.Node.Locked {
		t.Fatalf("unexpected result: %+v", res.Node)
	}
	if _, err := SetLocked(db, "A", false); err != nil {
		t.Fatalf("unlock: %v", err)
	}
}

func TestRemove_Policies(t *testing.T) {
	t.Parallel()

	reg := testRegistry()

	t.Run("reject with children", func(t *testing.T) {
		t.Parallel()
		db := seeded()
		before := db.Snapshot()
		_, err := Remove(db, "B", RemoveReject)
		var hc HasChildrenError
		if !errors.As(err, &hc) || hc.Count != 2 {
			t.Fatalf("expected HasChildrenError{2}, got %v", err)
		}
		if !reflect.DeepEqual(before, db.Snapshot()) {
			t.Fatalf("store changed")
		}
	})

	t.Run("reject leaf", func(t *testing.T) {
		t.Parallel()
		db := seeded()
		res, err := Remove(db, "A", RemoveReject)
		if err != nil {
			t.Fatalf("Remove: %v", err)
		}
		if got, want := groupIDs(db, nil), []string{"B", "C"}; !reflect.DeepEqual(got, want) {
			t.Fatalf("got %v want %v", got, want)
		}
		if !reflect.DeepEqual(res.RemovedIDs, []string{"A"}) {
			t.Fatalf("removed: %v", res.RemovedIDs)
		}
		assertInvariants(t, db, reg)
	})

	t.Run("cascade", func(t *testing.T) {
		t.Parallel()
		db := seeded()
		res, err := Remove(db, "B", RemoveCascade)
		if err != nil {
			t.Fatalf("Remove: %v", err)
		}
		if len(db.Nodes) != 2 {
			t.Fatalf("expected 2 nodes left, got %d", len(db.Nodes))
		}
		if want := []string{"B", "b1", "b2"}; !reflect.DeepEqual(res.RemovedIDs, want) {
			t.Fatalf("removed: got %v want %v", res.RemovedIDs, want)
		}
		assertInvariants(t, db, reg)
	})

	t.Run("cascade blocked by locked descendant", func(t *testing.T) {
		t.Parallel()
		db := seeded()
		n, _ := db.FindNode("b2")
		n.Locked = true
		before := db.Snapshot()
		_, err := Remove(db, "B", RemoveCascade)
		var le LockedError
		if !errors.As(err, &le) || le.NodeID != "b2" {
			t.Fatalf("expected LockedError{b2}, got %v", err)
		}
		if !reflect.DeepEqual(before, db.Snapshot()) {
			t.Fatalf("store changed")
		}
	})

	t.Run("promote", func(t *testing.T) {
		t.Parallel()
		db := seeded()
		res, err := Remove(db, "B", RemovePromote)
		if err != nil {
			t.Fatalf("Remove: %v", err)
		}
		if got, want := groupIDs(db, nil), []string{"A", "b1", "b2", "C"}; !reflect.DeepEqual(got, want) {
			t.Fatalf("got %v want %v", got, want)
		}
		if !reflect.DeepEqual(res.PromotedIDs, []string{"b1", "b2"}) {
			t.Fatalf("promoted: %v", res.PromotedIDs)
		}
		if _, ok := res.OrderByID["b1"]; !ok {
			t.Fatalf("expected promoted child in order changes: %v", res.OrderByID)
		}
		assertInvariants(t, db, reg)
	})

	t.Run("unknown", func(t *testing.T) {
		t.Parallel()
		if _, err := Remove(seeded(), "ghost", RemoveCascade); CodeOf(err) != CodeNotFound {
			t.Fatalf("expected NotFound, got %v", err)
		}
	})
}

func TestUpdate(t *testing.T) {
	t.Parallel()

	db := seeded()
	reg := testRegistry()
	label := "Intro"
	res, err := Update(db, reg, "b1", Patch{Properties: map[string]any{"text": "two"}, Label: &label})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !res.Changed || res.Node.Properties["text"] != "two" || res.Node.DisplayName() != "Intro" {
		t.Fatalf("unexpected node: %+v", res.Node)
	}

	res, err = Update(db, reg, "b1", Patch{Properties: map[string]any{"text": "two"}})
	if err != nil || res.Changed {
		t.Fatalf("expected no-op update, changed=%v err=%v", res.Changed, err)
	}

	res, err = Update(db, reg, "b1", Patch{Properties: map[string]any{"text": nil}})
	if err != nil {
		t.Fatalf("delete property: %v", err)
	}
	if _, ok := res.Node.Properties["text"]; ok {
		t.Fatalf("expected text deleted")
	}

	before := db.Snapshot()
	if _, err := Update(db, reg, "b1", Patch{Properties: map[string]any{"href": "/x"}}); CodeOf(err) != CodeInvalidProperty {
		t.Fatalf("expected InvalidProperty, got %v", err)
	}
	if !reflect.DeepEqual(before, db.Snapshot()) {
		t.Fatalf("rejected update mutated the store")
	}

	if _, err := Update(db, reg, "ghost", Patch{}); CodeOf(err) != CodeNotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}

	n, _ := db.FindNode("b1")
	if n.ParentID == nil || *n.ParentID != "B" || n.Order != 0 {
		t.Fatalf("update touched placement: %+v", n)
	}
}

func TestDuplicate(t *testing.T) {
	t.Parallel()

	db := seeded()
	n, _ := db.FindNode("b1")
	n.Locked = true
	n.Properties["style"] = map[string]any{"bold": true}

	res, err := Duplicate(db, "b1", DuplicateOpts{})
	if err != nil {
		t.Fatalf("Duplicate: %v", err)
	}
	dup := res.Node
	if dup.ID == "b1" || dup.Order != 2 || dup.ParentID == nil || *dup.ParentID != "B" {
		t.Fatalf("unexpected duplicate: %+v", dup)
	}
	if dup.Locked {
		t.Fatalf("duplicate should be unlocked by default")
	}

	live, _ := db.FindNode(dup.ID)
	live.Properties["style"].(map[string]any)["bold"] = false
	live.Properties["text"] = "changed"
	orig, _ := db.FindNode("b1")
	if orig.Properties["text"] != "one" || orig.Properties["style"].(map[string]any)["bold"] != true {
		t.Fatalf("duplicate shares properties with original: %+v", orig.Properties)
	}
	orig.Properties["text"] = "original changed"
	live, _ = db.FindNode(dup.ID)
	if live.Properties["text"] != "changed" {
		t.Fatalf("original shares properties with duplicate")
	}

	res, err = Duplicate(db, "b1", DuplicateOpts{InheritLock: true})
	if err != nil {
		t.Fatalf("Duplicate: %v", err)
	}
	if !res.Node.Locked || res.Node.Order != 3 {
		t.Fatalf("expected locked copy at order 3, got %+v", res.Node)
	}
	assertInvariants(t, db, testRegistry())

	if _, err := Duplicate(db, "ghost", DuplicateOpts{}); CodeOf(err) != CodeNotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestRandomOperationSequenceKeepsInvariants(t *testing.T) {
	t.Parallel()

	db := seeded()
	reg := testRegistry()
	ops := []func() error{
		func() error { _, err := Move(db, reg, "A", strPtr("C"), 0); return err },
		func() error { _, err := Move(db, reg, "b2", strPtr("A"), 5); return err },
		func() error { _, err := Duplicate(db, "B", DuplicateOpts{}); return err },
		func() error { _, err := Move(db, reg, "C", strPtr("B"), 1); return err },
		func() error { _, err := Remove(db, "B", RemovePromote); return err },
		func() error {
			_, err := Insert(db, reg, model.Node{PageID: "page-1", DefinitionID: "row"}, At(nil, 0))
			return err
		},
		func() error { _, err := Move(db, reg, "b1", nil, 100); return err },
		func() error { _, err := Remove(db, "C", RemoveCascade); return err },
	}
	for i, op := range ops {
		if err := op(); err != nil {
			t.Fatalf("op %d: %v", i, err)
		}
		assertInvariants(t, db, reg)
	}
}

func TestCodeOf(t *testing.T) {
	t.Parallel()

	if CodeOf(nil) != "" {
		t.Fatalf("nil error has no code")
	}
	if CodeOf(errors.New("boom")) != CodeInternal {
		t.Fatalf("plain errors map to internal")
	}
	wrapped := errors.Join(errors.New("ctx"), LockedError{NodeID: "x"})
	if CodeOf(wrapped) != CodeLocked {
		t.Fatalf("expected code through wrapping")
	}
}

func TestParseRemovePolicy(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]RemovePolicy{
		"cascade":          RemoveCascade,
		" Promote ":        RemovePromote,
		"promote-children": RemovePromote,
		"":                 RemoveReject,
	} {
		got, err := ParseRemovePolicy(in)
		if err != nil || got != want {
			t.Fatalf("ParseRemovePolicy(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseRemovePolicy("explode"); err == nil {
		t.Fatalf("expected error")
	}
}
