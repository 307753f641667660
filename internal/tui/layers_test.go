package tui

import (
	"io"
	"reflect"
	"strings"
	"testing"

	"pagetree-cli/internal/editor"
	"pagetree-cli/internal/model"
	"pagetree-cli/internal/mutate"
	"pagetree-cli/internal/store"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
)

func strPtr(s string) *string { return &s }

// Page layout:
//
//	A (section)
//	  a1 (text "hello")
//	  a2 (heading)
//	B (section)
//	C (text)
func newTestModel(t *testing.T) (layerModel, *editor.Editor) {
	t.Helper()
	db := &store.DB{
		Version: 1,
		Pages:   []model.Page{{ID: "page-1", Name: "Home"}},
		Nodes: []model.Node{
			{ID: "A", PageID: "page-1", Order: 0, DefinitionID: "section"},
			{ID: "B", PageID: "page-1", Order: 1, DefinitionID: "section"},
			{ID: "C", PageID: "page-1", Order: 2, DefinitionID: "text"},
			{ID: "a1", PageID: "page-1", ParentID: strPtr("A"), Order: 0, DefinitionID: "text", Label: strPtr("hello")},
			{ID: "a2", PageID: "page-1", ParentID: strPtr("A"), Order: 1, DefinitionID: "heading"},
		},
	}
	ed := editor.New(db, editor.Options{Logger: log.New(io.Discard)})
	t.Cleanup(ed.Close)
	return newLayerModel(ed, "page-1"), ed
}

func press(m layerModel, keys ...string) layerModel {
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "tab":
			msg = tea.KeyMsg{Type: tea.KeyTab}
		case "shift+tab":
			msg = tea.KeyMsg{Type: tea.KeyShiftTab}
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		next, _ := m.Update(msg)
		m = next.(layerModel)
	}
	return m
}

func visibleIDs(m layerModel) []string {
	var out []string
	for _, r := range m.rows {
		out = append(out, r.Node.ID)
	}
	return out
}

func childIDs(ed *editor.Editor, parentID *string) []string {
	var out []string
	for _, n := range ed.Siblings("page-1", parentID) {
		out = append(out, n.ID)
	}
	return out
}

func TestLayerModel_RowsAndFold(t *testing.T) {
	t.Parallel()

	m, _ := newTestModel(t)
	if got, want := visibleIDs(m), []string{"A", "a1", "a2", "B", "C"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("rows: got %v want %v", got, want)
	}
	m = press(m, "enter")
	if got, want := visibleIDs(m), []string{"A", "B", "C"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("folded rows: got %v want %v", got, want)
	}
	if !strings.Contains(m.View(), "▸ section") {
		t.Fatalf("expected collapsed marker in view:\n%s", m.View())
	}
}

func TestLayerModel_MoveIndentOutdent(t *testing.T) {
	t.Parallel()

	m, ed := newTestModel(t)

	// Select C and move it up twice: B, then A.
	m = press(m, "j", "j", "j", "j", "K", "K")
	if got, want := childIDs(ed, nil), []string{"C", "A", "B"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("roots: got %v want %v", got, want)
	}
	if m.selectedID() != "C" {
		t.Fatalf("cursor should follow the moved node, on %q", m.selectedID())
	}

	// C has no previous sibling; select B and indent it into A.
	m = press(m, "j", "j", "j", "j", "tab")
	if m.err != nil {
		t.Fatalf("indent: %v", m.err)
	}
	if got, want := childIDs(ed, strPtr("A")), []string{"a1", "a2", "B"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("A children: got %v want %v", got, want)
	}

	// Outdent puts B right after A again.
	m = press(m, "shift+tab")
	if got, want := childIDs(ed, nil), []string{"C", "A", "B"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("roots after outdent: got %v want %v", got, want)
	}
}

func TestLayerModel_IndentIntoLeafIsRejected(t *testing.T) {
	t.Parallel()

	m, ed := newTestModel(t)
	before := ed.Snapshot()
	m = press(m, "j", "j", "tab") // a2 into a1 (text)
	if mutate.CodeOf(m.err) != mutate.CodeInvalidTarget {
		t.Fatalf("expected INVALID_TARGET, got %v", m.err)
	}
	if !reflect.DeepEqual(before, ed.Snapshot()) {
		t.Fatalf("rejected indent changed the store")
	}
	if len(m.history) != 0 {
		t.Fatalf("rejected op must not leave an undo point")
	}
}

func TestLayerModel_FilteredMoveUsesFullGroup(t *testing.T) {
	t.Parallel()

	m, ed := newTestModel(t)
	m = press(m, "/", "h", "e", "l", "l", "o", "enter")
	if got, want := visibleIDs(m), []string{"A", "a1"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("filtered rows: got %v want %v", got, want)
	}
	// a1 is the only visible child of A, but moving it down must land after a2.
	m = press(m, "j", "J")
	if got, want := childIDs(ed, strPtr("A")), []string{"a2", "a1"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("A children: got %v want %v", got, want)
	}
	m = press(m, "esc")
	if len(visibleIDs(m)) != 5 {
		t.Fatalf("esc should clear the filter, rows %v", visibleIDs(m))
	}
}

func TestLayerModel_LockDuplicateRemoveUndo(t *testing.T) {
	t.Parallel()

	m, ed := newTestModel(t)
	start := ed.Snapshot()

	m = press(m, "l")
	if n, _ := ed.Node("A"); !n.Locked {
		t.Fatalf("expected A locked")
	}
	m = press(m, "x")
	if mutate.CodeOf(m.err) != mutate.CodeLocked {
		t.Fatalf("expected LOCKED on remove, got %v", m.err)
	}

	m = press(m, "j", "d")
	if len(childIDs(ed, strPtr("A"))) != 3 {
		t.Fatalf("expected duplicate of a1 under A")
	}
	dup := m.selectedID()
	if dup == "a1" || dup == "" {
		t.Fatalf("cursor should be on the duplicate, got %q", dup)
	}
	m = press(m, "x")
	if _, ok := ed.Node(dup); ok {
		t.Fatalf("expected duplicate removed")
	}

	m = press(m, "u", "u", "u")
	if !reflect.DeepEqual(start, ed.Snapshot()) {
		t.Fatalf("undo did not restore the starting state")
	}
	m = press(m, "u")
	if m.status != "nothing to undo" {
		t.Fatalf("unexpected status %q", m.status)
	}
}
