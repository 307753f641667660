// Package order computes sibling order values for insert, reorder and move operations.
//
// Every function is pure: it reads the sibling slices it is given and returns the order
// assignments a caller should apply. Nothing here touches a store.
package order

import (
	"errors"
	"sort"
	"strings"

	"pagetree-cli/internal/model"
)

// Sort sorts siblings in place by order, then CreatedAt, then ID.
func Sort(sibs []*model.Node) {
	sort.SliceStable(sibs, func(i, j int) bool { return Compare(*sibs[i], *sibs[j]) < 0 })
}

// Compare is the canonical sibling ordering. Equal orders only occur mid-mutation or in
// hand-edited data; the CreatedAt/ID tie-break keeps the result stable either way.
func Compare(a, b model.Node) int {
	if a.Order != b.Order {
		if a.Order < b.Order {
			return -1
		}
		return 1
	}
	if a.CreatedAt.Before(b.CreatedAt) {
		return -1
	}
	if a.CreatedAt.After(b.CreatedAt) {
		return 1
	}
	return strings.Compare(a.ID, b.ID)
}

// NextOrder returns max(order)+1 over sibs, or 0 for an empty group.
func NextOrder(sibs []*model.Node) int {
	next := 0
	for _, n := range sibs {
		if n == nil {
			continue
		}
		if n.Order+1 > next {
			next = n.Order + 1
		}
	}
	return next
}

// Normalize returns the order changes that turn sibs into the contiguous sequence 0..n-1
// while keeping their current relative order. Only entries whose order changes are
// returned, so normalizing an already-normalized group yields an empty map.
func Normalize(sibs []*model.Node) map[string]int {
	cur := append([]*model.Node{}, sibs...)
	Sort(cur)
	return assign(cur, map[string]int{})
}

// IsNormalized reports whether sibs hold exactly the orders 0..n-1.
func IsNormalized(sibs []*model.Node) bool {
	seen := make([]bool, len(sibs))
	for _, n := range sibs {
		if n.Order < 0 || n.Order >= len(sibs) || seen[n.Order] {
			return false
		}
		seen[n.Order] = true
	}
	return true
}

// IndexOf returns the position of id within sibs, or -1.
func IndexOf(sibs []*model.Node, id string) int {
	for i, n := range sibs {
		if n != nil && n.ID == id {
			return i
		}
	}
	return -1
}

// Without returns sibs minus the node with the given id, preserving order.
func Without(sibs []*model.Node, id string) []*model.Node {
	out := make([]*model.Node, 0, len(sibs))
	for _, n := range sibs {
		if n != nil && n.ID != id {
			out = append(out, n)
		}
	}
	return out
}

// AppendIndex is the insertion index that places a node after every existing sibling
// in group (the moved node itself is ignored if it is already there).
func AppendIndex(group []*model.Node, movedID string) int {
	return len(Without(group, movedID))
}

// AfterIndex is the insertion index immediately after refID, computed in the group with
// the moved node removed. It returns -1 when refID is not in the group.
func AfterIndex(group []*model.Node, refID, movedID string) int {
	rest := Without(group, movedID)
	Sort(rest)
	i := IndexOf(rest, refID)
	if i < 0 {
		return -1
	}
	return i + 1
}

// Plan is the outcome of PlanMove: the moved node's new placement and every order change
// needed to leave both affected sibling groups contiguous.
type Plan struct {
	NodeID        string
	FromParentID  *string
	ToParentID    *string
	Index         int
	ParentChanged bool

	// OrderByID includes only nodes whose order changes (the moved node included).
	OrderByID map[string]int
}

// Changed reports whether applying the plan alters anything.
func (p Plan) Changed() bool {
	return p.ParentChanged || len(p.OrderByID) > 0
}

// PlanMove plans move(nodeID, toParent, index).
//
// from is the moved node's current sibling group (it must contain the node); to is the
// destination group. When the parent does not change, to is ignored and the node is
// reordered within from. index is the position in the destination group after the moved
// node has been removed from it; it is clamped to [0, len].
func PlanMove(from, to []*model.Node, movedID string, toParent *string, index int) (Plan, error) {
	movedID = strings.TrimSpace(movedID)
	if movedID == "" {
		return Plan{}, errors.New("missing moved node id")
	}

	src := append([]*model.Node{}, from...)
	Sort(src)
	movedIdx := IndexOf(src, movedID)
	if movedIdx < 0 {
		return Plan{}, errors.New("moved node not found in its sibling group")
	}
	moved := src[movedIdx]

	plan := Plan{
		NodeID:       movedID,
		FromParentID: moved.ParentID,
		ToParentID:   toParent,
		OrderByID:    map[string]int{},
	}
	rest := Without(src, movedID)

	if model.SameParent(moved.ParentID, toParent) {
		index = clamp(index, len(rest))
		plan.Index = index
		final := insertAt(rest, moved, index)
		assign(final, plan.OrderByID)
		return plan, nil
	}

	plan.ParentChanged = true
	dst := Without(to, movedID)
	Sort(dst)
	index = clamp(index, len(dst))
	plan.Index = index

	assign(rest, plan.OrderByID)
	final := insertAt(dst, moved, index)
	assign(final, plan.OrderByID)
	// The moved node always gets an explicit entry when it changes parent, even if its
	// numeric order happens to stay the same.
	plan.OrderByID[movedID] = index
	return plan, nil
}

// PlanInsert plans the placement of a new node into group at index (clamped).
// It returns the new node's order and the order changes for the existing siblings.
func PlanInsert(group []*model.Node, index int) (int, map[string]int) {
	cur := append([]*model.Node{}, group...)
	Sort(cur)
	index = clamp(index, len(cur))
	changes := map[string]int{}
	for i, n := range cur {
		want := i
		if i >= index {
			want = i + 1
		}
		if n.Order != want {
			changes[n.ID] = want
		}
	}
	return index, changes
}

func insertAt(xs []*model.Node, n *model.Node, i int) []*model.Node {
	out := make([]*model.Node, 0, len(xs)+1)
	out = append(out, xs[:i]...)
	out = append(out, n)
	out = append(out, xs[i:]...)
	return out
}

func assign(final []*model.Node, into map[string]int) map[string]int {
	for i, n := range final {
		if n.Order != i {
			into[n.ID] = i
		}
	}
	return into
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}
