package mutate

import (
	"pagetree-cli/internal/order"
	"pagetree-cli/internal/registry"
	"pagetree-cli/internal/store"
)

// Move is the single structural primitive: it places node id under parentID (nil = page
// root) at index within the destination sibling group, counted without the node itself.
// Sibling reorder, reparent into a container and cross-level moves differ only in how the
// caller computes index.
func Move(db *store.DB, reg registry.Registry, id string, parentID *string, index int) (Result, error) {
	target, err := ValidateMove(db, reg, id, parentID, index)
	if err != nil {
		return Result{}, err
	}
	n, _ := db.FindNode(id)
	from := db.Siblings(n.PageID, n.ParentID)
	to := db.Siblings(n.PageID, target.ParentID)

	plan, err := order.PlanMove(from, to, n.ID, target.ParentID, target.Index)
	if err != nil {
		return Result{}, err
	}
	if !plan.Changed() {
		return Result{Node: n.Clone(), Changed: false}, nil
	}

	fromParent := parentValue(n.ParentID)
	if plan.ParentChanged {
		n.ParentID = copyParent(target.ParentID)
	}
	n.UpdatedAt = now()
	movedID := n.ID
	applyOrders(db, plan.OrderByID)

	moved, _ := db.FindNode(movedID)
	return Result{
		Node:      moved.Clone(),
		Changed:   true,
		OrderByID: withoutKey(plan.OrderByID, movedID),
		EventPayload: map[string]any{
			"fromParentId": fromParent,
			"toParentId":   parentValue(moved.ParentID),
			"index":        plan.Index,
			"order":        moved.Order,
		},
	}, nil
}
