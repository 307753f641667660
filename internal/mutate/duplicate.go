package mutate

import (
	"strings"

	"pagetree-cli/internal/order"
	"pagetree-cli/internal/store"
)

type DuplicateOpts struct {
	// InheritLock keeps the source's lock flag on the copy. By default the copy is unlocked.
	InheritLock bool
}

// Duplicate copies node id (not its children) into the same sibling group, after every
// existing sibling. Locked sources may be duplicated.
func Duplicate(db *store.DB, id string, opts DuplicateOpts) (Result, error) {
	id = strings.TrimSpace(id)
	src, ok := db.FindNode(id)
	if !ok {
		return Result{}, NotFoundError{Kind: "node", ID: id}
	}

	dup := src.Clone()
	dup.ID = store.NewUniqueNodeID(db)
	dup.Order = order.NextOrder(db.Siblings(src.PageID, src.ParentID))
	dup.Locked = opts.InheritLock && src.Locked
	ts := now()
	dup.CreatedAt = ts
	dup.UpdatedAt = ts

	// src is invalid after the append.
	sourceID := src.ID
	db.Nodes = append(db.Nodes, dup)

	return Result{
		Node:    dup.Clone(),
		Changed: true,
		EventPayload: map[string]any{
			"sourceId": sourceID,
			"parentId": parentValue(dup.ParentID),
			"order":    dup.Order,
			"isLocked": dup.Locked,
		},
	}, nil
}
