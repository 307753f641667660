// Package mutate implements the node operations (insert, remove, update, duplicate, move)
// over a store.DB. Every operation validates fully before touching the DB, so a returned
// error always means the DB is unchanged.
//
// Callers are responsible for persisting the result and appending events.
package mutate

import (
	"sort"
	"time"

	"pagetree-cli/internal/model"
	"pagetree-cli/internal/store"
)

var now = func() time.Time { return time.Now().UTC() }

type Result struct {
	// Node is a copy of the affected node after the operation.
	Node         model.Node
	Changed      bool
	EventPayload map[string]any

	// OrderByID holds the final order of every node (other than Node) whose order or
	// parent changed as a side effect.
	OrderByID map[string]int
}

// ReorderedIDs returns the keys of OrderByID, sorted.
func (r Result) ReorderedIDs() []string {
	out := make([]string, 0, len(r.OrderByID))
	for id := range r.OrderByID {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// applyOrders writes orders into the arena.
func applyOrders(db *store.DB, orders map[string]int) {
	for id, ord := range orders {
		if n, ok := db.FindNode(id); ok {
			n.Order = ord
		}
	}
}

func withoutKey(m map[string]int, key string) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		if k != key {
			out[k] = v
		}
	}
	return out
}

func parentValue(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func copyParent(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
