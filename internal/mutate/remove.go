package mutate

import (
	"fmt"
	"sort"
	"strings"

	"pagetree-cli/internal/model"
	"pagetree-cli/internal/order"
	"pagetree-cli/internal/store"
	"pagetree-cli/internal/tree"
)

// RemovePolicy decides what happens to the children of a removed node.
type RemovePolicy string

const (
	// RemoveCascade removes the node and all of its descendants.
	RemoveCascade RemovePolicy = "cascade"
	// RemovePromote re-parents the direct children to the removed node's parent, at the
	// removed node's position.
	RemovePromote RemovePolicy = "promote"
	// RemoveReject refuses to remove a node that has children.
	RemoveReject RemovePolicy = "reject"
)

func ParseRemovePolicy(s string) (RemovePolicy, error) {
	switch p := RemovePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case RemoveCascade, RemovePromote, RemoveReject:
		return p, nil
	case "promote-children":
		return RemovePromote, nil
	case "reject-if-has-children", "":
		return RemoveReject, nil
	default:
		return "", fmt.Errorf("unknown remove policy %q (want cascade, promote or reject)", s)
	}
}

type RemoveResult struct {
	Result

	// RemovedIDs lists every node deleted from the store, the target first.
	RemovedIDs []string
	// PromotedIDs lists children moved up under RemovePromote, in their new order.
	PromotedIDs []string
}

func Remove(db *store.DB, id string, policy RemovePolicy) (RemoveResult, error) {
	id = strings.TrimSpace(id)
	n, ok := db.FindNode(id)
	if !ok {
		return RemoveResult{}, NotFoundError{Kind: "node", ID: id}
	}
	if n.Locked {
		return RemoveResult{}, LockedError{NodeID: n.ID}
	}
	policy, err := ParseRemovePolicy(string(policy))
	if err != nil {
		return RemoveResult{}, err
	}
	removed := n.Clone()
	children := db.ChildrenOf(n.ID)

	switch policy {
	case RemoveReject:
		if len(children) > 0 {
			return RemoveResult{}, HasChildrenError{NodeID: n.ID, Count: len(children)}
		}
		return removeSingle(db, removed, policy, nil), nil

	case RemoveCascade:
		desc := tree.Descendants(db.NodesOnPage(removed.PageID), removed.ID)
		sort.Strings(desc)
		for _, d := range desc {
			if dn, ok := db.FindNode(d); ok && dn.Locked {
				return RemoveResult{}, LockedError{NodeID: d}
			}
		}
		return removeSingle(db, removed, policy, desc), nil

	default:
		return promote(db, removed), nil
	}
}

// removeSingle deletes removed plus extra and renormalizes the removed node's old group.
func removeSingle(db *store.DB, removed model.Node, policy RemovePolicy, extra []string) RemoveResult {
	ids := map[string]bool{removed.ID: true}
	all := []string{removed.ID}
	for _, d := range extra {
		ids[d] = true
		all = append(all, d)
	}
	db.RemoveNodes(ids)

	orders := order.Normalize(db.Siblings(removed.PageID, removed.ParentID))
	applyOrders(db, orders)

	return RemoveResult{
		Result: Result{
			Node:      removed,
			Changed:   true,
			OrderByID: orders,
			EventPayload: map[string]any{
				"policy":     string(policy),
				"removedIds": all,
			},
		},
		RemovedIDs: all,
	}
}

func promote(db *store.DB, removed model.Node) RemoveResult {
	group := db.Siblings(removed.PageID, removed.ParentID)
	at := order.IndexOf(group, removed.ID)
	children := db.ChildrenOf(removed.ID)

	final := make([]*model.Node, 0, len(group)-1+len(children))
	final = append(final, group[:at]...)
	final = append(final, children...)
	final = append(final, group[at+1:]...)

	orders := map[string]int{}
	promoted := make([]string, 0, len(children))
	ts := now()
	for _, c := range children {
		c.ParentID = copyParent(removed.ParentID)
		c.UpdatedAt = ts
		promoted = append(promoted, c.ID)
	}
	for i, n := range final {
		if n.Order != i {
			n.Order = i
			orders[n.ID] = i
		}
	}
	// Promoted children changed parent even when their order did not.
	for _, c := range children {
		orders[c.ID] = c.Order
	}

	db.RemoveNodes(map[string]bool{removed.ID: true})

	return RemoveResult{
		Result: Result{
			Node:      removed,
			Changed:   true,
			OrderByID: orders,
			EventPayload: map[string]any{
				"policy":      string(RemovePromote),
				"removedIds":  []string{removed.ID},
				"promotedIds": promoted,
				"parentId":    parentValue(removed.ParentID),
			},
		},
		RemovedIDs:  []string{removed.ID},
		PromotedIDs: promoted,
	}
}
