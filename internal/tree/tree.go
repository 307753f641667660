// Package tree derives the parent -> children forest from a flat node collection.
//
// The forest is never cached: callers rebuild it from the current collection whenever
// they need it, so it cannot drift from the store.
package tree

import (
	"strings"

	"pagetree-cli/internal/model"
	"pagetree-cli/internal/order"
)

// Branch is one node of the derived forest.
type Branch struct {
	Node     model.Node `json:"node"`
	Children []*Branch  `json:"children"`
}

// Build returns the forest for nodes. Siblings are sorted by order.
//
// Nodes whose parent is not part of the input are surfaced as roots so a subtree is never
// hidden from view, even when the input is a partial (e.g. filtered) collection.
func Build(nodes []model.Node) []*Branch {
	present := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		present[n.ID] = true
	}

	children := map[string][]*model.Node{}
	var roots []*model.Node
	for i := range nodes {
		n := &nodes[i]
		pid := strings.TrimSpace(n.ParentKey())
		if pid == "" || !present[pid] {
			roots = append(roots, n)
			continue
		}
		children[pid] = append(children[pid], n)
	}

	var build func(n *model.Node, seen map[string]bool) *Branch
	build = func(n *model.Node, seen map[string]bool) *Branch {
		b := &Branch{Node: *n, Children: []*Branch{}}
		if seen[n.ID] {
			return b
		}
		seen[n.ID] = true
		sibs := children[n.ID]
		order.Sort(sibs)
		for _, ch := range sibs {
			b.Children = append(b.Children, build(ch, seen))
		}
		return b
	}

	order.Sort(roots)
	seen := map[string]bool{}
	out := make([]*Branch, 0, len(roots))
	for _, r := range roots {
		out = append(out, build(r, seen))
	}
	return out
}

// Walk visits the forest in pre-order. Returning false from fn skips the branch's children.
func Walk(forest []*Branch, fn func(b *Branch, depth int) bool) {
	var walk func(b *Branch, depth int)
	walk = func(b *Branch, depth int) {
		if !fn(b, depth) {
			return
		}
		for _, ch := range b.Children {
			walk(ch, depth+1)
		}
	}
	for _, b := range forest {
		walk(b, 0)
	}
}

// Descendants returns the ids of every descendant of rootID (not including rootID),
// breadth-first. A malformed collection with a cycle terminates: each id is visited once.
func Descendants(nodes []model.Node, rootID string) []string {
	rootID = strings.TrimSpace(rootID)
	if rootID == "" {
		return nil
	}
	byParent := map[string][]string{}
	for _, n := range nodes {
		if pid := n.ParentKey(); pid != "" {
			byParent[pid] = append(byParent[pid], n.ID)
		}
	}

	out := []string{}
	seen := map[string]bool{rootID: true}
	queue := []string{rootID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, ch := range byParent[id] {
			if seen[ch] {
				continue
			}
			seen[ch] = true
			out = append(out, ch)
			queue = append(queue, ch)
		}
	}
	return out
}

// IsDescendant reports whether candidateID is somewhere below ancestorID.
func IsDescendant(nodes []model.Node, ancestorID, candidateID string) bool {
	for _, id := range Descendants(nodes, ancestorID) {
		if id == candidateID {
			return true
		}
	}
	return false
}

// Ancestors returns the chain of parent ids from id upward (nearest first).
func Ancestors(nodes []model.Node, id string) []string {
	byID := make(map[string]model.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}
	var out []string
	seen := map[string]bool{id: true}
	cur, ok := byID[id]
	for ok && cur.ParentID != nil {
		pid := *cur.ParentID
		if seen[pid] {
			break
		}
		seen[pid] = true
		out = append(out, pid)
		cur, ok = byID[pid]
	}
	return out
}
