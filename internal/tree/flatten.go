package tree

import (
	"strings"

	"pagetree-cli/internal/model"
)

// Row is one line of a nested layer list.
type Row struct {
	Node        model.Node
	Depth       int
	HasChildren bool
	Collapsed   bool
}

// Flatten turns the forest into depth-annotated rows in display order.
// Children of collapsed nodes are omitted.
func Flatten(forest []*Branch, collapsed map[string]bool) []Row {
	var out []Row
	Walk(forest, func(b *Branch, depth int) bool {
		out = append(out, Row{
			Node:        b.Node,
			Depth:       depth,
			HasChildren: len(b.Children) > 0,
			Collapsed:   collapsed[b.Node.ID],
		})
		return !collapsed[b.Node.ID]
	})
	return out
}

// Filter returns the nodes matching match plus all of their ancestors, so the filtered
// collection still builds into a connected forest.
func Filter(nodes []model.Node, match func(model.Node) bool) []model.Node {
	if match == nil {
		return append([]model.Node(nil), nodes...)
	}
	keep := map[string]bool{}
	for _, n := range nodes {
		if !match(n) {
			continue
		}
		keep[n.ID] = true
		for _, a := range Ancestors(nodes, n.ID) {
			keep[a] = true
		}
	}
	out := make([]model.Node, 0, len(keep))
	for _, n := range nodes {
		if keep[n.ID] {
			out = append(out, n)
		}
	}
	return out
}

// MatchQuery returns a case-insensitive matcher over the display name and definition id.
// An empty query matches everything.
func MatchQuery(query string) func(model.Node) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	return func(n model.Node) bool {
		if q == "" {
			return true
		}
		return strings.Contains(strings.ToLower(n.DisplayName()), q) ||
			strings.Contains(strings.ToLower(n.DefinitionID), q)
	}
}

// MatchDefinitions matches nodes whose definition id is in ids (category filters).
func MatchDefinitions(ids ...string) func(model.Node) bool {
	set := map[string]bool{}
	for _, id := range ids {
		set[strings.TrimSpace(id)] = true
	}
	return func(n model.Node) bool { return set[n.DefinitionID] }
}
