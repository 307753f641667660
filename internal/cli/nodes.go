package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"pagetree-cli/internal/model"
	"pagetree-cli/internal/mutate"
	"pagetree-cli/internal/tree"

	"github.com/spf13/cobra"
)

func newNodesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "nodes",
		Aliases: []string{"node", "layers"},
		Short:   "Node (layer) commands",
	}
	cmd.AddCommand(newNodesAddCmd(app))
	cmd.AddCommand(newNodesListCmd(app))
	cmd.AddCommand(newNodesTreeCmd(app))
	cmd.AddCommand(newNodesShowCmd(app))
	cmd.AddCommand(newNodesMoveCmd(app))
	cmd.AddCommand(newNodesRemoveCmd(app))
	cmd.AddCommand(newNodesSetCmd(app))
	cmd.AddCommand(newNodesDuplicateCmd(app))
	cmd.AddCommand(newNodesFlagCmd(app, "lock", "Lock a node (blocks move/remove/drag)", func(p *mutate.Patch) { t := true; p.Locked = &t }))
	cmd.AddCommand(newNodesFlagCmd(app, "unlock", "Unlock a node", func(p *mutate.Patch) { f := false; p.Locked = &f }))
	cmd.AddCommand(newNodesFlagCmd(app, "hide", "Hide a node in the canvas", func(p *mutate.Patch) { t := true; p.Hidden = &t }))
	cmd.AddCommand(newNodesFlagCmd(app, "unhide", "Show a hidden node again", func(p *mutate.Patch) { f := false; p.Hidden = &f }))
	return cmd
}

func newNodesAddCmd(app *App) *cobra.Command {
	var parent string
	var index int
	var props []string
	var label string
	var id string

	cmd := &cobra.Command{
		Use:   "add <definition-id>",
		Short: "Place a component on the current page",
		Example: strings.TrimSpace(`
pagetree nodes add section
pagetree nodes add heading --parent node-1a2b3c4d --prop text='"Welcome"' --prop level=1
pagetree nodes add button --parent node-1a2b3c4d --index 0
`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			properties, err := parseProps(props)
			if err != nil {
				return writeErr(cmd, err)
			}
			sess, err := openSession(cmd, app, true)
			if err != nil {
				return writeErr(cmd, err)
			}

			n := model.Node{ID: id, PageID: sess.pageID, DefinitionID: args[0], Properties: properties}
			if strings.TrimSpace(label) != "" {
				l := strings.TrimSpace(label)
				n.Label = &l
			}
			pos := mutate.Position{ParentID: optionalID(parent)}
			if index >= 0 {
				pos.Index = &index
			}
			res, err := sess.editor.Insert(n, pos)
			if err != nil {
				_ = sess.Close()
				return writeErr(cmd, err)
			}
			return finish(cmd, app, sess, map[string]any{"data": res.Node, "meta": resultMeta(res)})
		},
	}
	cmd.Flags().StringVar(&parent, "parent", "", "Parent container node id (default: page root)")
	cmd.Flags().IntVar(&index, "index", -1, "Position among siblings (default: append)")
	cmd.Flags().StringArrayVar(&props, "prop", nil, "Property name=value (value parsed as JSON when valid); repeatable")
	cmd.Flags().StringVar(&label, "label", "", "Display label")
	cmd.Flags().StringVar(&id, "id", "", "Explicit node id (default: generated)")
	return cmd
}

func newNodesListCmd(app *App) *cobra.Command {
	var query string
	var defs []string
	var collapsed []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the current page's nodes in layer order (depth-annotated)",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := loadDB(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			pageID, err := resolvePage(app, db)
			if err != nil {
				return writeErr(cmd, err)
			}
			nodes := filterNodes(db.NodesOnPage(pageID), query, defs)
			hide := map[string]bool{}
			for _, id := range collapsed {
				hide[strings.TrimSpace(id)] = true
			}
			rows := tree.Flatten(tree.Build(nodes), hide)

			type row struct {
				model.Node
				Depth       int  `json:"depth"`
				HasChildren bool `json:"hasChildren"`
				Collapsed   bool `json:"collapsed,omitempty"`
			}
			out := make([]row, 0, len(rows))
			for _, r := range rows {
				out = append(out, row{Node: r.Node, Depth: r.Depth, HasChildren: r.HasChildren, Collapsed: r.Collapsed})
			}
			return writeOut(cmd, app, map[string]any{
				"data": out,
				"meta": map[string]any{"pageId": pageID, "count": len(out)},
			})
		},
	}
	cmd.Flags().StringVar(&query, "query", "", "Keep nodes whose label or definition contains this text (plus their ancestors)")
	cmd.Flags().StringSliceVar(&defs, "def", nil, "Keep nodes with these definition ids (plus their ancestors)")
	cmd.Flags().StringSliceVar(&collapsed, "collapse", nil, "Node ids whose children are omitted")
	return cmd
}

func newNodesTreeCmd(app *App) *cobra.Command {
	var query string
	var defs []string

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the current page as a nested forest",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := loadDB(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			pageID, err := resolvePage(app, db)
			if err != nil {
				return writeErr(cmd, err)
			}
			forest := tree.Build(filterNodes(db.NodesOnPage(pageID), query, defs))
			return writeOut(cmd, app, map[string]any{"data": forest, "meta": map[string]any{"pageId": pageID}})
		},
	}
	cmd.Flags().StringVar(&query, "query", "", "Filter by label/definition text")
	cmd.Flags().StringSliceVar(&defs, "def", nil, "Filter by definition ids")
	return cmd
}

func newNodesShowCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "show <node-id>",
		Aliases: []string{"get"},
		Short:   "Show a node with its definition, children and ancestors",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := loadDB(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			n, ok := db.FindNode(args[0])
			if !ok {
				return writeErr(cmd, mutate.NotFoundError{Kind: "node", ID: args[0]})
			}
			node := n.Clone()
			reg, err := loadRegistry(app)
			if err != nil {
				return writeErr(cmd, err)
			}

			children := []string{}
			for _, c := range db.ChildrenOf(node.ID) {
				children = append(children, c.ID)
			}
			ancestors := tree.Ancestors(db.NodesOnPage(node.PageID), node.ID)
			if ancestors == nil {
				ancestors = []string{}
			}
			data := map[string]any{
				"node":      node,
				"children":  children,
				"ancestors": ancestors,
			}
			if def, ok := reg.Definition(node.DefinitionID); ok {
				data["definition"] = def
			}
			return writeOut(cmd, app, map[string]any{"data": data})
		},
	}
	return cmd
}

func newNodesMoveCmd(app *App) *cobra.Command {
	var parent string
	var index int

	cmd := &cobra.Command{
		Use:   "move <node-id>",
		Short: "Move a node to index under parent (reorder or reparent)",
		Long: strings.TrimSpace(`
Move a node to --index among the children of --parent (omit --parent for the page root).

The index is computed against the destination group with the moved node removed and is
clamped to the group size. Locked nodes, container-less targets and moves into a node's own
subtree are rejected without changing anything.
`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(cmd, app, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			res, err := sess.editor.Move(args[0], optionalID(parent), index)
			if err != nil {
				_ = sess.Close()
				return writeErr(cmd, err)
			}
			return finish(cmd, app, sess, map[string]any{"data": res.Node, "meta": resultMeta(res)})
		},
	}
	cmd.Flags().StringVar(&parent, "parent", "", "Destination container node id (default: page root)")
	cmd.Flags().IntVar(&index, "index", 0, "Destination index")
	return cmd
}

func newNodesRemoveCmd(app *App) *cobra.Command {
	var policy string

	cmd := &cobra.Command{
		Use:     "rm <node-id>",
		Aliases: []string{"remove", "delete"},
		Short:   "Remove a node (policy: cascade|promote|reject)",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p mutate.RemovePolicy
			if strings.TrimSpace(policy) != "" {
				parsed, err := mutate.ParseRemovePolicy(policy)
				if err != nil {
					return writeErr(cmd, err)
				}
				p = parsed
			}
			sess, err := openSession(cmd, app, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			res, err := sess.editor.Remove(args[0], p)
			if err != nil {
				_ = sess.Close()
				return writeErr(cmd, err)
			}
			meta := resultMeta(res.Result)
			meta["removedIds"] = res.RemovedIDs
			if len(res.PromotedIDs) > 0 {
				meta["promotedIds"] = res.PromotedIDs
			}
			return finish(cmd, app, sess, map[string]any{"data": res.Node, "meta": meta})
		},
	}
	cmd.Flags().StringVar(&policy, "policy", "", "What happens to children: cascade|promote|reject (default: config default_remove_policy)")
	return cmd
}

func newNodesSetCmd(app *App) *cobra.Command {
	var props []string
	var unset []string
	var label string
	var clearLabel bool

	cmd := &cobra.Command{
		Use:   "set <node-id>",
		Short: "Set node properties or the display label",
		Example: strings.TrimSpace(`
pagetree nodes set node-1a2b3c4d --prop text='"Hello"'
pagetree nodes set node-1a2b3c4d --unset src --label "Hero image"
`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := mutate.Patch{}
			properties, err := parseProps(props)
			if err != nil {
				return writeErr(cmd, err)
			}
			for _, k := range unset {
				if properties == nil {
					properties = map[string]any{}
				}
				properties[strings.TrimSpace(k)] = nil
			}
			patch.Properties = properties
			if cmd.Flags().Changed("label") {
				l := strings.TrimSpace(label)
				patch.Label = &l
			} else if clearLabel {
				l := ""
				patch.Label = &l
			}
			if patch.IsEmpty() {
				return writeErr(cmd, errors.New("nothing to set; pass --prop, --unset, --label or --clear-label"))
			}
			return runPatch(cmd, app, args[0], patch)
		},
	}
	cmd.Flags().StringArrayVar(&props, "prop", nil, "Property name=value (value parsed as JSON when valid); repeatable")
	cmd.Flags().StringArrayVar(&unset, "unset", nil, "Property name to delete; repeatable")
	cmd.Flags().StringVar(&label, "label", "", "Display label")
	cmd.Flags().BoolVar(&clearLabel, "clear-label", false, "Clear the display label")
	return cmd
}

func newNodesFlagCmd(app *App, use, short string, set func(p *mutate.Patch)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <node-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch mutate.Patch
			set(&patch)
			return runPatch(cmd, app, args[0], patch)
		},
	}
}

func runPatch(cmd *cobra.Command, app *App, id string, patch mutate.Patch) error {
	sess, err := openSession(cmd, app, false)
	if err != nil {
		return writeErr(cmd, err)
	}
	res, err := sess.editor.Update(id, patch)
	if err != nil {
		_ = sess.Close()
		return writeErr(cmd, err)
	}
	return finish(cmd, app, sess, map[string]any{"data": res.Node, "meta": resultMeta(res)})
}

func newNodesDuplicateCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "dup <node-id>",
		Aliases: []string{"duplicate", "copy"},
		Short:   "Duplicate a node (not its children) at the end of its sibling group",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(cmd, app, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			res, err := sess.editor.Duplicate(args[0])
			if err != nil {
				_ = sess.Close()
				return writeErr(cmd, err)
			}
			meta := resultMeta(res)
			meta["sourceId"] = strings.TrimSpace(args[0])
			return finish(cmd, app, sess, map[string]any{"data": res.Node, "meta": meta})
		},
	}
	return cmd
}

func resultMeta(res mutate.Result) map[string]any {
	reordered := res.OrderByID
	if reordered == nil {
		reordered = map[string]int{}
	}
	return map[string]any{"changed": res.Changed, "reordered": reordered}
}

func optionalID(id string) *string {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	return &id
}

// parseProps turns name=value pairs into a property map. Values that parse as JSON keep
// their JSON type; anything else is a string.
func parseProps(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --prop %q (expected name=value)", pair)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		out[name] = v
	}
	return out, nil
}

func filterNodes(nodes []model.Node, query string, defs []string) []model.Node {
	if strings.TrimSpace(query) != "" {
		nodes = tree.Filter(nodes, tree.MatchQuery(query))
	}
	if len(defs) > 0 {
		nodes = tree.Filter(nodes, tree.MatchDefinitions(defs...))
	}
	return nodes
}
