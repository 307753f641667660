package cli

import (
	"errors"
	"strings"

	"pagetree-cli/internal/drag"

	"github.com/spf13/cobra"
)

func newDragCmd(app *App) *cobra.Command {
	var palette string
	var node string
	var over []string
	var drop string

	cmd := &cobra.Command{
		Use:   "drag",
		Short: "Replay a drag gesture (start, hover targets, drop) against the current page",
		Long: strings.TrimSpace(`
Replay one drag-and-drop gesture the way the canvas/layer list would issue it.

Targets are written as:
  canvas            the empty-canvas drop zone (append at page root)
  <node-id>         drop next to / onto a node
  inside:<node-id>  drop into a container

Each --over reports the live drop indication without changing anything. --drop classifies
the gesture, dispatches exactly one insert or move and prints the outcome. Omitting --drop
cancels the gesture.
`),
		Example: strings.TrimSpace(`
pagetree drag --palette heading --over node-1a2b3c4d --drop inside:node-1a2b3c4d
pagetree drag --node node-5e6f7a8b --drop canvas
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			item, err := dragItem(palette, node)
			if err != nil {
				return writeErr(cmd, err)
			}
			sess, err := openSession(cmd, app, true)
			if err != nil {
				return writeErr(cmd, err)
			}
			s := drag.NewSession(sess.pageID, sess.editor, sess.editor)
			if err := s.Start(item); err != nil {
				_ = sess.Close()
				return writeErr(cmd, err)
			}

			feedback := []drag.Feedback{}
			for _, raw := range over {
				fb, err := s.Over(parseTarget(raw))
				if err != nil {
					_ = sess.Close()
					return writeErr(cmd, err)
				}
				feedback = append(feedback, fb)
			}

			data := map[string]any{"item": item, "over": feedback}
			if strings.TrimSpace(drop) == "" {
				s.Cancel()
				data["cancelled"] = true
				return finish(cmd, app, sess, map[string]any{"data": data})
			}
			out, err := s.End(parseTarget(drop))
			if err != nil {
				_ = sess.Close()
				return writeErr(cmd, err)
			}
			data["outcome"] = out
			return finish(cmd, app, sess, map[string]any{"data": data})
		},
	}
	cmd.Flags().StringVar(&palette, "palette", "", "Drag a new component from the palette (definition id)")
	cmd.Flags().StringVar(&node, "node", "", "Drag a placed node (node id)")
	cmd.Flags().StringArrayVar(&over, "over", nil, "Hover target; repeatable")
	cmd.Flags().StringVar(&drop, "drop", "", "Drop target (omit to cancel)")
	return cmd
}

func dragItem(palette, node string) (drag.Item, error) {
	palette, node = strings.TrimSpace(palette), strings.TrimSpace(node)
	switch {
	case palette != "" && node != "":
		return drag.Item{}, errors.New("provide exactly one of --palette or --node")
	case palette != "":
		return drag.PaletteItem(palette), nil
	case node != "":
		return drag.PlacedItem(node), nil
	default:
		return drag.Item{}, errors.New("provide one of --palette or --node")
	}
}

// parseTarget reads "canvas", "inside:<id>" or "<id>".
func parseTarget(raw string) drag.Target {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return drag.Target{}
	case strings.EqualFold(raw, "canvas"):
		return drag.CanvasTarget()
	case strings.HasPrefix(raw, "inside:"):
		return drag.InsideTarget(strings.TrimPrefix(raw, "inside:"))
	default:
		return drag.NodeTarget(raw)
	}
}
