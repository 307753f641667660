package cli

import (
	"pagetree-cli/internal/model"

	"github.com/spf13/cobra"
)

func newEventsCmd(app *App) *cobra.Command {
	var limit int
	var nodeID string

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect the local event log of applied mutations",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List events (oldest-first)",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, err := loadDB(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			evs, err := s.ReadEvents(cmd.Context(), nodeID, limit)
			if err != nil {
				return writeErr(cmd, err)
			}
			if evs == nil {
				evs = []model.Event{}
			}
			return writeOut(cmd, app, map[string]any{"data": evs})
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 200, "Max events to return, newest kept (0 = all)")
	listCmd.Flags().StringVar(&nodeID, "node", "", "Only events about this node id")

	cmd.AddCommand(listCmd)
	return cmd
}
