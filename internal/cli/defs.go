package cli

import (
	"strings"

	"pagetree-cli/internal/model"
	"pagetree-cli/internal/registry"

	"github.com/spf13/cobra"
)

func loadRegistry(app *App) (*registry.Static, error) {
	return registry.Load(app.cfg.ComponentsFile)
}

func newDefsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "defs",
		Aliases: []string{"components", "palette"},
		Short:   "Component definitions (the palette)",
	}
	cmd.AddCommand(newDefsListCmd(app))
	return cmd
}

func newDefsListCmd(app *App) *cobra.Command {
	var category string
	var containers bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List component definitions (builtin or config components_file)",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			out := []model.Definition{}
			for _, d := range reg.List() {
				if category != "" && !strings.EqualFold(d.Category, category) {
					continue
				}
				if containers && !d.AcceptsChildren {
					continue
				}
				out = append(out, d)
			}
			source := "builtin"
			if app.cfg.ComponentsFile != "" {
				source = app.cfg.ComponentsFile
			}
			return writeOut(cmd, app, map[string]any{"data": out, "meta": map[string]any{"source": source}})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Only this category")
	cmd.Flags().BoolVar(&containers, "containers", false, "Only definitions that accept children")
	return cmd
}
