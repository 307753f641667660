package cli

import (
	"errors"
	"strings"
	"time"

	"pagetree-cli/internal/model"
	"pagetree-cli/internal/mutate"
	"pagetree-cli/internal/store"

	"github.com/spf13/cobra"
)

func newPagesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "pages",
		Aliases: []string{"page"},
		Short:   "Page commands",
	}
	cmd.AddCommand(newPagesCreateCmd(app))
	cmd.AddCommand(newPagesListCmd(app))
	cmd.AddCommand(newPagesUseCmd(app))
	return cmd
}

func newPagesCreateCmd(app *App) *cobra.Command {
	var use bool

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			if name == "" {
				return writeErr(cmd, errors.New("page name is empty"))
			}
			db, s, err := loadDB(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			p := model.Page{
				ID:        store.NewUniquePageID(db),
				Name:      name,
				CreatedAt: time.Now().UTC(),
			}
			db.Pages = append(db.Pages, p)
			if use || db.CurrentPageID == "" {
				db.CurrentPageID = p.ID
			}
			if err := s.Save(db); err != nil {
				return writeErr(cmd, err)
			}
			loggerFromContext(cmd.Context()).Debug("page created", "id", p.ID, "name", p.Name)
			return writeOut(cmd, app, map[string]any{"data": p, "meta": map[string]any{"current": db.CurrentPageID == p.ID}})
		},
	}
	cmd.Flags().BoolVar(&use, "use", false, "Make the new page current")
	return cmd
}

func newPagesListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pages",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := loadDB(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			counts := map[string]int{}
			for _, n := range db.Nodes {
				counts[n.PageID]++
			}
			type page struct {
				model.Page
				Current   bool `json:"current"`
				NodeCount int  `json:"nodeCount"`
			}
			current, _ := resolvePage(app, db)
			out := make([]page, 0, len(db.Pages))
			for _, p := range db.Pages {
				out = append(out, page{Page: p, Current: p.ID == current, NodeCount: counts[p.ID]})
			}
			return writeOut(cmd, app, map[string]any{"data": out})
		},
	}
	return cmd
}

func newPagesUseCmd(app *App) *cobra.Command {
	var global bool

	cmd := &cobra.Command{
		Use:   "use <page-id>",
		Short: "Set the current page (workspace-local, or --global in config.toml)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, s, err := loadDB(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			id := strings.TrimSpace(args[0])
			if _, ok := db.FindPage(id); !ok {
				return writeErr(cmd, mutate.NotFoundError{Kind: "page", ID: id})
			}
			if global {
				cfg, err := loadConfig(app)
				if err != nil {
					return writeErr(cmd, err)
				}
				cfg.CurrentPage = id
				if err := saveConfig(app, cfg); err != nil {
					return writeErr(cmd, err)
				}
			} else {
				db.CurrentPageID = id
				if err := s.Save(db); err != nil {
					return writeErr(cmd, err)
				}
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"currentPageId": id, "global": global}})
		},
	}
	cmd.Flags().BoolVar(&global, "global", false, "Write current_page to config.toml instead of the workspace")
	return cmd
}

func saveConfig(app *App, cfg *store.Config) error {
	if p := strings.TrimSpace(app.ConfigPath); p != "" {
		return store.SaveConfigFile(p, cfg)
	}
	return store.SaveConfig(cfg)
}
