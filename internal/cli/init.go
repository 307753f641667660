package cli

import (
	"strings"
	"time"

	"pagetree-cli/internal/model"
	"pagetree-cli/internal/store"

	"github.com/spf13/cobra"
)

func newInitCmd(app *App) *cobra.Command {
	var pageName string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize local storage (creates a first page when there is none)",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, s, err := loadDB(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			var created *model.Page
			if len(db.Pages) == 0 && strings.TrimSpace(pageName) != "" {
				p := model.Page{ID: store.NewUniquePageID(db), Name: strings.TrimSpace(pageName), CreatedAt: time.Now().UTC()}
				db.Pages = append(db.Pages, p)
				db.CurrentPageID = p.ID
				created = &p
			}
			if err := s.Save(db); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"dir":           s.Dir,
					"sqlitePath":    s.SQLitePath(),
					"createdPage":   created,
					"currentPageId": db.CurrentPageID,
					"persistence":   app.cfg.Persistence,
				},
			})
		},
	}
	cmd.Flags().StringVar(&pageName, "page-name", "Home", "Name of the first page (empty: create none)")
	return cmd
}
