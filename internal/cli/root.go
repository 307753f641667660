package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"pagetree-cli/internal/format"
	"pagetree-cli/internal/mutate"
	"pagetree-cli/internal/store"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

type App struct {
	Dir        string
	ConfigPath string
	PageID     string
	PrettyJSON bool
	Format     string
	Verbose    bool

	cfg store.Config
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "pagetree",
		Short:        "Page layer tree editor (local-first) CLI + TUI",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Start the interactive layer list
  pagetree

  # Scriptable commands
  pagetree nodes tree --pretty
  pagetree nodes add section
  pagetree nodes move node-1a2b3c4d --parent node-5e6f7a8b --index 0

  # Direct node lookup (shortcut for: pagetree nodes show <node-id>)
  pagetree node-1a2b3c4d
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive TUI.
			if cmd.HasSubCommands() && len(args) == 0 {
				return runTUI(cmd, app)
			}
			return cmd.Help()
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(app)
		if err != nil {
			return writeErr(cmd, err)
		}
		app.cfg = cfg.Normalized()

		level, err := log.ParseLevel(app.cfg.LogLevel)
		if err != nil {
			return writeErr(cmd, fmt.Errorf("config: log_level: %w", err))
		}
		if app.Verbose {
			level = log.DebugLevel
		}
		cmd.SetContext(withLogger(cmd.Context(), newLogger(cmd.ErrOrStderr(), level)))
		return nil
	}

	cmd.PersistentFlags().StringVar(&app.Dir, "dir", envOr("PAGETREE_DIR", ""), "Path to store dir (default: nearest .pagetree/ upwards from cwd)")
	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", envOr("PAGETREE_CONFIG", ""), "Path to config.toml (default: ~/.pagetree/config.toml)")
	cmd.PersistentFlags().StringVar(&app.PageID, "page", "", "Page id (default: current page)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("PAGETREE_FORMAT", "json"), "Output format (json|edn)")
	cmd.PersistentFlags().BoolVarP(&app.Verbose, "verbose", "v", false, "Debug logging on stderr")

	cmd.AddCommand(newInitCmd(app))
	cmd.AddCommand(newPagesCmd(app))
	cmd.AddCommand(newDefsCmd(app))
	cmd.AddCommand(newNodesCmd(app))
	cmd.AddCommand(newDragCmd(app))
	cmd.AddCommand(newEventsCmd(app))
	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newTUICmd(app))

	return cmd
}

func loadConfig(app *App) (*store.Config, error) {
	if p := strings.TrimSpace(app.ConfigPath); p != "" {
		return store.LoadConfigFile(p)
	}
	return store.LoadConfig()
}

func resolveDir(app *App) (string, error) {
	if app.Dir != "" {
		return app.Dir, nil
	}
	dir, err := store.DefaultDir()
	if err != nil {
		return "", err
	}
	app.Dir = dir
	return dir, nil
}

func loadDB(app *App) (*store.DB, store.Store, error) {
	dir, err := resolveDir(app)
	if err != nil {
		return nil, store.Store{}, err
	}
	s := store.Store{Dir: dir}
	db, err := s.Load()
	if err != nil {
		return nil, s, err
	}
	return db, s, nil
}

// resolvePage picks the page a command works on:
// --page, then the workspace's current page, then config current_page, then the only page.
func resolvePage(app *App, db *store.DB) (string, error) {
	if id := strings.TrimSpace(app.PageID); id != "" {
		if _, ok := db.FindPage(id); !ok {
			return "", mutate.NotFoundError{Kind: "page", ID: id}
		}
		return id, nil
	}
	for _, id := range []string{db.CurrentPageID, app.cfg.CurrentPage} {
		if _, ok := db.FindPage(id); ok {
			return id, nil
		}
	}
	if len(db.Pages) == 1 {
		return db.Pages[0].ID, nil
	}
	if len(db.Pages) == 0 {
		return "", errors.New("no pages; run `pagetree pages create <name>`")
	}
	return "", errors.New("no current page; run `pagetree pages use <page-id>` (or pass --page)")
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

// writeErr reports err on stderr as {"error": {"code": ..., "message": ...}} and returns it
// so cobra exits non-zero.
func writeErr(cmd *cobra.Command, err error) error {
	_ = format.WriteJSON(cmd.ErrOrStderr(), map[string]any{"error": errorBody(err)}, false)
	return err
}
