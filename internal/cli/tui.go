package cli

import (
	"os"
	"path/filepath"

	"pagetree-cli/internal/tui"

	"github.com/spf13/cobra"
)

func newTUICmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Interactive layer list for the current page",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, app)
		},
	}
}

func runTUI(cmd *cobra.Command, app *App) error {
	dir, err := resolveDir(app)
	if err != nil {
		return writeErr(cmd, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return writeErr(cmd, err)
	}
	// The alt screen owns the terminal; log to a file next to the store instead.
	f, err := os.OpenFile(filepath.Join(dir, "tui.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return writeErr(cmd, err)
	}
	defer f.Close()
	level := loggerFromContext(cmd.Context()).GetLevel()
	cmd.SetContext(withLogger(cmd.Context(), newLogger(f, level)))

	sess, err := openSession(cmd, app, true)
	if err != nil {
		return writeErr(cmd, err)
	}
	runErr := tui.Run(sess.editor, sess.pageID)
	closeErr := sess.Close()
	if runErr != nil {
		return writeErr(cmd, runErr)
	}
	if closeErr != nil {
		return writeErr(cmd, closeErr)
	}
	return nil
}
