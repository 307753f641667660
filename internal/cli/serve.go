package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pagetree-cli/internal/web"

	"github.com/spf13/cobra"
)

func newServeCmd(app *App) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON HTTP API (forest, node operations, drag sessions)",
		Example: strings.TrimSpace(`
# Serve the current workspace on localhost
pagetree serve --addr 127.0.0.1:3340

curl -s localhost:3340/pages/<page-id>/forest
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			listenAddr := strings.TrimSpace(addr)
			if listenAddr == "" {
				return writeErr(cmd, errors.New("serve: missing --addr"))
			}
			sess, err := openSession(cmd, app, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			logger := sess.logger

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if path := strings.TrimSpace(app.cfg.ComponentsFile); path != "" {
				if err := sess.registry.Watch(ctx, path, logger, sess.editor.CheckDefinitions); err != nil {
					logger.Warn("components hot reload disabled", "path", path, "err", err)
				}
			}

			srv, err := web.NewServer(web.ServerConfig{Editor: sess.editor, Palette: sess.registry, Logger: logger})
			if err != nil {
				_ = sess.Close()
				return writeErr(cmd, err)
			}
			go srv.WatchFailures(ctx)

			ln, err := net.Listen("tcp", listenAddr)
			if err != nil {
				_ = sess.Close()
				return writeErr(cmd, err)
			}
			httpSrv := &http.Server{Handler: srv.Handler(), ReadHeaderTimeout: 10 * time.Second}

			_ = writeOut(cmd, app, map[string]any{
				"data": map[string]any{"addr": ln.Addr().String(), "url": "http://" + ln.Addr().String() + "/"},
			})
			logger.Info("serving", "addr", ln.Addr().String(), "dir", sess.store.Dir)

			errCh := make(chan error, 1)
			go func() { errCh <- httpSrv.Serve(ln) }()

			select {
			case <-ctx.Done():
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					_ = sess.Close()
					return writeErr(cmd, err)
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("shutdown", "err", err)
			}
			logger.Info("stopped; flushing queued writes")
			if err := sess.Close(); err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:3340", "Listen address")
	return cmd
}
