package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pagetree-cli/internal/editor"
	"pagetree-cli/internal/mutate"
	"pagetree-cli/internal/persist"
	"pagetree-cli/internal/registry"
	"pagetree-cli/internal/store"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// session is one command's view of a workspace: the loaded DB handed to an editor whose
// persistence backend follows config.
type session struct {
	store    store.Store
	editor   *editor.Editor
	registry *registry.Static
	pageID   string
	logger   *log.Logger

	closers []func(context.Context) error
}

// openSession loads the workspace and wires the editor. With needPage the current page is
// resolved up front.
func openSession(cmd *cobra.Command, app *App, needPage bool) (*session, error) {
	db, s, err := loadDB(app)
	if err != nil {
		return nil, err
	}
	logger := loggerFromContext(cmd.Context())

	var pageID string
	if needPage {
		if pageID, err = resolvePage(app, db); err != nil {
			return nil, err
		}
	}

	reg, err := registry.Load(app.cfg.ComponentsFile)
	if err != nil {
		return nil, err
	}
	policy, err := mutate.ParseRemovePolicy(app.cfg.DefaultRemovePolicy)
	if err != nil {
		return nil, err
	}

	sess := &session{store: s, registry: reg, pageID: pageID, logger: logger}
	p, err := sess.persister(cmd.Context(), app.cfg)
	if err != nil {
		return nil, err
	}
	sess.editor = editor.New(db, editor.Options{
		Registry:              reg,
		Persister:             p,
		Logger:                logger,
		DuplicateInheritsLock: app.cfg.DuplicateInheritsLock,
		DefaultRemovePolicy:   policy,
	})
	return sess, nil
}

// persister maps config.persistence to a backend. Mongo mirrors writes; the local SQLite
// file stays the source the CLI loads from.
func (s *session) persister(ctx context.Context, cfg store.Config) (persist.Persister, error) {
	switch cfg.Persistence {
	case store.PersistenceNone:
		s.logger.Warn("persistence disabled; changes are kept in memory only")
		return persist.Null{}, nil
	case store.PersistenceMongo:
		m, err := persist.NewMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, m.Close)
		s.logger.Debug("mirroring writes to mongo", "database", cfg.MongoDatabase)
		return persist.Fanout{s.store, m}, nil
	default:
		return s.store, nil
	}
}

// Close drains queued writes and reports the ones that failed.
func (s *session) Close() error {
	s.editor.Close()

	var errs []error
	for f := range s.editor.Failures() {
		s.logger.Error("persist failed", "op", f.Op.Kind, "id", f.Op.Subject(), "err", f.Err)
		errs = append(errs, f)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, c := range s.closers {
		if err := c(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close backend: %w", err))
		}
	}
	return errors.Join(errs...)
}

// finish closes sess and prints v, or the first failure if a queued write did not land.
func finish(cmd *cobra.Command, app *App, sess *session, v any) error {
	if err := sess.Close(); err != nil {
		return writeErr(cmd, err)
	}
	return writeOut(cmd, app, v)
}
