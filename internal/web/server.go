// Package web exposes the editor over a small JSON HTTP API: the derived forest, the node
// operations and server-side drag sessions.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"pagetree-cli/internal/drag"
	"pagetree-cli/internal/editor"
	"pagetree-cli/internal/format"
	"pagetree-cli/internal/model"
	"pagetree-cli/internal/mutate"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Palette lists the component definitions offered for insertion.
type Palette interface {
	List() []model.Definition
}

type ServerConfig struct {
	Editor  *editor.Editor
	Palette Palette
	Logger  *log.Logger

	// DragIdleTimeout drops drag sessions that saw no request for this long. Default 10m.
	DragIdleTimeout time.Duration

	now func() time.Time
}

const defaultDragIdleTimeout = 10 * time.Minute

type Server struct {
	ed      *editor.Editor
	palette Palette
	logger  *log.Logger

	mu       sync.Mutex
	sessions map[string]*dragEntry
	dragIdle time.Duration
	now      func() time.Time

	persistFailures atomic.Int64
}

type dragEntry struct {
	mu     sync.Mutex
	pageID string
	s      *drag.Session

	// lastSeen is guarded by Server.mu.
	lastSeen time.Time
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Editor == nil {
		return nil, errors.New("web: editor is nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.DragIdleTimeout <= 0 {
		cfg.DragIdleTimeout = defaultDragIdleTimeout
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	return &Server{
		ed:       cfg.Editor,
		palette:  cfg.Palette,
		logger:   cfg.Logger,
		sessions: map[string]*dragEntry{},
		dragIdle: cfg.DragIdleTimeout,
		now:      cfg.now,
	}, nil
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", s.handleHealth)
	r.Get("/definitions", s.handleDefinitions)
	r.Get("/pages", s.handlePages)
	r.Route("/pages/{pageID}", func(r chi.Router) {
		r.Get("/forest", s.handleForest)
		r.Get("/nodes", s.handleNodes)
		r.Post("/nodes", s.handleInsert)
		r.Post("/drag", s.handleDragStart)
	})
	r.Route("/nodes/{nodeID}", func(r chi.Router) {
		r.Get("/", s.handleNode)
		r.Patch("/", s.handleUpdate)
		r.Delete("/", s.handleRemove)
		r.Post("/move", s.handleMove)
		r.Post("/duplicate", s.handleDuplicate)
	})
	r.Route("/drag/{sessionID}", func(r chi.Router) {
		r.Post("/over", s.handleDragOver)
		r.Post("/end", s.handleDragEnd)
		r.Delete("/", s.handleDragCancel)
	})
	return r
}

// WatchFailures logs persistence failures until ctx is done or the editor is closed.
func (s *Server) WatchFailures(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-s.ed.Failures():
			if !ok {
				return
			}
			s.persistFailures.Add(1)
			s.logger.Error("persist failed", "op", f.Op.Kind, "id", f.Op.Subject(), "err", f.Err)
		}
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"dur", time.Since(start).Round(time.Microsecond),
			"req", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "persistFailures": s.persistFailures.Load()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = format.WriteJSON(w, v, false)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest{err: err}
	}
	return nil
}

type badRequest struct{ err error }

func (e badRequest) Error() string { return "invalid request body: " + e.err.Error() }
func (e badRequest) Unwrap() error { return e.err }

// statusFor maps engine error codes onto HTTP statuses.
func statusFor(err error) int {
	var br badRequest
	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest
	case errors.Is(err, drag.ErrNotActive), errors.Is(err, drag.ErrNotIdle):
		return http.StatusConflict
	}
	switch mutate.CodeOf(err) {
	case mutate.CodeNotFound:
		return http.StatusNotFound
	case mutate.CodeLocked:
		return http.StatusLocked
	case mutate.CodeInvalidTarget, mutate.CodeInvalidProperty:
		return http.StatusUnprocessableEntity
	case mutate.CodeCycleDetected, mutate.CodeHasChildren:
		return http.StatusConflict
	case mutate.CodePersistenceFailed:
		return http.StatusServiceUnavailable
	}
	if errors.Is(err, drag.ErrDisabled) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	code := mutate.CodeOf(err)
	var br badRequest
	if errors.As(err, &br) {
		code = "BAD_REQUEST"
	} else if errors.Is(err, drag.ErrNotActive) || errors.Is(err, drag.ErrNotIdle) {
		code = "DRAG_STATE"
	}
	writeJSON(w, statusFor(err), map[string]any{
		"error": map[string]any{"code": code, "message": err.Error()},
	})
}

func param(r *http.Request, name string) string {
	return strings.TrimSpace(chi.URLParam(r, name))
}
