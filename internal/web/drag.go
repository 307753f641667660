package web

import (
	"net/http"

	"pagetree-cli/internal/drag"

	"github.com/google/uuid"
)

// handleDragStart opens a server-side gesture on the page and returns its id. Disabled
// gestures (locked or unknown items) are rejected and no session is kept.
func (s *Server) handleDragStart(w http.ResponseWriter, r *http.Request) {
	pageID, err := s.pageID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var item drag.Item
	if err := decodeJSON(r, &item); err != nil {
		writeError(w, err)
		return
	}
	sess := drag.NewSession(pageID, s.ed, s.ed)
	if err := sess.Start(item); err != nil {
		writeError(w, err)
		return
	}
	id := uuid.New().String()
	s.mu.Lock()
	s.pruneSessionsLocked()
	s.sessions[id] = &dragEntry{pageID: pageID, s: sess, lastSeen: s.now()}
	s.mu.Unlock()
	s.logger.Debug("drag start", "session", id, "page", pageID, "kind", item.Kind)
	writeJSON(w, http.StatusCreated, map[string]any{"sessionId": id, "item": item})
}

// dragEntry looks up a live session and marks it as seen. Idle sessions are gone.
func (s *Server) dragEntry(id string) (*dragEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneSessionsLocked()
	e, ok := s.sessions[id]
	if ok {
		e.lastSeen = s.now()
	}
	return e, ok
}

// pruneSessionsLocked drops sessions idle for longer than dragIdle. Callers hold s.mu.
func (s *Server) pruneSessionsLocked() {
	now := s.now()
	for id, e := range s.sessions {
		if now.Sub(e.lastSeen) > s.dragIdle {
			delete(s.sessions, id)
			s.logger.Debug("drag session expired", "session", id, "page", e.pageID)
		}
	}
}

func (s *Server) dropSession(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

func (s *Server) handleDragOver(w http.ResponseWriter, r *http.Request) {
	e, ok := s.dragEntry(param(r, "sessionID"))
	if !ok {
		writeError(w, drag.ErrNotActive)
		return
	}
	var target drag.Target
	if err := decodeJSON(r, &target); err != nil {
		writeError(w, err)
		return
	}
	e.mu.Lock()
	fb, err := e.s.Over(target)
	e.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": fb})
}

// handleDragEnd drops over the posted target. The session is gone afterwards, whether or
// not the dispatched operation succeeded.
func (s *Server) handleDragEnd(w http.ResponseWriter, r *http.Request) {
	id := param(r, "sessionID")
	e, ok := s.dragEntry(id)
	if !ok {
		writeError(w, drag.ErrNotActive)
		return
	}
	var target drag.Target
	if err := decodeJSON(r, &target); err != nil {
		writeError(w, err)
		return
	}
	e.mu.Lock()
	out, err := e.s.End(target)
	e.mu.Unlock()
	s.dropSession(id)
	if err != nil {
		writeError(w, err)
		return
	}
	s.logger.Debug("drag end", "session", id, "gesture", out.Gesture, "dispatched", out.Dispatched)
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

func (s *Server) handleDragCancel(w http.ResponseWriter, r *http.Request) {
	id := param(r, "sessionID")
	e, ok := s.dragEntry(id)
	if !ok {
		writeError(w, drag.ErrNotActive)
		return
	}
	e.mu.Lock()
	e.s.Cancel()
	e.mu.Unlock()
	s.dropSession(id)
	w.WriteHeader(http.StatusNoContent)
}
