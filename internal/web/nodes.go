package web

import (
	"net/http"
	"strings"

	"pagetree-cli/internal/model"
	"pagetree-cli/internal/mutate"
	"pagetree-cli/internal/tree"
)

func (s *Server) handleDefinitions(w http.ResponseWriter, r *http.Request) {
	defs := []model.Definition{}
	if s.palette != nil {
		defs = append(defs, s.palette.List()...)
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": defs})
}

func (s *Server) handlePages(w http.ResponseWriter, r *http.Request) {
	pages := s.ed.Pages()
	if pages == nil {
		pages = []model.Page{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": pages})
}

func (s *Server) pageID(r *http.Request) (string, error) {
	id := param(r, "pageID")
	for _, p := range s.ed.Pages() {
		if p.ID == id {
			return id, nil
		}
	}
	return "", mutate.NotFoundError{Kind: "page", ID: id}
}

// handleForest returns the derived forest. ?query= and ?def= narrow it to matching nodes
// and their ancestors.
func (s *Server) handleForest(w http.ResponseWriter, r *http.Request) {
	pageID, err := s.pageID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("query"))
	defs := q["def"]
	if query == "" && len(defs) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"data": s.ed.Forest(pageID)})
		return
	}
	nodes := s.ed.Nodes(pageID)
	if query != "" {
		nodes = tree.Filter(nodes, tree.MatchQuery(query))
	}
	if len(defs) > 0 {
		nodes = tree.Filter(nodes, tree.MatchDefinitions(defs...))
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": tree.Build(nodes)})
}

func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	pageID, err := s.pageID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": s.ed.Nodes(pageID)})
}

func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	id := param(r, "nodeID")
	n, ok := s.ed.Node(id)
	if !ok {
		writeError(w, mutate.NotFoundError{Kind: "node", ID: id})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": n})
}

type insertRequest struct {
	ID           string         `json:"id"`
	DefinitionID string         `json:"definitionRef"`
	ParentID     *string        `json:"parentId"`
	Index        *int           `json:"index"`
	Properties   map[string]any `json:"properties"`
	Label        *string        `json:"displayLabel"`
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	pageID, err := s.pageID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req insertRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := s.ed.Insert(model.Node{
		ID:           req.ID,
		PageID:       pageID,
		DefinitionID: req.DefinitionID,
		Properties:   req.Properties,
		Label:        req.Label,
	}, mutate.Position{ParentID: req.ParentID, Index: req.Index})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resultBody(res))
}

type updateRequest struct {
	Properties map[string]any `json:"properties"`
	Locked     *bool          `json:"isLocked"`
	Hidden     *bool          `json:"isHidden"`
	Label      *string        `json:"displayLabel"`
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := s.ed.Update(param(r, "nodeID"), mutate.Patch{
		Properties: req.Properties,
		Locked:     req.Locked,
		Hidden:     req.Hidden,
		Label:      req.Label,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resultBody(res))
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	var policy mutate.RemovePolicy
	if raw := r.URL.Query().Get("policy"); strings.TrimSpace(raw) != "" {
		p, err := mutate.ParseRemovePolicy(raw)
		if err != nil {
			writeError(w, badRequest{err: err})
			return
		}
		policy = p
	}
	res, err := s.ed.Remove(param(r, "nodeID"), policy)
	if err != nil {
		writeError(w, err)
		return
	}
	body := resultBody(res.Result)
	body["removedIds"] = res.RemovedIDs
	body["promotedIds"] = res.PromotedIDs
	writeJSON(w, http.StatusOK, body)
}

type moveRequest struct {
	ParentID *string `json:"parentId"`
	Index    int     `json:"index"`
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := s.ed.Move(param(r, "nodeID"), req.ParentID, req.Index)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resultBody(res))
}

func (s *Server) handleDuplicate(w http.ResponseWriter, r *http.Request) {
	res, err := s.ed.Duplicate(param(r, "nodeID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resultBody(res))
}

func resultBody(res mutate.Result) map[string]any {
	reordered := res.OrderByID
	if reordered == nil {
		reordered = map[string]int{}
	}
	return map[string]any{"data": res.Node, "changed": res.Changed, "reordered": reordered}
}
