package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/ritzau/msedit/pkg/auth"
	"github.com/ritzau/msedit/pkg/history"
	"github.com/ritzau/msedit/pkg/logging"
	"github.com/ritzau/msedit/pkg/model"
	"github.com/ritzau/msedit/pkg/session"
)

// UserHeader names the acting user of an edit request
const UserHeader = "X-User"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("failed to encode response", "error", err)
	}
}

// writeError maps session and model errors to HTTP status codes
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var se *session.Error
	switch {
	case errors.Is(err, model.ErrNotFound), errors.Is(err, history.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, auth.ErrMissingToken), errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrTokenExpired):
		status = http.StatusUnauthorized
	case session.IsUnauthorized(err):
		status = http.StatusForbidden
	case errors.Is(err, ErrNoSession):
		status = http.StatusServiceUnavailable
	case errors.As(err, &se):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		logging.ErrorContext(r.Context(), "request failed", "error", err)
	}
	http.Error(w, err.Error(), status)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// begin resolves the open session and the acting user
func (s *Server) begin(w http.ResponseWriter, r *http.Request) (*session.EditingSession, session.User, bool) {
	sess, err := s.current()
	if err != nil {
		writeError(w, r, err)
		return nil, "", false
	}
	if s.opts.Tokens != nil {
		name, err := s.opts.Tokens.FromHeader(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, r, err)
			return nil, "", false
		}
		return sess, session.User(name), true
	}
	user := session.User(r.Header.Get(UserHeader))
	if user == "" {
		user = s.opts.DefaultUser
	}
	return sess, user, true
}

func notFound(w http.ResponseWriter, kind, raw string) {
	http.Error(w, kind+" "+raw+" not found", http.StatusNotFound)
}

func (s *Server) boundary(w http.ResponseWriter, sess *session.EditingSession, raw string) (*model.Boundary, bool) {
	var b *model.Boundary
	if id, err := uuid.Parse(raw); err == nil {
		sess.View(func(ms *model.ModelSystem) { b = ms.FindBoundary(id) })
	}
	if b == nil {
		notFound(w, "boundary", raw)
		return nil, false
	}
	return b, true
}

func (s *Server) node(w http.ResponseWriter, sess *session.EditingSession, raw string) (*model.Node, bool) {
	var n *model.Node
	if id, err := uuid.Parse(raw); err == nil {
		sess.View(func(ms *model.ModelSystem) { n = ms.FindNode(id) })
	}
	if n == nil {
		notFound(w, "node", raw)
		return nil, false
	}
	return n, true
}

func (s *Server) link(w http.ResponseWriter, sess *session.EditingSession, raw string) (model.Link, bool) {
	var l model.Link
	if id, err := uuid.Parse(raw); err == nil {
		sess.View(func(ms *model.ModelSystem) { l = ms.FindLink(id) })
	}
	if l == nil {
		notFound(w, "link", raw)
		return nil, false
	}
	return l, true
}

func (s *Server) block(w http.ResponseWriter, sess *session.EditingSession, kind, raw string) (session.Block, bool) {
	var block session.Block
	if id, err := uuid.Parse(raw); err == nil {
		sess.View(func(ms *model.ModelSystem) {
			if kind == "comments" {
				if c, _ := ms.FindCommentBlock(id); c != nil {
					block = c
				}
			} else if d, _ := ms.FindDocumentationBlock(id); d != nil {
				block = d
			}
		})
	}
	if block == nil {
		notFound(w, kind, raw)
		return nil, false
	}
	return block, true
}

func (s *Server) handleModelSystem(w http.ResponseWriter, r *http.Request) {
	sess, err := s.current()
	if err != nil {
		writeError(w, r, err)
		return
	}
	var v ModelSystemView
	sess.View(func(ms *model.ModelSystem) { v = viewModelSystem(ms) })
	v.Dirty = sess.Dirty()
	v.UndoOps = sess.UndoOps()
	v.RedoOps = sess.RedoOps()
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	sess, err := s.current()
	if err != nil {
		writeError(w, r, err)
		return
	}
	focus := r.URL.Query().Get("focus")
	if focus == "" {
		var data *GraphData
		sess.View(func(ms *model.ModelSystem) { data = buildGraphData(ms) })
		writeJSON(w, http.StatusOK, data)
		return
	}

	depth := 1
	if raw := r.URL.Query().Get("depth"); raw != "" {
		if depth, err = strconv.Atoi(raw); err != nil || depth < 0 {
			http.Error(w, "invalid depth "+raw, http.StatusBadRequest)
			return
		}
	}
	n, ok := s.node(w, sess, focus)
	if !ok {
		return
	}
	var data *GraphData
	sess.View(func(ms *model.ModelSystem) { data = focusGraph(buildGraphData(ms), ms, n, depth) })
	writeJSON(w, http.StatusOK, data)
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	sess, err := s.current()
	if err != nil {
		writeError(w, r, err)
		return
	}
	var v AnalysisView
	sess.View(func(ms *model.ModelSystem) { v = buildAnalysis(ms) })
	writeJSON(w, http.StatusOK, v)
}

type created struct {
	ID         string   `json:"id"`
	Parameters []string `json:"parameters,omitempty"`
}

func (s *Server) handleAddBoundary(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Parent string `json:"parent"`
		Name   string `json:"name"`
	}
	if !decode(w, r, &req) {
		return
	}
	sess, user, ok := s.begin(w, r)
	if !ok {
		return
	}
	parent, ok := s.boundary(w, sess, req.Parent)
	if !ok {
		return
	}
	b, err := sess.AddBoundary(user, parent, req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created{ID: b.ID().String()})
}

func (s *Server) handleUpdateBoundary(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}
	if !decode(w, r, &req) {
		return
	}
	sess, user, ok := s.begin(w, r)
	if !ok {
		return
	}
	b, ok := s.boundary(w, sess, mux.Vars(r)["id"])
	if !ok {
		return
	}
	if req.Name != nil {
		if err := sess.SetBoundaryName(user, b, *req.Name); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if req.Description != nil {
		if err := sess.SetBoundaryDescription(user, b, *req.Description); err != nil {
			writeError(w, r, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveBoundary(w http.ResponseWriter, r *http.Request) {
	sess, user, ok := s.begin(w, r)
	if !ok {
		return
	}
	b, ok := s.boundary(w, sess, mux.Vars(r)["id"])
	if !ok {
		return
	}
	if err := sess.RemoveBoundary(user, b); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Boundary string          `json:"boundary"`
		Name     string          `json:"name"`
		Location model.Rectangle `json:"location"`
	}
	if !decode(w, r, &req) {
		return
	}
	sess, user, ok := s.begin(w, r)
	if !ok {
		return
	}
	b, ok := s.boundary(w, sess, req.Boundary)
	if !ok {
		return
	}
	start, err := sess.AddModelSystemStart(user, b, req.Name, req.Location)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created{ID: start.ID().String()})
}

func (s *Server) handleRemoveStart(w http.ResponseWriter, r *http.Request) {
	sess, user, ok := s.begin(w, r)
	if !ok {
		return
	}
	start, ok := s.node(w, sess, mux.Vars(r)["id"])
	if !ok {
		return
	}
	if err := sess.RemoveStart(user, start); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddNode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Boundary   string          `json:"boundary"`
		Name       string          `json:"name"`
		Type       string          `json:"type"`
		Location   model.Rectangle `json:"location"`
		Parameters bool            `json:"parameters"`
	}
	if !decode(w, r, &req) {
		return
	}
	sess, user, ok := s.begin(w, r)
	if !ok {
		return
	}
	b, ok := s.boundary(w, sess, req.Boundary)
	if !ok {
		return
	}

	if !req.Parameters {
		n, err := sess.AddNode(user, b, req.Name, model.TypeName(req.Type), req.Location)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, created{ID: n.ID().String()})
		return
	}

	n, params, err := sess.AddNodeGenerateParameters(user, b, req.Name, model.TypeName(req.Type), req.Location)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := created{ID: n.ID().String(), Parameters: make([]string, len(params))}
	for i, p := range params {
		resp.Parameters[i] = p.ID().String()
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleUpdateNode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        *string          `json:"name"`
		Description *string          `json:"description"`
		Location    *model.Rectangle `json:"location"`
		Disabled    *bool            `json:"disabled"`
		Parameter   *string          `json:"parameter"`
	}
	if !decode(w, r, &req) {
		return
	}
	sess, user, ok := s.begin(w, r)
	if !ok {
		return
	}
	n, ok := s.node(w, sess, mux.Vars(r)["id"])
	if !ok {
		return
	}

	var steps []func() error
	if req.Name != nil {
		steps = append(steps, func() error { return sess.SetNodeName(user, n, *req.Name) })
	}
	if req.Description != nil {
		steps = append(steps, func() error { return sess.SetNodeDescription(user, n, *req.Description) })
	}
	if req.Location != nil {
		steps = append(steps, func() error { return sess.SetNodeLocation(user, n, *req.Location) })
	}
	if req.Disabled != nil {
		steps = append(steps, func() error { return sess.SetNodeDisabled(user, n, *req.Disabled) })
	}
	if req.Parameter != nil {
		steps = append(steps, func() error { return sess.SetParameterValue(user, n, *req.Parameter) })
	}
	for _, step := range steps {
		if err := step(); err != nil {
			writeError(w, r, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveNode(w http.ResponseWriter, r *http.Request) {
	sess, user, ok := s.begin(w, r)
	if !ok {
		return
	}
	n, ok := s.node(w, sess, mux.Vars(r)["id"])
	if !ok {
		return
	}
	var err error
	if r.URL.Query().Get("parameters") == "true" {
		err = sess.RemoveNodeGenerateParameters(user, n)
	} else {
		err = sess.RemoveNode(user, n)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddLink(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Origin      string `json:"origin"`
		Hook        string `json:"hook"`
		Destination string `json:"destination"`
	}
	if !decode(w, r, &req) {
		return
	}
	sess, user, ok := s.begin(w, r)
	if !ok {
		return
	}
	origin, ok := s.node(w, sess, req.Origin)
	if !ok {
		return
	}
	dest, ok := s.node(w, sess, req.Destination)
	if !ok {
		return
	}
	hook := origin.Hook(req.Hook)
	if hook == nil {
		http.Error(w, "hook "+req.Hook+" not found on "+origin.Name(), http.StatusBadRequest)
		return
	}
	l, err := sess.AddLink(user, origin, hook, dest)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created{ID: l.ID().String()})
}

func (s *Server) handleUpdateLink(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Disabled *bool `json:"disabled"`
	}
	if !decode(w, r, &req) {
		return
	}
	sess, user, ok := s.begin(w, r)
	if !ok {
		return
	}
	l, ok := s.link(w, sess, mux.Vars(r)["id"])
	if !ok {
		return
	}
	if req.Disabled != nil {
		if err := sess.SetLinkDisabled(user, l, *req.Disabled); err != nil {
			writeError(w, r, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveLink(w http.ResponseWriter, r *http.Request) {
	sess, user, ok := s.begin(w, r)
	if !ok {
		return
	}
	l, ok := s.link(w, sess, mux.Vars(r)["id"])
	if !ok {
		return
	}
	if err := sess.RemoveLink(user, l); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveDestination(w http.ResponseWriter, r *http.Request) {
	sess, user, ok := s.begin(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	l, ok := s.link(w, sess, vars["id"])
	if !ok {
		return
	}
	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		http.Error(w, "invalid index", http.StatusBadRequest)
		return
	}
	if err := sess.RemoveLinkDestination(user, l, index); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddBlock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Boundary string          `json:"boundary"`
		Text     string          `json:"text"`
		Location model.Rectangle `json:"location"`
	}
	if !decode(w, r, &req) {
		return
	}
	sess, user, ok := s.begin(w, r)
	if !ok {
		return
	}
	b, ok := s.boundary(w, sess, req.Boundary)
	if !ok {
		return
	}

	var id uuid.UUID
	if mux.Vars(r)["kind"] == "comments" {
		c, err := sess.AddCommentBlock(user, b, req.Text, req.Location)
		if err != nil {
			writeError(w, r, err)
			return
		}
		id = c.ID()
	} else {
		d, err := sess.AddDocumentationBlock(user, b, req.Text, req.Location)
		if err != nil {
			writeError(w, r, err)
			return
		}
		id = d.ID()
	}
	writeJSON(w, http.StatusCreated, created{ID: id.String()})
}

func (s *Server) handleUpdateBlock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text     *string          `json:"text"`
		Location *model.Rectangle `json:"location"`
	}
	if !decode(w, r, &req) {
		return
	}
	sess, user, ok := s.begin(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	block, ok := s.block(w, sess, vars["kind"], vars["id"])
	if !ok {
		return
	}
	if req.Text != nil {
		if err := sess.SetBlockText(user, block, *req.Text); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if req.Location != nil {
		if err := sess.SetBlockLocation(user, block, *req.Location); err != nil {
			writeError(w, r, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveBlock(w http.ResponseWriter, r *http.Request) {
	sess, user, ok := s.begin(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	block, ok := s.block(w, sess, vars["kind"], vars["id"])
	if !ok {
		return
	}
	var err error
	switch b := block.(type) {
	case *model.CommentBlock:
		err = sess.RemoveCommentBlock(user, b)
	case *model.DocumentationBlock:
		err = sess.RemoveDocumentationBlock(user, b)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	sess, user, ok := s.begin(w, r)
	if !ok {
		return
	}
	if err := sess.Undo(user); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	sess, user, ok := s.begin(w, r)
	if !ok {
		return
	}
	if err := sess.Redo(user); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	sess, user, ok := s.begin(w, r)
	if !ok {
		return
	}
	if err := sess.Save(user); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// defaultRunLimit bounds GET /api/runs without a limit parameter
const defaultRunLimit = 50

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.opts.History == nil {
		http.Error(w, "run history is disabled", http.StatusNotFound)
		return
	}
	limit := defaultRunLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "invalid limit "+raw, http.StatusBadRequest)
			return
		}
		limit = n
	}
	records, err := s.opts.History.List(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.opts.History == nil {
		http.Error(w, "run history is disabled", http.StatusNotFound)
		return
	}
	record, err := s.opts.History.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}
