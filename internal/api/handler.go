package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyaneshwarpardhi/bandtree/internal/catalog"
	"github.com/gyaneshwarpardhi/bandtree/internal/command"
	"github.com/gyaneshwarpardhi/bandtree/internal/config"
	"github.com/gyaneshwarpardhi/bandtree/internal/editor"
	"github.com/gyaneshwarpardhi/bandtree/internal/export"
	"github.com/gyaneshwarpardhi/bandtree/internal/metrics"
	"github.com/gyaneshwarpardhi/bandtree/internal/projection"
)

const (
	maxBatchSize   = 100
	maxImportBytes = 4 << 20
)

// Handler holds all HTTP handler dependencies.
type Handler struct {
	ed       *editor.Editor
	loader   *config.Loader
	mux      *http.ServeMux
	upgrader websocket.Upgrader
}

// New creates an HTTP handler and registers all routes.
func New(ed *editor.Editor, loader *config.Loader) http.Handler {
	h := &Handler{
		ed:     ed,
		loader: loader,
		mux:    http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	h.mux.HandleFunc("POST /v1/trees", h.createTree)
	h.mux.HandleFunc("GET /v1/trees", h.listTrees)
	h.mux.HandleFunc("GET /v1/trees/{id}", h.getTree)
	h.mux.HandleFunc("DELETE /v1/trees/{id}", h.closeTree)
	h.mux.HandleFunc("POST /v1/trees/{id}/commands", h.applyCommand)
	h.mux.HandleFunc("POST /v1/trees/{id}/commands/batch", h.applyBatch)
	h.mux.HandleFunc("POST /v1/trees/{id}/drafts/{node}/flush", h.flushDraft)
	h.mux.HandleFunc("GET /v1/trees/{id}/projection", h.getProjection)
	h.mux.HandleFunc("GET /v1/trees/{id}/validation", h.getValidation)
	h.mux.HandleFunc("GET /v1/trees/{id}/leaves", h.getLeaves)
	h.mux.HandleFunc("GET /v1/trees/{id}/export", h.exportTree)
	h.mux.HandleFunc("GET /v1/trees/{id}/stream", h.stream)
	h.mux.HandleFunc("GET /v1/bands", h.listBands)
	h.mux.HandleFunc("POST /v1/config/reload", h.reloadConfig)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(h.mux)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*editor.Session, bool) {
	s, err := h.ed.Session(r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return nil, false
	}
	return s, true
}

// POST /v1/trees — open a new tree, or import one from the body
// (?format=flat|nested|yaml).
func (h *Handler) createTree(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}

	var s *editor.Session
	if len(body) == 0 {
		s, err = h.ed.Open()
	} else {
		f, ferr := export.ParseFormat(r.URL.Query().Get("format"))
		if ferr != nil {
			writeErr(w, ferr)
			return
		}
		store, derr := export.Decode(body, f)
		if derr != nil {
			writeError(w, http.StatusUnprocessableEntity, derr.Error())
			return
		}
		s, err = h.ed.OpenStore(store)
	}
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.Snapshot())
}

// GET /v1/trees — ids of open trees.
func (h *Handler) listTrees(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"trees": h.ed.IDs()})
}

// GET /v1/trees/{id} — canonical node list.
func (h *Handler) getTree(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	nodes, err := s.Nodes(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tree_id":  s.ID(),
		"revision": s.Snapshot().Revision,
		"nodes":    nodes,
	})
}

// DELETE /v1/trees/{id}
func (h *Handler) closeTree(w http.ResponseWriter, r *http.Request) {
	if err := h.ed.Close(r.PathValue("id")); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /v1/trees/{id}/commands — synchronous single command.
func (h *Handler) applyCommand(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var cmd command.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if cmd.ID == "" {
		cmd.ID = uuid.New().String()
	}
	out, err := s.Apply(r.Context(), cmd)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// POST /v1/trees/{id}/commands/batch — up to 100 commands applied in order.
func (h *Handler) applyBatch(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var cmds []command.Command
	if err := json.NewDecoder(r.Body).Decode(&cmds); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if len(cmds) == 0 {
		writeError(w, http.StatusBadRequest, "batch must contain at least one command")
		return
	}
	if len(cmds) > maxBatchSize {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("batch size %d exceeds max %d", len(cmds), maxBatchSize))
		return
	}
	for i := range cmds {
		if cmds[i].ID == "" {
			cmds[i].ID = uuid.New().String()
		}
	}

	outs, snap, err := s.ApplyBatch(r.Context(), cmds)
	var be *editor.BatchError
	switch {
	case errors.As(err, &be):
		writeJSON(w, statusFor(be.Err), map[string]interface{}{
			"error":    be.Err.Error(),
			"index":    be.Index,
			"applied":  len(outs),
			"snapshot": snap,
		})
	case err != nil:
		writeErr(w, err)
	default:
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"applied":  len(outs),
			"results":  outs,
			"snapshot": snap,
		})
	}
}

// POST /v1/trees/{id}/drafts/{node}/flush — commit a pending question draft now.
func (h *Handler) flushDraft(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	flushed := s.FlushDraft(r.PathValue("node"))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"flushed":  flushed,
		"snapshot": s.Snapshot(),
	})
}

// projectionResponse is the render-ready view with its revision.
type projectionResponse struct {
	TreeID   string `json:"tree_id"`
	Revision uint64 `json:"revision"`
	*projection.Projection
}

// GET /v1/trees/{id}/projection
func (h *Handler) getProjection(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	snap := s.Snapshot()
	writeJSON(w, http.StatusOK, projectionResponse{
		TreeID:     snap.TreeID,
		Revision:   snap.Revision,
		Projection: snap.Projection,
	})
}

// GET /v1/trees/{id}/validation
func (h *Handler) getValidation(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	res, err := s.Validate(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /v1/trees/{id}/leaves
func (h *Handler) getLeaves(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	leaves, err := s.Leaves(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"leaves": leaves})
}

// GET /v1/trees/{id}/export?format=flat|nested|yaml&require_valid=true
//
// The ETag is the BLAKE3 fingerprint of the canonical node list.
func (h *Handler) exportTree(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	f, err := export.ParseFormat(q.Get("format"))
	if err != nil {
		writeErr(w, err)
		return
	}
	requireValid := false
	if v := q.Get("require_valid"); v != "" {
		if requireValid, err = strconv.ParseBool(v); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("require_valid: %s", err))
			return
		}
	}

	exp, res, err := s.Export(r.Context(), f, requireValid)
	if err != nil {
		writeErr(w, err)
		return
	}
	if exp == nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":      res.Message,
			"validation": res,
		})
		return
	}

	etag := strconv.Quote(exp.Fingerprint)
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", exp.Format.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(exp.Data)
}

// GET /v1/bands?q= — band catalog, fuzzy filtered when q is set.
func (h *Handler) listBands(w http.ResponseWriter, r *http.Request) {
	bands := h.ed.Catalog().Search(r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(bands),
		"bands": bands,
	})
}

// POST /v1/config/reload — re-read the config file and swap the band catalog.
func (h *Handler) reloadConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.loader.Reload()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	cat := catalog.New(cfg.Bands)
	h.ed.SwapCatalog(cat)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded":    true,
		"version":     cfg.Version,
		"bands_count": cat.Len(),
	})
}

// GET /healthz — always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz — 503 if command queues are >80% full.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	util := h.ed.Load()
	metrics.QueueUtilization.Set(util)
	if util > 0.8 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":            "overloaded",
			"queue_utilization": util,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ready",
		"trees_open":        len(h.ed.IDs()),
		"queue_utilization": util,
	})
}
