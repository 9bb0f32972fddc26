package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/flowmesh/schemaui/internal/logger"
	"github.com/flowmesh/schemaui/internal/merge"
	"github.com/flowmesh/schemaui/internal/prefs"
	"github.com/flowmesh/schemaui/internal/schema"
	"github.com/flowmesh/schemaui/internal/store"
	"github.com/flowmesh/schemaui/internal/tree"
)

// ModelHandlers exposes the per-model state containers
type ModelHandlers struct {
	registry *schema.Registry
	store    *store.Store
	prefs    *prefs.Store
	log      zerolog.Logger
}

// NewModelHandlers creates new model handlers. prefs may be nil, in which
// case preference endpoints report defaults and reject writes.
func NewModelHandlers(registry *schema.Registry, st *store.Store, p *prefs.Store) *ModelHandlers {
	return &ModelHandlers{
		registry: registry,
		store:    st,
		prefs:    p,
		log:      logger.WithComponent("http.models"),
	}
}

// ModelInfo describes one model of the schema
type ModelInfo struct {
	Name     string `json:"name"`
	JSONRoot bool   `json:"json_root"`
	Parent   string `json:"parent,omitempty"`
	Loaded   bool   `json:"loaded"`
}

// ListModelsResponse represents the response of GET /api/v1/models
type ListModelsResponse struct {
	SchemaVersion int64       `json:"schema_version"`
	Models        []ModelInfo `json:"models"`
}

// LoadRequest selects a single object when ID is set
type LoadRequest struct {
	ID any `json:"id,omitempty"`
}

// ValueRequest represents a request to write a field
type ValueRequest struct {
	XPath string `json:"xpath"`
	Value any    `json:"value"`
}

// ElementRequest addresses an array or optional object
type ElementRequest struct {
	XPath string `json:"xpath"`
}

// ExpandRequest sets the collapse state of a node; a missing Expanded toggles
type ExpandRequest struct {
	XPath    string `json:"xpath"`
	Expanded *bool  `json:"expanded,omitempty"`
}

// ResolveRequest carries one choice per conflicting xpath
type ResolveRequest struct {
	Choices map[string]merge.Choice `json:"choices"`
}

// TreeResponse represents a materialized tree
type TreeResponse struct {
	Model string       `json:"model"`
	Mode  store.Mode   `json:"mode"`
	Nodes []*tree.Node `json:"nodes"`
}

// ListModels handles GET /api/v1/models
func (h *ModelHandlers) ListModels(w http.ResponseWriter, r *http.Request) {
	doc, err := h.registry.Current()
	if err != nil {
		writeError(w, err)
		return
	}

	roots := make(map[string]bool)
	for _, name := range doc.JSONRootModels() {
		roots[name] = true
	}

	names := doc.Models()
	resp := ListModelsResponse{
		SchemaVersion: h.registry.Version(),
		Models:        make([]ModelInfo, 0, len(names)),
	}
	for _, name := range names {
		info := ModelInfo{Name: name, JSONRoot: roots[name]}
		if parent, ok := doc.FindParent(name); ok {
			info.Parent = parent.Parent
		}
		_, info.Loaded = h.store.Lookup(name)
		resp.Models = append(resp.Models, info)
	}
	writeJSON(w, http.StatusOK, resp)
}

// State handles GET /api/v1/models/{model}
func (h *ModelHandlers) State(w http.ResponseWriter, r *http.Request) {
	sl, ok := h.slice(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sl.Snapshot())
}

// Load handles POST /api/v1/models/{model}/load. An empty body reloads the
// collection; {"id": ...} fetches and selects one object.
func (h *ModelHandlers) Load(w http.ResponseWriter, r *http.Request) {
	sl, ok := h.slice(w, r)
	if !ok {
		return
	}

	var req LoadRequest
	if !decodeOptional(w, r, &req) {
		return
	}

	var err error
	if req.ID != nil {
		err = sl.LoadOne(r.Context(), req.ID)
	} else {
		err = sl.Load(r.Context())
	}
	h.reply(w, sl, err)
}

// Select handles POST /api/v1/models/{model}/select
func (h *ModelHandlers) Select(w http.ResponseWriter, r *http.Request) {
	sl, ok := h.slice(w, r)
	if !ok {
		return
	}

	var obj map[string]any
	if err := json.NewDecoder(r.Body).Decode(&obj); err != nil || obj == nil {
		writeBadRequest(w, "request body must be a JSON object")
		return
	}
	h.reply(w, sl, sl.Select(obj))
}

// Tree handles GET /api/v1/models/{model}/tree
func (h *ModelHandlers) Tree(w http.ResponseWriter, r *http.Request) {
	sl, ok := h.slice(w, r)
	if !ok {
		return
	}

	showHidden, _ := strconv.ParseBool(r.URL.Query().Get("show_hidden"))
	nodes, err := sl.Tree(showHidden)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TreeResponse{
		Model: sl.Model(),
		Mode:  sl.Snapshot().Mode,
		Nodes: nodes,
	})
}

// Expand handles POST /api/v1/models/{model}/expand
func (h *ModelHandlers) Expand(w http.ResponseWriter, r *http.Request) {
	sl, ok := h.slice(w, r)
	if !ok {
		return
	}

	var req ExpandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	expanded := false
	if req.Expanded == nil {
		expanded = sl.Expand().Toggle(req.XPath)
	} else {
		sl.Expand().Set(req.XPath, *req.Expanded)
		expanded = *req.Expanded
	}
	writeJSON(w, http.StatusOK, map[string]any{"xpath": req.XPath, "expanded": expanded})
}

// RequestEdit handles POST /api/v1/models/{model}/edit
func (h *ModelHandlers) RequestEdit(w http.ResponseWriter, r *http.Request) {
	sl, ok := h.slice(w, r)
	if !ok {
		return
	}
	h.reply(w, sl, sl.RequestEdit())
}

// SetValue handles PUT /api/v1/models/{model}/values
func (h *ModelHandlers) SetValue(w http.ResponseWriter, r *http.Request) {
	sl, ok := h.slice(w, r)
	if !ok {
		return
	}

	var req ValueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.XPath == "" {
		writeBadRequest(w, "xpath is required")
		return
	}
	h.reply(w, sl, sl.SetValue(req.XPath, req.Value))
}

// AddElement handles POST /api/v1/models/{model}/elements
func (h *ModelHandlers) AddElement(w http.ResponseWriter, r *http.Request) {
	sl, ok := h.slice(w, r)
	if !ok {
		return
	}

	var req ElementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.XPath == "" {
		writeBadRequest(w, "xpath is required")
		return
	}
	h.reply(w, sl, sl.AddElement(req.XPath))
}

// RemoveElement handles DELETE /api/v1/models/{model}/elements?xpath=
func (h *ModelHandlers) RemoveElement(w http.ResponseWriter, r *http.Request) {
	sl, ok := h.slice(w, r)
	if !ok {
		return
	}

	xp := r.URL.Query().Get("xpath")
	if xp == "" {
		writeBadRequest(w, "xpath is required")
		return
	}
	h.reply(w, sl, sl.RemoveElement(xp))
}

// Save handles POST /api/v1/models/{model}/save
func (h *ModelHandlers) Save(w http.ResponseWriter, r *http.Request) {
	sl, ok := h.slice(w, r)
	if !ok {
		return
	}
	h.reply(w, sl, sl.Save(r.Context()))
}

// Discard handles POST /api/v1/models/{model}/discard
func (h *ModelHandlers) Discard(w http.ResponseWriter, r *http.Request) {
	sl, ok := h.slice(w, r)
	if !ok {
		return
	}
	h.reply(w, sl, sl.Discard())
}

// New handles POST /api/v1/models/{model}/new
func (h *ModelHandlers) New(w http.ResponseWriter, r *http.Request) {
	sl, ok := h.slice(w, r)
	if !ok {
		return
	}
	h.reply(w, sl, sl.New())
}

// Resolve handles POST /api/v1/models/{model}/resolve
func (h *ModelHandlers) Resolve(w http.ResponseWriter, r *http.Request) {
	sl, ok := h.slice(w, r)
	if !ok {
		return
	}

	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	for xp, c := range req.Choices {
		if c != merge.KeepMine && c != merge.TakeServer {
			writeBadRequest(w, "unknown choice for "+xp+": "+string(c))
			return
		}
	}
	h.reply(w, sl, sl.ResolveConflicts(req.Choices))
}

// DismissError handles DELETE /api/v1/models/{model}/error
func (h *ModelHandlers) DismissError(w http.ResponseWriter, r *http.Request) {
	sl, ok := h.slice(w, r)
	if !ok {
		return
	}
	h.reply(w, sl, sl.DismissError())
}

// GetPrefs handles GET /api/v1/models/{model}/prefs
func (h *ModelHandlers) GetPrefs(w http.ResponseWriter, r *http.Request) {
	sl, ok := h.slice(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.preferences(sl.Model()))
}

// PutPrefs handles PUT /api/v1/models/{model}/prefs
func (h *ModelHandlers) PutPrefs(w http.ResponseWriter, r *http.Request) {
	sl, ok := h.slice(w, r)
	if !ok {
		return
	}
	if h.prefs == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Status: "error", Message: "preference store not available"})
		return
	}

	var p prefs.Preferences
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if err := h.prefs.Put(sl.Model(), p); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.prefs.Get(sl.Model()))
}

func (h *ModelHandlers) preferences(model string) prefs.Preferences {
	if h.prefs == nil {
		return prefs.Preferences{PageSize: prefs.DefaultPageSize}
	}
	return h.prefs.Get(model)
}

// slice resolves the {model} URL parameter, writing the error reply itself
func (h *ModelHandlers) slice(w http.ResponseWriter, r *http.Request) (*store.Slice, bool) {
	sl, err := h.store.Slice(chi.URLParam(r, "model"))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return sl, true
}

// reply answers a command with the resulting state, or the error
func (h *ModelHandlers) reply(w http.ResponseWriter, sl *store.Slice, err error) {
	if err != nil {
		h.log.Debug().Err(err).Str("model", sl.Model()).Msg("Command rejected")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sl.Snapshot())
}

// decodeOptional decodes a JSON body if there is one
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || err == io.EOF {
		return true
	}
	writeBadRequest(w, "invalid request body: "+err.Error())
	return false
}
