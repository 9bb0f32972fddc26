package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/flowmesh/schemaui/internal/logger"
	"github.com/flowmesh/schemaui/internal/metrics"
	"github.com/flowmesh/schemaui/internal/schema"
)

// SchemaSource fetches the current schema document from upstream
type SchemaSource interface {
	Schema(ctx context.Context) ([]byte, error)
}

// SchemaHandlers serves and reloads the schema document
type SchemaHandlers struct {
	registry *schema.Registry
	source   SchemaSource
	metrics  *metrics.NodeMetrics
	log      zerolog.Logger
}

// NewSchemaHandlers creates new schema handlers. Reload is rejected when
// source is nil.
func NewSchemaHandlers(registry *schema.Registry, source SchemaSource, m *metrics.NodeMetrics) *SchemaHandlers {
	return &SchemaHandlers{
		registry: registry,
		source:   source,
		metrics:  m,
		log:      logger.WithComponent("http.schema"),
	}
}

// SchemaInfoResponse describes the active schema
type SchemaInfoResponse struct {
	Version  int64     `json:"version"`
	LoadedAt time.Time `json:"loaded_at"`
	Models   []string  `json:"models"`
	Roots    []string  `json:"json_root_models"`
}

// Document handles GET /schema.json
func (h *SchemaHandlers) Document(w http.ResponseWriter, r *http.Request) {
	doc, err := h.registry.Current()
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(doc.Raw())
}

// Info handles GET /api/v1/schema
func (h *SchemaHandlers) Info(w http.ResponseWriter, r *http.Request) {
	doc, err := h.registry.Current()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.info(doc))
}

// Reload handles POST /api/v1/schema/reload
func (h *SchemaHandlers) Reload(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Status: "error", Message: "schema source not configured"})
		return
	}

	data, err := h.source.Schema(r.Context())
	if err != nil {
		h.metrics.RecordSchemaLoad("upstream", h.registry.Version(), err)
		writeError(w, err)
		return
	}
	doc, err := h.registry.Load(data)
	h.metrics.RecordSchemaLoad("upstream", h.registry.Version(), err)
	if err != nil {
		writeError(w, err)
		return
	}

	h.log.Info().Int64("version", h.registry.Version()).Msg("Schema reloaded")
	writeJSON(w, http.StatusOK, h.info(doc))
}

func (h *SchemaHandlers) info(doc *schema.Document) SchemaInfoResponse {
	return SchemaInfoResponse{
		Version:  h.registry.Version(),
		LoadedAt: h.registry.LoadedAt(),
		Models:   doc.Models(),
		Roots:    doc.JSONRootModels(),
	}
}
