package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/flowmesh/schemaui/internal/backend"
	"github.com/flowmesh/schemaui/internal/filter"
	"github.com/flowmesh/schemaui/internal/merge"
	"github.com/flowmesh/schemaui/internal/prefs"
	"github.com/flowmesh/schemaui/internal/schema"
	"github.com/flowmesh/schemaui/internal/store"
	"github.com/flowmesh/schemaui/internal/tree"
	"github.com/flowmesh/schemaui/internal/xpath"
)

// UnsupportedLayout is the placeholder returned for models the schema does
// not describe
const UnsupportedLayout = "Unsupported Layout"

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Status      string                   `json:"status"`
	Message     string                   `json:"message"`
	Placeholder string                   `json:"placeholder,omitempty"`
	Details     []schema.ValidationError `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// status already written
		return
	}
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Status: "error", Message: message})
}

// writeError writes an error response based on the error type
func writeError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Status: "error", Message: err.Error()}
	statusCode := statusOf(err)

	var nf schema.NotFoundError
	if errors.As(err, &nf) {
		resp.Placeholder = UnsupportedLayout
	}
	var verrs schema.ValidationErrors
	if errors.As(err, &verrs) {
		resp.Details = verrs
	}

	writeJSON(w, statusCode, resp)
}

func statusOf(err error) int {
	var (
		notFound   schema.NotFoundError
		noField    tree.FieldNotFoundError
		notEdit    tree.NotEditableError
		badValue   tree.InvalidValueError
		minItems   tree.MinItemsError
		verrs      schema.ValidationErrors
		unresolved merge.UnresolvedError
		mode       store.ModeError
		busy       store.BusyError
		noSel      store.NoSelectionError
		xpSyntax   xpath.SyntaxError
		outOfRange xpath.IndexOutOfRangeError
		fSyntax    filter.SyntaxError
		badPref    prefs.InvalidError
		upstream   backend.StatusError
		undecoded  backend.DecodeError
		noSchema   schema.InvalidSchemaError
	)

	switch {
	case errors.As(err, &notFound), errors.As(err, &noField):
		return http.StatusNotFound
	case errors.As(err, &notEdit):
		return http.StatusForbidden
	case errors.As(err, &badValue), errors.As(err, &minItems), errors.As(err, &verrs), errors.As(err, &unresolved),
		errors.As(err, &outOfRange):
		return http.StatusUnprocessableEntity
	case errors.As(err, &mode), errors.As(err, &busy), errors.As(err, &noSel):
		return http.StatusConflict
	case errors.As(err, &xpSyntax), errors.As(err, &fSyntax), errors.As(err, &badPref):
		return http.StatusBadRequest
	case errors.As(err, &upstream), errors.As(err, &undecoded):
		return http.StatusBadGateway
	case errors.As(err, &noSchema):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
