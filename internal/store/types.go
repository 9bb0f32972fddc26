// Package store holds one state container per model. A container owns the
// baseline and working copy of the selected object, the loaded collection and
// the editing mode. Every command runs under the container's lock and swaps
// in new copies; network calls run outside it and their results are applied
// only if the container's generation did not move on in between.
package store

import (
	"context"

	"github.com/flowmesh/schemaui/internal/merge"
	"github.com/flowmesh/schemaui/internal/schema"
)

// Mode is the editing state of a container
type Mode string

const (
	// ModeRead shows the baseline; no edits are accepted
	ModeRead Mode = "READ"
	// ModeEdit accepts edits to the working copy
	ModeEdit Mode = "EDIT"
	// ModeConflict waits for the user to arbitrate a server push
	ModeConflict Mode = "CONFLICT"
)

// Backend is the upstream data source of a model
type Backend interface {
	GetAll(ctx context.Context, model string) ([]any, error)
	Get(ctx context.Context, model string, id any) (map[string]any, error)
	Create(ctx context.Context, model string, obj map[string]any) (map[string]any, error)
	Update(ctx context.Context, model string, obj map[string]any) (map[string]any, error)
}

// State is an immutable snapshot of a container. Baseline and Modified are
// annotated graphs shared with the container; callers must not mutate them.
type State struct {
	Model      string                   `json:"model"`
	Mode       Mode                     `json:"mode"`
	Generation uint64                   `json:"generation"`
	Revision   uint64                   `json:"revision"`
	Items      []any                    `json:"items"`
	Baseline   any                      `json:"baseline"`
	Modified   any                      `json:"modified"`
	Dirty      bool                     `json:"dirty"`
	Loading    bool                     `json:"loading"`
	Saving     bool                     `json:"saving"`
	Error      string                   `json:"error,omitempty"`
	Validation []schema.ValidationError `json:"validation,omitempty"`
	Conflicts  []merge.Conflict         `json:"conflicts,omitempty"`
}

// Listener receives a snapshot after every state change. Snapshots of one
// model arrive in Revision order.
type Listener func(State)
