package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultCacheFile is the filename of the on-disk schema snapshot
	DefaultCacheFile = "schema.json"
)

// Registry is the process-wide schema cache. The current document is swapped
// atomically on reload; readers always see a complete document.
type Registry struct {
	current  atomic.Pointer[Document]
	loadedAt atomic.Int64
	// version increments on every successful load
	version atomic.Int64

	mu       sync.Mutex
	filePath string
	onReload []func(*Document)
}

// NewRegistry creates a registry. When cacheDir is not empty every loaded
// document is persisted there so the engine can start while the backend is
// unreachable.
func NewRegistry(cacheDir string) *Registry {
	r := &Registry{}
	if cacheDir != "" {
		r.filePath = filepath.Join(cacheDir, DefaultCacheFile)
	}
	return r
}

// Load parses data, makes it the current document and persists it
func (r *Registry) Load(data []byte) (*Document, error) {
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.current.Store(doc)
	r.loadedAt.Store(time.Now().UnixNano())
	v := r.version.Add(1)
	hooks := append([]func(*Document){}, r.onReload...)

	if err := r.persist(data); err != nil {
		// The in-memory document is still valid; only the snapshot is stale
		log.Warn().Err(err).Str("file", r.filePath).Msg("Failed to persist schema snapshot")
	}
	r.mu.Unlock()

	log.Info().
		Int("models", len(doc.Defs)).
		Int64("version", v).
		Msg("Schema loaded")

	for _, hook := range hooks {
		hook(doc)
	}

	return doc, nil
}

// LoadCached loads the last persisted snapshot, if any
func (r *Registry) LoadCached() (*Document, error) {
	if r.filePath == "" {
		return nil, os.ErrNotExist
	}
	data, err := os.ReadFile(r.filePath)
	if err != nil {
		return nil, err
	}
	log.Info().Str("file", r.filePath).Msg("Loading schema from snapshot")
	return r.Load(data)
}

// Current returns the active document or NotLoaded
func (r *Registry) Current() (*Document, error) {
	doc := r.current.Load()
	if doc == nil {
		return nil, InvalidSchemaError{Reason: "schema not loaded"}
	}
	return doc, nil
}

// Version returns the number of successful loads so far
func (r *Registry) Version() int64 {
	return r.version.Load()
}

// LoadedAt returns when the current document was loaded
func (r *Registry) LoadedAt() time.Time {
	ns := r.loadedAt.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// OnReload registers a hook invoked after every successful load
func (r *Registry) OnReload(fn func(*Document)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onReload = append(r.onReload, fn)
}

// persist writes the snapshot without locking (assumes lock is held)
func (r *Registry) persist(data []byte) error {
	if r.filePath == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(r.filePath), 0o755); err != nil {
		return fmt.Errorf("failed to create schema cache directory: %w", err)
	}

	// Write to temporary file first, then rename (atomic write)
	tmpFile := r.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write schema snapshot: %w", err)
	}
	if err := os.Rename(tmpFile, r.filePath); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename schema snapshot: %w", err)
	}
	return nil
}
