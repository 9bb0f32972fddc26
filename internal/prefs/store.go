// Package prefs persists per-model view preferences in a pebble database.
// All entries are read into memory on open; writes go through to disk.
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/rs/zerolog"

	"github.com/flowmesh/schemaui/internal/logger"
	"github.com/flowmesh/schemaui/internal/table"
)

const keyPrefix = "model/"

// DefaultPageSize is used when no defaults are given to Open
const DefaultPageSize = 25

// Preferences are the view settings of one model
type Preferences struct {
	PageSize    int             `json:"page_size"`
	Sort        []table.SortKey `json:"sort,omitempty"`
	ColumnOrder []string        `json:"column_order,omitempty"`
	HideCommon  bool            `json:"hide_common"`
	Filter      string          `json:"filter,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Validate checks the preferences
func (p Preferences) Validate() error {
	if p.PageSize <= 0 {
		return InvalidError{Field: "page_size", Reason: "must be positive"}
	}
	for _, k := range p.Sort {
		if k.Field == "" {
			return InvalidError{Field: "sort", Reason: "field cannot be empty"}
		}
		if k.Direction != table.Asc && k.Direction != table.Desc {
			return InvalidError{Field: "sort", Reason: fmt.Sprintf("unknown direction %q", k.Direction)}
		}
	}
	return nil
}

func (p Preferences) clone() Preferences {
	p.Sort = append([]table.SortKey(nil), p.Sort...)
	p.ColumnOrder = append([]string(nil), p.ColumnOrder...)
	return p
}

// Store holds the preferences of all models
type Store struct {
	// writeMu serializes writers so Update is atomic against Put and Delete
	writeMu  sync.Mutex
	mu       sync.RWMutex
	db       *pebble.DB
	cache    map[string]Preferences
	defaults Preferences
	log      zerolog.Logger
}

// Open opens or creates the database in dir and loads every entry
func Open(dir string, defaults Preferences) (*Store, error) {
	if defaults.PageSize == 0 {
		defaults.PageSize = DefaultPageSize
	}
	if err := defaults.Validate(); err != nil {
		return nil, fmt.Errorf("invalid default preferences: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create preferences directory: %w", err)
	}

	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open Pebble DB: %w", err)
	}

	s := &Store{
		db:       db,
		cache:    make(map[string]Preferences),
		defaults: defaults,
		log:      logger.WithComponent("prefs"),
	}
	if err := s.load(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: upperBound([]byte(keyPrefix)),
	})
	if err != nil {
		return fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		model := strings.TrimPrefix(string(iter.Key()), keyPrefix)
		var p Preferences
		if err := json.Unmarshal(iter.Value(), &p); err != nil {
			s.log.Warn().Err(err).Str("model", model).Msg("Skipping unreadable preferences")
			continue
		}
		s.cache[model] = p
	}

	s.log.Info().Int("count", len(s.cache)).Msg("Preferences loaded")
	return iter.Error()
}

// Get returns the preferences of model, or the defaults
func (s *Store) Get(model string) Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.cache[model]; ok {
		return p.clone()
	}
	return s.defaults.clone()
}

// Put replaces the preferences of model
func (s *Store) Put(model string, p Preferences) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.put(model, p)
}

func (s *Store) put(model string, p Preferences) error {
	if model == "" {
		return InvalidError{Field: "model", Reason: "cannot be empty"}
	}
	if err := p.Validate(); err != nil {
		return err
	}
	p = p.clone()
	p.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Set([]byte(keyPrefix+model), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	s.cache[model] = p
	return nil
}

// Update applies fn to the current preferences of model and stores the result
func (s *Store) Update(model string, fn func(*Preferences) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	p := s.Get(model)
	if err := fn(&p); err != nil {
		return err
	}
	return s.put(model, p)
}

// Delete resets model to the defaults
func (s *Store) Delete(model string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Delete([]byte(keyPrefix+model), pebble.Sync); err != nil && !errors.Is(err, pebble.ErrNotFound) {
		return fmt.Errorf("failed to delete preferences: %w", err)
	}
	delete(s.cache, model)
	return nil
}

// Models lists models with stored preferences
func (s *Store) Models() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.cache))
	for m := range s.cache {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Close closes the database
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func upperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
