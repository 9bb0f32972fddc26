package store

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/flowmesh/schemaui/internal/logger"
	"github.com/flowmesh/schemaui/internal/metrics"
	"github.com/flowmesh/schemaui/internal/schema"
	"github.com/flowmesh/schemaui/internal/tree"
)

// DefaultIDField is the identity field of upstream objects
const DefaultIDField = "_id"

// Options configures a Store
type Options struct {
	Registry  *schema.Registry
	Backend   Backend
	Validator *schema.Validator
	IDField   string
	Metrics   *metrics.StoreMetrics
	Tracer    trace.Tracer
}

// Store owns the state containers of all models
type Store struct {
	registry  *schema.Registry
	backend   Backend
	validator *schema.Validator
	idField   string
	metrics   *metrics.StoreMetrics
	tracer    trace.Tracer
	log       zerolog.Logger

	mu     sync.RWMutex
	slices map[string]*Slice

	listenersMu sync.RWMutex
	listeners   map[uint64]Listener
	nextID      uint64
}

// New creates a store
func New(opts Options) *Store {
	if opts.IDField == "" {
		opts.IDField = DefaultIDField
	}
	if opts.Tracer == nil {
		opts.Tracer = noop.NewTracerProvider().Tracer("store")
	}
	return &Store{
		registry:  opts.Registry,
		backend:   opts.Backend,
		validator: opts.Validator,
		idField:   opts.IDField,
		metrics:   opts.Metrics,
		tracer:    opts.Tracer,
		log:       logger.WithComponent("store"),
		slices:    make(map[string]*Slice),
		listeners: make(map[uint64]Listener),
	}
}

// Slice returns the container of model, creating it on first use. The model
// must exist in the current schema.
func (s *Store) Slice(model string) (*Slice, error) {
	s.mu.RLock()
	sl, ok := s.slices[model]
	s.mu.RUnlock()
	if ok {
		return sl, nil
	}

	doc, err := s.registry.Current()
	if err != nil {
		return nil, err
	}
	if _, err := doc.ResolveModel(model); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sl, ok := s.slices[model]; ok {
		return sl, nil
	}
	sl = &Slice{
		store:  s,
		model:  model,
		mode:   ModeRead,
		expand: tree.NewExpandState(),
		log:    logger.WithModel("store", model),
	}
	s.slices[model] = sl
	s.metrics.SetSlices(len(s.slices))
	return sl, nil
}

// Lookup returns an existing container without creating one
func (s *Store) Lookup(model string) (*Slice, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sl, ok := s.slices[model]
	return sl, ok
}

// Models lists the models that have a container, sorted by name
func (s *Store) Models() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.slices))
	for name := range s.slices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IDField returns the identity field name
func (s *Store) IDField() string {
	return s.idField
}

// Subscribe registers fn for state changes of every container. The returned
// function removes the subscription.
func (s *Store) Subscribe(fn Listener) func() {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

func (s *Store) publish(st State) {
	s.listenersMu.RLock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(st)
	}
}

// ForgetSchema drops cached validation state of a replaced schema document
func (s *Store) ForgetSchema(doc *schema.Document) {
	if s.validator != nil && doc != nil {
		s.validator.Forget(doc)
	}
}
