package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowmesh/schemaui/internal/diff"
	"github.com/flowmesh/schemaui/internal/merge"
	"github.com/flowmesh/schemaui/internal/schema"
	"github.com/flowmesh/schemaui/internal/synth"
	"github.com/flowmesh/schemaui/internal/tracing"
	"github.com/flowmesh/schemaui/internal/tree"
	"github.com/flowmesh/schemaui/internal/xpath"
)

// Slice is the state container of one model
type Slice struct {
	store *Store
	model string
	log   zerolog.Logger

	mu sync.Mutex
	// pubMu is taken before mu is released so states reach listeners in
	// the order they were produced
	pubMu sync.Mutex
	// rev counts published states
	rev uint64
	// gen moves on whenever the edit session is replaced; in-flight
	// results captured under an older value are dropped
	gen uint64
	// loadSeq orders collection loads, the latest one wins
	loadSeq    uint64
	mode       Mode
	items      []any
	baseline   any
	modified   any
	loading    bool
	saving     bool
	err        string
	validation schema.ValidationErrors
	pending    *merge.Result
	expand     *tree.ExpandState
}

// Model returns the model name
func (s *Slice) Model() string {
	return s.model
}

// Expand returns the expand state of the tree view
func (s *Slice) Expand() *tree.ExpandState {
	return s.expand
}

// Snapshot returns the current state
func (s *Slice) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Slice) snapshotLocked() State {
	st := State{
		Model:      s.model,
		Mode:       s.mode,
		Generation: s.gen,
		Revision:   s.rev,
		Items:      s.items,
		Baseline:   s.baseline,
		Modified:   s.modified,
		Dirty:      s.modified != nil && diff.IsDirty(s.baseline, s.modified),
		Loading:    s.loading,
		Saving:     s.saving,
		Error:      s.err,
		Validation: append([]schema.ValidationError(nil), s.validation...),
	}
	if s.pending != nil {
		st.Conflicts = s.pending.Conflicts
	}
	return st
}

// unlockAndPublish releases the lock and notifies listeners with the state
// as it was at release. Listeners must not run commands on the same slice.
func (s *Slice) unlockAndPublish() {
	s.rev++
	st := s.snapshotLocked()
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	s.mu.Unlock()
	s.store.publish(st)
}

func (s *Slice) doc() (*schema.Document, error) {
	return s.store.registry.Current()
}

func (s *Slice) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.store.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String(tracing.AttrModel, s.model),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// dispatch runs a synchronous command under the lock and publishes on success
func (s *Slice) dispatch(command string, fn func(doc *schema.Document) error) error {
	doc, err := s.doc()
	if err != nil {
		return err
	}

	s.mu.Lock()
	if err := fn(doc); err != nil {
		s.mu.Unlock()
		s.store.metrics.RecordCommand(s.model, command, err)
		return err
	}
	s.unlockAndPublish()
	s.store.metrics.RecordCommand(s.model, command, nil)
	return nil
}

// Load fetches the model's collection. Concurrent loads are allowed; only
// the most recently started one is applied.
func (s *Slice) Load(ctx context.Context) (err error) {
	ctx, span := s.startSpan(ctx, "store.load")
	defer func() { endSpan(span, err) }()

	s.mu.Lock()
	s.loadSeq++
	seq := s.loadSeq
	s.loading = true
	s.unlockAndPublish()

	start := time.Now()
	items, err := s.store.backend.GetAll(ctx, s.model)
	s.store.metrics.RecordLoad(s.model, "get_all", time.Since(start), err)

	s.mu.Lock()
	if seq != s.loadSeq {
		s.mu.Unlock()
		s.store.metrics.RecordStale(s.model, "get_all")
		s.log.Debug().Uint64("seq", seq).Msg("Dropping superseded collection load")
		return nil
	}
	s.loading = false
	if err != nil {
		s.err = err.Error()
		s.unlockAndPublish()
		return fmt.Errorf("failed to load %s: %w", s.model, err)
	}
	s.items = lo.Map(items, func(item any, _ int) any {
		return xpath.ClearXPath(item)
	})
	span.SetAttributes(attribute.Int("schemaui.items", len(s.items)))
	s.unlockAndPublish()
	return nil
}

// LoadOne fetches one object and makes it the selected object in read mode.
// It is rejected while there are unsaved edits or pending conflicts.
func (s *Slice) LoadOne(ctx context.Context, id any) (err error) {
	ctx, span := s.startSpan(ctx, "store.load_one")
	span.SetAttributes(attribute.String(tracing.AttrObjectID, fmt.Sprint(id)))
	defer func() { endSpan(span, err) }()

	s.mu.Lock()
	if s.mode == ModeConflict || (s.mode == ModeEdit && diff.IsDirty(s.baseline, s.modified)) {
		mode := s.mode
		s.mu.Unlock()
		return ModeError{Model: s.model, Command: "load", Mode: mode}
	}
	s.gen++
	gen := s.gen
	s.loading = true
	s.unlockAndPublish()

	start := time.Now()
	obj, err := s.store.backend.Get(ctx, s.model, id)
	s.store.metrics.RecordLoad(s.model, "get", time.Since(start), err)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		s.store.metrics.RecordStale(s.model, "get")
		s.log.Debug().Uint64("generation", gen).Msg("Dropping stale object load")
		return nil
	}
	s.loading = false
	if err != nil {
		s.err = err.Error()
		s.unlockAndPublish()
		return fmt.Errorf("failed to load %s %v: %w", s.model, id, err)
	}
	s.selectObject(xpath.AddXPath(obj))
	s.unlockAndPublish()
	return nil
}

// Select makes obj the selected object in read mode without a round trip
func (s *Slice) Select(obj map[string]any) error {
	return s.dispatch("select", func(_ *schema.Document) error {
		if s.mode == ModeConflict || (s.mode == ModeEdit && diff.IsDirty(s.baseline, s.modified)) {
			return ModeError{Model: s.model, Command: "select", Mode: s.mode}
		}
		s.gen++
		s.selectObject(xpath.AddXPath(obj))
		return nil
	})
}

func (s *Slice) selectObject(obj any) {
	s.baseline = obj
	s.modified = obj
	s.mode = ModeRead
	s.loading = false
	s.err = ""
	s.validation = nil
	s.pending = nil
	s.expand.Reset()
}

// RequestEdit switches the selected object to edit mode
func (s *Slice) RequestEdit() error {
	return s.dispatch("request_edit", func(_ *schema.Document) error {
		switch s.mode {
		case ModeEdit:
			return nil
		case ModeConflict:
			return ModeError{Model: s.model, Command: "edit", Mode: s.mode}
		}
		if s.modified == nil {
			return NoSelectionError{Model: s.model}
		}
		s.mode = ModeEdit
		return nil
	})
}

// SetValue writes value at xp in the working copy
func (s *Slice) SetValue(xp string, value any) error {
	return s.edit("set_value", xp, func(doc *schema.Document) (any, error) {
		return tree.SetValue(doc, s.model, s.modified, s.baseline, xp, value)
	})
}

// AddElement appends a synthesized element to the array at xp, or creates
// the absent optional object at xp
func (s *Slice) AddElement(xp string) error {
	return s.edit("add_element", xp, func(doc *schema.Document) (any, error) {
		return tree.AddElement(doc, s.model, s.modified, s.baseline, xp)
	})
}

// RemoveElement removes the array element or optional object at xp
func (s *Slice) RemoveElement(xp string) error {
	return s.edit("remove_element", xp, func(doc *schema.Document) (any, error) {
		return tree.RemoveElement(doc, s.model, s.modified, s.baseline, xp)
	})
}

func (s *Slice) edit(command, xp string, fn func(doc *schema.Document) (any, error)) error {
	return s.dispatch(command, func(doc *schema.Document) error {
		if s.mode != ModeEdit {
			return ModeError{Model: s.model, Command: command, Mode: s.mode}
		}
		if s.modified == nil {
			return NoSelectionError{Model: s.model}
		}
		out, err := fn(doc)
		if err != nil {
			return err
		}
		s.modified = out
		s.validation = lo.Reject(s.validation, func(v schema.ValidationError, _ int) bool {
			return v.XPath == "" || xpath.HasPrefix(v.XPath, xp) || xpath.HasPrefix(xp, v.XPath)
		})
		return nil
	})
}

// New seeds the container with a synthesized default instance in edit mode
func (s *Slice) New() error {
	return s.dispatch("new", func(doc *schema.Document) error {
		if s.mode == ModeConflict || (s.mode == ModeEdit && diff.IsDirty(s.baseline, s.modified)) {
			return ModeError{Model: s.model, Command: "create new instance", Mode: s.mode}
		}
		obj, err := synth.ForModel(doc, s.model)
		if err != nil {
			return err
		}
		s.gen++
		s.selectObject(xpath.AddXPath(obj))
		s.baseline = nil
		s.mode = ModeEdit
		return nil
	})
}

// Discard drops the working copy and returns to read mode. An in-flight save
// is invalidated.
func (s *Slice) Discard() error {
	return s.dispatch("discard", func(_ *schema.Document) error {
		if s.mode == ModeRead {
			return nil
		}
		s.gen++
		s.modified = s.baseline
		s.mode = ModeRead
		s.validation = nil
		s.pending = nil
		return nil
	})
}

// DismissError clears the last error
func (s *Slice) DismissError() error {
	return s.dispatch("dismiss_error", func(_ *schema.Document) error {
		s.err = ""
		return nil
	})
}

// Save validates the working copy and creates or updates it upstream. A
// clean working copy returns to read mode without a call. Failures are kept
// as a dismissable error; nothing is retried.
func (s *Slice) Save(ctx context.Context) (err error) {
	ctx, span := s.startSpan(ctx, "store.save")
	defer func() { endSpan(span, err) }()

	doc, err := s.doc()
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.mode != ModeEdit {
		mode := s.mode
		s.mu.Unlock()
		return ModeError{Model: s.model, Command: "save", Mode: mode}
	}
	if s.saving {
		s.mu.Unlock()
		return BusyError{Model: s.model, Operation: "save"}
	}

	action := diff.Decide(s.baseline, s.modified, s.store.idField)
	span.SetAttributes(attribute.String(tracing.AttrSaveAction, action.String()))
	if action == diff.SaveNone {
		s.mode = ModeRead
		s.validation = nil
		s.unlockAndPublish()
		return nil
	}

	if verrs := s.validateLocked(doc); len(verrs) > 0 {
		s.validation = verrs
		s.unlockAndPublish()
		s.store.metrics.RecordValidationFailure(s.model)
		return verrs
	}

	s.saving = true
	s.validation = nil
	gen := s.gen
	sent := s.modified
	span.SetAttributes(
		attribute.Int64(tracing.AttrGeneration, int64(gen)),
		attribute.Int(tracing.AttrChangeCount, len(diff.Diff(s.baseline, sent))),
	)
	s.unlockAndPublish()

	payload, _ := xpath.ClearXPath(sent).(map[string]any)
	start := time.Now()
	var saved map[string]any
	if action == diff.SaveCreate {
		saved, err = s.store.backend.Create(ctx, s.model, payload)
	} else {
		saved, err = s.store.backend.Update(ctx, s.model, payload)
	}
	s.store.metrics.RecordSave(s.model, action.String(), time.Since(start), err)

	s.mu.Lock()
	s.saving = false
	if gen != s.gen {
		s.unlockAndPublish()
		s.store.metrics.RecordStale(s.model, "save")
		s.log.Debug().Uint64("generation", gen).Msg("Dropping stale save result")
		return nil
	}
	if err != nil {
		s.err = err.Error()
		s.unlockAndPublish()
		s.log.Warn().Err(err).Str("action", action.String()).Msg("Save failed")
		return fmt.Errorf("failed to save %s: %w", s.model, err)
	}

	s.err = ""
	stored := xpath.AddXPath(saved)
	s.items = upsert(s.items, xpath.ClearXPath(saved), s.store.idField)
	if xpath.Equal(s.modified, sent) {
		s.gen++
		s.selectObject(stored)
		s.unlockAndPublish()
		return nil
	}

	// edits made while the request was in flight are replayed on the result
	res, err := merge.Merge(sent, s.modified, stored)
	if err != nil {
		s.err = err.Error()
		s.unlockAndPublish()
		return err
	}
	s.applyMergeLocked(res, sent)
	s.unlockAndPublish()
	return nil
}

// validateLocked reports required-but-empty fields first, then JSON Schema
// constraint failures. A schema that cannot be compiled does not block.
func (s *Slice) validateLocked(doc *schema.Document) schema.ValidationErrors {
	nodes, err := tree.Build(doc, s.model, tree.Options{
		Data:     s.modified,
		Baseline: s.baseline,
		Mode:     tree.ModeEdit,
	})
	if err != nil {
		return schema.ValidationErrors{{Message: err.Error()}}
	}

	var verrs schema.ValidationErrors
	for _, xp := range tree.Invalid(nodes) {
		verrs = append(verrs, schema.ValidationError{XPath: xp, Message: "value is required"})
	}
	if len(verrs) > 0 || s.store.validator == nil {
		return verrs
	}

	if err := s.store.validator.Validate(doc, s.model, s.modified); err != nil {
		if errors.As(err, &verrs) {
			return verrs
		}
		s.log.Warn().Err(err).Msg("Schema validation unavailable, saving unchecked")
	}
	return nil
}

// ApplyPush merges an object pushed by the server. The collection is
// updated; when obj is the selected object its copies are merged according
// to the editing mode.
func (s *Slice) ApplyPush(ctx context.Context, obj map[string]any) error {
	_, span := s.startSpan(ctx, "store.apply_push")
	defer span.End()

	s.mu.Lock()
	s.items = upsert(s.items, xpath.ClearXPath(obj), s.store.idField)
	outcome, err := s.pushLocked(obj)
	if err != nil {
		s.mu.Unlock()
		endSpan(span, err)
		return err
	}
	span.SetAttributes(attribute.String(tracing.AttrMergeOutcome, string(outcome)))
	conflicts := s.conflictCount()
	s.unlockAndPublish()
	s.store.metrics.RecordPush(s.model, string(outcome), conflicts)
	return nil
}

// SyncItems replaces the collection with a server-side query result and
// merges the entry of the selected object, if any
func (s *Slice) SyncItems(ctx context.Context, items []any) error {
	_, span := s.startSpan(ctx, "store.sync_items")
	defer span.End()

	s.mu.Lock()
	s.loadSeq++
	s.loading = false
	s.items = lo.Map(items, func(item any, _ int) any {
		return xpath.ClearXPath(item)
	})

	id, ok := s.selectedID()
	if !ok {
		s.unlockAndPublish()
		return nil
	}
	for _, item := range s.items {
		m, isMap := item.(map[string]any)
		if !isMap || !xpath.Equal(m[s.store.idField], id) {
			continue
		}
		outcome, err := s.pushLocked(m)
		if err != nil {
			s.mu.Unlock()
			endSpan(span, err)
			return err
		}
		conflicts := s.conflictCount()
		s.unlockAndPublish()
		s.store.metrics.RecordPush(s.model, string(outcome), conflicts)
		return nil
	}
	s.unlockAndPublish()
	return nil
}

func (s *Slice) conflictCount() int {
	if s.pending == nil {
		return 0
	}
	return len(s.pending.Conflicts)
}

func (s *Slice) selectedID() (any, bool) {
	m, ok := s.baseline.(map[string]any)
	if !ok || !diff.HasIdentity(m, s.store.idField) {
		return nil, false
	}
	return m[s.store.idField], true
}

// pushLocked merges obj into the selected object when identities match
func (s *Slice) pushLocked(obj map[string]any) (merge.Outcome, error) {
	id, ok := s.selectedID()
	if !ok || !xpath.Equal(obj[s.store.idField], id) {
		return merge.Unchanged, nil
	}

	pushed := xpath.AddXPath(obj)
	if s.mode == ModeRead {
		if xpath.Equal(s.baseline, pushed) {
			return merge.Unchanged, nil
		}
		s.baseline = pushed
		s.modified = pushed
		return merge.Adopted, nil
	}

	res, err := merge.Merge(s.baseline, s.modified, pushed)
	if err != nil {
		return "", err
	}
	s.applyMergeLocked(res, s.baseline)
	return res.Outcome, nil
}

// applyMergeLocked installs a merge result. While conflicted the previous
// baseline stays so the pending local changes remain visible.
func (s *Slice) applyMergeLocked(res merge.Result, previous any) {
	switch res.Outcome {
	case merge.Conflicted:
		s.baseline = previous
		s.pending = &res
		s.mode = ModeConflict
		s.log.Info().Int("conflicts", len(res.Conflicts)).Msg("Server push conflicts with local edits")
	case merge.Unchanged:
		s.baseline = xpath.AddXPath(res.Baseline)
	default:
		s.baseline = xpath.AddXPath(res.Baseline)
		s.modified = xpath.AddXPath(res.Modified)
		s.pending = nil
		if s.mode == ModeConflict {
			s.mode = ModeEdit
		}
	}
}

// ResolveConflicts applies one choice per conflicting xpath. Keeping no
// local change returns to read mode; otherwise editing continues on top of
// the server version.
func (s *Slice) ResolveConflicts(choices map[string]merge.Choice) error {
	return s.dispatch("resolve_conflicts", func(_ *schema.Document) error {
		if s.mode != ModeConflict || s.pending == nil {
			return ModeError{Model: s.model, Command: "resolve conflicts", Mode: s.mode}
		}
		res, err := merge.Resolve(*s.pending, choices)
		if err != nil {
			return err
		}
		s.pending = nil
		s.baseline = xpath.AddXPath(res.Baseline)
		if res.Outcome == merge.Adopted {
			s.modified = s.baseline
			s.mode = ModeRead
			return nil
		}
		s.modified = xpath.AddXPath(res.Modified)
		s.mode = ModeEdit
		return nil
	})
}

// Tree materializes the tree view of the selected object
func (s *Slice) Tree(showHidden bool) ([]*tree.Node, error) {
	doc, err := s.doc()
	if err != nil {
		return nil, err
	}

	st := s.Snapshot()
	mode := tree.ModeRead
	if st.Mode == ModeEdit {
		mode = tree.ModeEdit
	}
	data := st.Modified
	if data == nil {
		data = map[string]any{}
	}
	return tree.Build(doc, s.model, tree.Options{
		Data:       data,
		Baseline:   st.Baseline,
		Mode:       mode,
		ShowHidden: showHidden,
		Expand:     s.expand,
	})
}

// upsert replaces the item with obj's identity or appends obj
func upsert(items []any, obj any, idField string) []any {
	m, ok := obj.(map[string]any)
	if !ok || !diff.HasIdentity(m, idField) {
		return items
	}
	_, idx, found := lo.FindIndexOf(items, func(item any) bool {
		im, ok := item.(map[string]any)
		return ok && xpath.Equal(im[idField], m[idField])
	})
	out := append([]any(nil), items...)
	if found {
		out[idx] = obj
		return out
	}
	return append(out, obj)
}
