// Package merge reconciles server pushes with an in-progress local edit.
// Overlapping changes are surfaced as conflicts and never resolved silently.
package merge

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/flowmesh/schemaui/internal/diff"
	"github.com/flowmesh/schemaui/internal/xpath"
)

// Outcome is how a push was applied
type Outcome string

const (
	// Unchanged means the push equals the current baseline
	Unchanged Outcome = "unchanged"
	// Adopted means there were no local edits and the push replaced both copies
	Adopted Outcome = "adopted"
	// Rebased means local edits were replayed onto the push
	Rebased Outcome = "rebased"
	// Conflicted means local and server edits touch the same fields
	Conflicted Outcome = "conflict"
)

// Choice resolves one conflict
type Choice string

const (
	// KeepMine keeps the local value and discards the server value
	KeepMine Choice = "mine"
	// TakeServer discards the local edit of the field
	TakeServer Choice = "server"
)

// Conflict is a field changed both locally and on the server
type Conflict struct {
	XPath  string `json:"xpath"`
	Base   any    `json:"base"`
	Mine   any    `json:"mine"`
	Server any    `json:"server"`
	// MineRemoved is set when the local edit removed the location
	MineRemoved bool `json:"mine_removed,omitempty"`
	// ServerRemoved is set when the location is absent from the push
	ServerRemoved bool `json:"server_removed,omitempty"`
}

// Result is the outcome of merging a push. Baseline is always the pushed
// graph. Modified is the rebased working copy, or the untouched local copy
// while conflicts are pending.
type Result struct {
	Outcome   Outcome
	Baseline  any
	Modified  any
	Conflicts []Conflict

	local diff.ChangeRecord
}

// UnresolvedError is returned by Resolve when a conflict has no choice
type UnresolvedError struct {
	XPaths []string
}

func (e UnresolvedError) Error() string {
	return fmt.Sprintf("unresolved conflicts: %s", strings.Join(e.XPaths, ", "))
}

// Merge applies pushed to a model whose last confirmed value is baseline and
// whose working copy is modified
func Merge(baseline, modified, pushed any) (Result, error) {
	server := diff.Diff(baseline, pushed)
	local := diff.Diff(baseline, modified)

	if len(server) == 0 {
		return Result{Outcome: Unchanged, Baseline: pushed, Modified: modified, local: local}, nil
	}
	if len(local) == 0 {
		return Result{Outcome: Adopted, Baseline: pushed, Modified: xpath.AddXPath(pushed), local: local}, nil
	}

	var conflicts []Conflict
	for _, p := range local.Paths() {
		if !server.Touches(p) && !resizesSameArray(server, p, local[p]) {
			continue
		}
		change := local[p]
		serverValue, present := xpath.Get(pushed, p)
		if change.Kind != diff.Removed && present && xpath.Equal(change.New, serverValue) {
			// both sides made the same edit
			continue
		}
		if change.Kind == diff.Removed && !present {
			continue
		}
		conflicts = append(conflicts, Conflict{
			XPath:         p,
			Base:          change.Old,
			Mine:          change.New,
			Server:        xpath.ClearXPath(serverValue),
			MineRemoved:   change.Kind == diff.Removed,
			ServerRemoved: !present,
		})
	}

	if len(conflicts) > 0 {
		return Result{
			Outcome:   Conflicted,
			Baseline:  pushed,
			Modified:  modified,
			Conflicts: conflicts,
			local:     local,
		}, nil
	}

	rebased, err := Rebase(pushed, local)
	if err != nil {
		return Result{}, err
	}
	return Result{Outcome: Rebased, Baseline: pushed, Modified: rebased, local: local}, nil
}

// resizesSameArray reports whether p is an element added or removed locally
// in an array whose length the server changed as well. Positions in such an
// array no longer line up, so the edit cannot be replayed by index.
func resizesSameArray(server diff.ChangeRecord, p string, c diff.Change) bool {
	if c.Kind == diff.Modified {
		return false
	}
	parent, last, err := xpath.Split(p)
	if err != nil || !last.IsIndex {
		return false
	}
	for sp, sc := range server {
		if sc.Kind == diff.Modified {
			continue
		}
		sparent, slast, err := xpath.Split(sp)
		if err == nil && slast.IsIndex && sparent == parent {
			return true
		}
	}
	return false
}

// Resolve settles every conflict of a Conflicted result. Non-conflicting
// local edits are always kept.
func Resolve(res Result, choices map[string]Choice) (Result, error) {
	if res.Outcome != Conflicted {
		return res, nil
	}

	var missing []string
	keep := make(diff.ChangeRecord, len(res.local))
	for p, c := range res.local {
		keep[p] = c
	}
	for _, c := range res.Conflicts {
		switch choices[c.XPath] {
		case KeepMine:
		case TakeServer:
			delete(keep, c.XPath)
		default:
			missing = append(missing, c.XPath)
		}
	}
	if len(missing) > 0 {
		return res, UnresolvedError{XPaths: missing}
	}

	rebased, err := Rebase(res.Baseline, keep)
	if err != nil {
		return res, err
	}

	outcome := Rebased
	if len(keep) == 0 {
		outcome = Adopted
	}
	return Result{Outcome: outcome, Baseline: res.Baseline, Modified: rebased, local: keep}, nil
}

// Rebase replays changes onto a copy of target and returns it annotated.
// Writes are applied first in path order, then removals deepest and highest
// index first so earlier indices stay valid. An added element past the end
// of the target array is appended; any other write through a missing
// element fails with xpath.IndexOutOfRangeError. Removals of elements the
// target no longer has are already satisfied.
func Rebase(target any, changes diff.ChangeRecord) (any, error) {
	out := xpath.ClearXPath(target)

	var writes, removals []string
	for p, c := range changes {
		if c.Kind == diff.Removed {
			removals = append(removals, p)
		} else {
			writes = append(writes, p)
		}
	}
	sort.Slice(writes, func(i, j int) bool { return comparePaths(writes[i], writes[j]) < 0 })
	sort.Slice(removals, func(i, j int) bool { return comparePaths(removals[i], removals[j]) > 0 })

	var err error
	for _, p := range writes {
		if p == "" {
			out = xpath.Clone(changes[p].New)
			continue
		}
		at := p
		if changes[p].Kind == diff.Added {
			at = appendPosition(out, p)
		}
		if err := checkIndices(out, at); err != nil {
			return nil, fmt.Errorf("failed to rebase %s: %w", p, err)
		}
		if out, err = xpath.Set(out, at, xpath.Clone(changes[p].New)); err != nil {
			return nil, fmt.Errorf("failed to rebase %s: %w", p, err)
		}
	}
	for _, p := range removals {
		out, err = xpath.Delete(out, p)
		var oor xpath.IndexOutOfRangeError
		if errors.As(err, &oor) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to rebase removal of %s: %w", p, err)
		}
	}

	return xpath.AddXPath(out), nil
}

// appendPosition moves an element index past the end of its array to the
// first free slot
func appendPosition(obj any, p string) string {
	parent, last, err := xpath.Split(p)
	if err != nil || !last.IsIndex {
		return p
	}
	cur, _ := xpath.Get(obj, parent)
	arr, _ := cur.([]any)
	if last.Index > len(arr) {
		return xpath.Index(parent, len(arr))
	}
	return p
}

// checkIndices fails when p steps through an array index beyond the next
// free slot, which xpath.Set would pad with nulls
func checkIndices(obj any, p string) error {
	segs, err := xpath.Parse(p)
	if err != nil {
		return err
	}
	cur := obj
	for i, s := range segs {
		if !s.IsIndex {
			m, ok := cur.(map[string]any)
			if !ok {
				return nil
			}
			cur = m[s.Key]
			continue
		}
		arr, _ := cur.([]any)
		if s.Index > len(arr) {
			return xpath.IndexOutOfRangeError{XPath: xpath.Join(segs[:i]), Index: s.Index, Length: len(arr)}
		}
		if s.Index == len(arr) {
			return nil
		}
		cur = arr[s.Index]
	}
	return nil
}

// comparePaths orders xpaths segment by segment, indices numerically
func comparePaths(a, b string) int {
	sa, errA := xpath.Parse(a)
	sb, errB := xpath.Parse(b)
	if errA != nil || errB != nil {
		return strings.Compare(a, b)
	}
	for i := 0; i < len(sa) && i < len(sb); i++ {
		x, y := sa[i], sb[i]
		switch {
		case x.IsIndex && y.IsIndex:
			if x.Index != y.Index {
				return x.Index - y.Index
			}
		case x.IsIndex != y.IsIndex:
			if x.IsIndex {
				return -1
			}
			return 1
		default:
			if c := strings.Compare(x.Key, y.Key); c != 0 {
				return c
			}
		}
	}
	return len(sa) - len(sb)
}
