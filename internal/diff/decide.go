package diff

// SaveAction is the network call a save has to issue
type SaveAction int

const (
	// SaveNone means nothing changed and no call is made
	SaveNone SaveAction = iota
	// SaveCreate means the instance has no identity yet
	SaveCreate
	// SaveUpdate means the instance exists on the backend
	SaveUpdate
)

func (a SaveAction) String() string {
	switch a {
	case SaveCreate:
		return "create"
	case SaveUpdate:
		return "update"
	default:
		return "none"
	}
}

// Decide picks the save action for modified. idField names the identity
// field, usually "_id".
func Decide(baseline, modified any, idField string) SaveAction {
	if !IsDirty(baseline, modified) {
		return SaveNone
	}
	if HasIdentity(baseline, idField) {
		return SaveUpdate
	}
	return SaveCreate
}

// HasIdentity reports whether obj carries a database id
func HasIdentity(obj any, idField string) bool {
	m, ok := obj.(map[string]any)
	if !ok {
		return false
	}
	switch id := m[idField].(type) {
	case nil:
		return false
	case string:
		return id != ""
	default:
		return true
	}
}
