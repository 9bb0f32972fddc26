package prefs

import "fmt"

// InvalidError indicates an invalid preference value
type InvalidError struct {
	Field  string
	Reason string
}

func (e InvalidError) Error() string {
	return fmt.Sprintf("invalid preference '%s': %s", e.Field, e.Reason)
}
