package store

import "fmt"

// ModeError is returned when a command is not valid in the current mode
type ModeError struct {
	Model   string
	Command string
	Mode    Mode
}

func (e ModeError) Error() string {
	return fmt.Sprintf("%s: cannot %s in %s mode", e.Model, e.Command, e.Mode)
}

// BusyError is returned when an exclusive operation is already running
type BusyError struct {
	Model     string
	Operation string
}

func (e BusyError) Error() string {
	return fmt.Sprintf("%s: %s already in progress", e.Model, e.Operation)
}

// NoSelectionError is returned when a command needs a selected object
type NoSelectionError struct {
	Model string
}

func (e NoSelectionError) Error() string {
	return fmt.Sprintf("%s: no object selected", e.Model)
}
