package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError is returned when the backend answers with a non-2xx status
type StatusError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend %s: status %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("backend %s: status %d: %s", e.Operation, e.StatusCode, e.Body)
}

// DecodeError is returned when a successful reply carries no usable JSON
type DecodeError struct {
	Operation string
	Reason    string
}

func (e DecodeError) Error() string {
	return fmt.Sprintf("backend %s: undecodable response: %s", e.Operation, e.Reason)
}

// IsNotFound reports whether err is a 404 from the backend
func IsNotFound(err error) bool {
	var se StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}
