package schema

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no loaded document matches a lookup key
var ErrNotFound = errors.New("schema not found")

// LoadError reports a schema file that could not be parsed. Loading never
// silently skips a malformed file.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load schema %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// ValidationError is a single structural violation found in a payload
type ValidationError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}
