package schema

import (
	"errors"
	"fmt"
	"strings"
)

// MetadataError reports an invalid or incomplete entity declaration.
// It is returned at registration time.
type MetadataError struct {
	Entity string
	Field  string // empty for entity level errors
	Reason string
}

// Error returns the error string.
func (e *MetadataError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("schema: entity %q field %q: %s", e.Entity, e.Field, e.Reason)
	}
	return fmt.Sprintf("schema: entity %q: %s", e.Entity, e.Reason)
}

// IsMetadataError returns true if the error is a MetadataError.
func IsMetadataError(err error) bool {
	if err == nil {
		return false
	}
	var e *MetadataError
	return errors.As(err, &e)
}

// ErrCycle is matched by CycleError.
var ErrCycle = errors.New("schema: circular dependency")

// CycleError reports dependency cycles between entities.
type CycleError struct {
	Cycles []Cycle
}

// Error returns the error string.
func (e *CycleError) Error() string {
	parts := make([]string, len(e.Cycles))
	for i, c := range e.Cycles {
		parts[i] = c.String()
	}
	return fmt.Sprintf("%s: %s", ErrCycle, strings.Join(parts, "; "))
}

// Is reports whether the target error matches CycleError.
func (e *CycleError) Is(err error) bool {
	return err == ErrCycle
}
