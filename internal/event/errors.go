package event

import (
	"errors"
	"fmt"
)

// ErrValidation matches every *ValidationError via errors.Is.
var ErrValidation = errors.New("schema validation failed")

// ValidationError reports a record that does not conform to its schema.
type ValidationError struct {
	Field  string // empty when the input as a whole is malformed
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s: %s", SchemaID, ErrValidation, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s: %s", SchemaID, ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
