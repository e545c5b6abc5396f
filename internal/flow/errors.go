package flow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrPublish    = errors.New("content publishing failed")
)

// ValidationError lists the input fields that were rejected.
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Reason)
	}
	return fmt.Sprintf("%s: %s (%s)", ErrValidation, e.Reason, strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// PublishError wraps a failure to store the agent document.
type PublishError struct {
	Err error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("%s: %v", ErrPublish, e.Err)
}

// Unwrap exposes both ErrPublish and the underlying cause.
func (e *PublishError) Unwrap() []error {
	return []error{ErrPublish, e.Err}
}
