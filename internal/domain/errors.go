package domain

import "errors"

var (
	// ErrValidation marks a converted record that fails canonical-schema
	// validation. It aborts the enclosing batch step.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a missing job, execution, configuration, template
	// or trace row at evaluation time.
	ErrNotFound = errors.New("not found")

	// ErrProvider marks a failed completion call or a completion that does
	// not match the required output schema.
	ErrProvider = errors.New("completion provider failed")
)
