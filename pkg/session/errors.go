package session

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUpstreamNotReady is returned when the upstream import has not signalled completion.
var ErrUpstreamNotReady = errors.New("upstream is not ready")

// PreconditionTimeoutError is returned when the upstream task did not finish within the wait window.
type PreconditionTimeoutError struct {
	Workflow string
	Task     string
	Timeout  time.Duration
}

func (e *PreconditionTimeoutError) Error() string {
	return fmt.Sprintf("upstream task '%s.%s' did not succeed within %s", e.Workflow, e.Task, e.Timeout)
}

func (e *PreconditionTimeoutError) Unwrap() error {
	return ErrUpstreamNotReady
}

// SchemaError wraps a failure to create or access the destination schema or its objects.
type SchemaError struct {
	Schema string
	Err    error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("failed to create or ensure schema '%s': %v", e.Schema, e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// ConstraintViolationError means the rebuilt table holds more than one row for a key.
// It indicates a defect in the grouping policy and is never retried.
type ConstraintViolationError struct {
	Table      string
	Column     string
	Violations int64
}

func (e *ConstraintViolationError) Error() string {
	return fmt.Sprintf("table '%s' has %d non-unique values in primary key column '%s'", e.Table, e.Violations, e.Column)
}

// IsRetryable reports whether a failed task may be attempted again.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var cv *ConstraintViolationError
	return !errors.As(err, &cv)
}
