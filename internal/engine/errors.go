// internal/engine/errors.go
package engine

import "fmt"

// MalformedInvocationError indicates the model's tool selection could not be
// turned into a valid action: unknown tool name, a missing required argument,
// or an argument of the wrong shape. The cycle that produced it is retried
// against the same frame.
type MalformedInvocationError struct {
	Name   string
	Reason string
}

func (e *MalformedInvocationError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("malformed invocation: %s", e.Reason)
	}
	return fmt.Sprintf("malformed invocation %q: %s", e.Name, e.Reason)
}

// StallViolationError indicates the model chose observe while the consecutive
// observation window was already full. The narrative state is left untouched.
type StallViolationError struct {
	Consecutive int
	Limit       int
}

func (e *StallViolationError) Error() string {
	return fmt.Sprintf("stall violation: %d consecutive observations reached limit %d", e.Consecutive, e.Limit)
}
