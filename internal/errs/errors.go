package errs

import "fmt"

// ValidationError rejects malformed input synchronously, before any mutation.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func Validation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// InvalidTransitionError is returned when an order-status change is not in
// the transition table. The order is left untouched.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid order transition from %s to %s", e.From, e.To)
}

// InvalidStateError is returned when an operation is attempted against an
// entity whose current state does not permit it.
type InvalidStateError struct {
	Msg string
}

func (e *InvalidStateError) Error() string {
	return e.Msg
}

func InvalidState(format string, args ...interface{}) *InvalidStateError {
	return &InvalidStateError{Msg: fmt.Sprintf(format, args...)}
}

// DependencyError wraps an external gateway failure. Callers may apply a
// documented fallback instead of failing outright.
type DependencyError struct {
	Service string
	Err     error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s dependency failed: %v", e.Service, e.Err)
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}

func Dependency(service string, err error) *DependencyError {
	return &DependencyError{Service: service, Err: err}
}

// ConsistencyViolation is raised when an atomic guard rejects an update, for
// example a coupon usage cap reached between validation and redemption.
// Callers should treat it as "try again", not as fatal.
type ConsistencyViolation struct {
	Msg string
}

func (e *ConsistencyViolation) Error() string {
	return e.Msg
}

func Consistency(format string, args ...interface{}) *ConsistencyViolation {
	return &ConsistencyViolation{Msg: fmt.Sprintf(format, args...)}
}
