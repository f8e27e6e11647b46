package canvas

import (
	"fmt"
)

// StatusError is returned when Canvas answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Status     string
	Path       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("canvas request %s failed: %s", e.Path, e.Status)
}

// TimeoutError is returned when a single request exceeds its deadline.
type TimeoutError struct {
	Path string
	Err  error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("canvas request %s timed out: %v", e.Path, e.Err)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}
