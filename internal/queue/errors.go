package queue

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable marks failures to reach the backing store. Callers
	// treat it as tick-level and retry on the next tick.
	ErrStoreUnavailable = errors.New("item store unavailable")
	// ErrIllegalTransition is returned before any storage access when a status
	// update does not advance exactly one position.
	ErrIllegalTransition = errors.New("illegal status transition")
	// ErrInvalidItem rejects inserts that lack an id, URL, or valid status.
	ErrInvalidItem = errors.New("invalid item")
)

// Unavailable tags err as a store connectivity failure for operation.
func Unavailable(operation string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, operation, err)
}
