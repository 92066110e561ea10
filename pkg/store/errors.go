package store

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates the requested key is not present in the store
	ErrNotFound = errors.New("entry not found")

	// ErrInvalidEntry indicates a stored entry is corrupted
	ErrInvalidEntry = errors.New("invalid store entry")

	// ErrInvalidName indicates an unusable store name
	ErrInvalidName = errors.New("invalid store name")
)

// StoreError reports a failed storage operation.
type StoreError struct {
	Op      string
	Backend string
	Store   string
	Err     error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("%s store %q: %s: %v", e.Backend, e.Store, e.Op, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q contains NUL", ErrInvalidName, name)
	}
	return nil
}
