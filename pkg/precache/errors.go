package precache

import (
	"errors"
	"fmt"
)

// ErrBadStatus indicates an asset responded with a non-2xx status.
var ErrBadStatus = errors.New("unexpected status")

// AssetFailure records why one manifest asset could not be loaded.
type AssetFailure struct {
	Asset string
	Err   error
}

// LoadError reports a populate that committed nothing because one or more
// assets failed.
type LoadError struct {
	Generation string
	Total      int
	Failures   []AssetFailure
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	if len(e.Failures) == 0 {
		return fmt.Sprintf("precache %q failed", e.Generation)
	}
	first := e.Failures[0]
	return fmt.Sprintf("precache %q: %d of %d assets failed (first: %s: %v)",
		e.Generation, len(e.Failures), e.Total, first.Asset, first.Err)
}

// Unwrap returns the individual asset errors for errors.Is/As.
func (e *LoadError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}
