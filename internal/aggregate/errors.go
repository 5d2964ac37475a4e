package aggregate

import (
	"errors"
	"fmt"
)

// ErrNoModels is recorded for a provider whose response held no identifiers.
var ErrNoModels = errors.New("no models returned")

// FetchError wraps a provider-level failure. It never aborts the run.
type FetchError struct {
	Provider string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.Provider, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
