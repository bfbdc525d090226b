package sweep

import (
	"crypto/subtle"
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when the supplied key does not match the configured secret.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrSweepInProgress is returned when another sweep holds the lock for the same sheet.
	ErrSweepInProgress = errors.New("a reservation sweep is already running")
)

// FetchError means the sheet could not be read. It ends the run.
type FetchError struct {
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("failed to fetch Google Sheets data: %d", e.Status)
	}
	return fmt.Sprintf("failed to fetch Google Sheets data: %v", e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsFetchError checks if the error is a FetchError.
func IsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// RowClearError records a failed write for a single row. The sweep logs it and moves on.
type RowClearError struct {
	Row  int
	Cell string
	Err  error
}

func (e *RowClearError) Error() string {
	return fmt.Sprintf("clear row %d (%s): %v", e.Row, e.Cell, e.Err)
}

func (e *RowClearError) Unwrap() error {
	return e.Err
}

// Authorize compares the supplied key with the secret byte for byte.
// An empty secret never authorizes.
func Authorize(secret, supplied string) error {
	if secret == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(secret), []byte(supplied)) != 1 {
		return ErrUnauthorized
	}
	return nil
}
