package providers

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the provider answered but has nothing for the key.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable covers transport failures, timeouts, throttling and
	// malformed or unsuccessful responses.
	ErrUnavailable = errors.New("provider unavailable")
)

// StatusError carries the HTTP status of a failed provider call. It unwraps
// to ErrNotFound for 404 and to ErrUnavailable otherwise.
type StatusError struct {
	Provider string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status code %d", e.Provider, e.Code)
}

func (e *StatusError) Unwrap() error {
	if e.Code == 404 {
		return ErrNotFound
	}
	return ErrUnavailable
}

// Unavailable wraps cause so that errors.Is(err, ErrUnavailable) holds.
func Unavailable(provider string, cause error) error {
	return fmt.Errorf("%s: %w: %v", provider, ErrUnavailable, cause)
}
