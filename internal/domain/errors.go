package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig marks malformed or missing configuration.
	ErrConfig = errors.New("configuration error")

	// ErrSessionNotFound indicates no record exists for a session id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionCorrupt indicates a stored record could not be decoded.
	ErrSessionCorrupt = errors.New("session record is corrupt")

	// ErrProvider marks any provider-level failure.
	ErrProvider = errors.New("provider error")

	// ErrUnsupportedProvider indicates a provider name matches no known adapter.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrProviderUnavailable indicates an adapter could not be constructed in this environment.
	ErrProviderUnavailable = errors.New("provider unavailable")
)

// UnsupportedProviderError is returned when no adapter exists for a name.
type UnsupportedProviderError struct {
	Provider string
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("unsupported provider: %s", e.Provider)
}

func (e *UnsupportedProviderError) Is(target error) bool {
	return target == ErrUnsupportedProvider || target == ErrProvider
}

// ProviderUnavailableError is returned when adapter construction fails.
type ProviderUnavailableError struct {
	Provider string
	Reason   error
}

func (e *ProviderUnavailableError) Error() string {
	return fmt.Sprintf("provider %s unavailable: %v", e.Provider, e.Reason)
}

func (e *ProviderUnavailableError) Is(target error) bool {
	return target == ErrProviderUnavailable || target == ErrProvider
}

func (e *ProviderUnavailableError) Unwrap() error {
	return e.Reason
}

// RequestError wraps a failed provider request.
type RequestError struct {
	Provider string
	Err      error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s provider request failed: %v", e.Provider, e.Err)
}

func (e *RequestError) Is(target error) bool {
	return target == ErrProvider
}

func (e *RequestError) Unwrap() error {
	return e.Err
}
