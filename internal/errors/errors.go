package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Common error types for the exchange client
var (
	// Session errors
	ErrAuthExpired        = errors.New("session expired")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrMissingAccessToken = errors.New("missing access token")

	// Exchange errors
	ErrInvalidOrder        = errors.New("invalid order")
	ErrInvalidTrade        = errors.New("invalid trade")
	ErrInvalidTransfer     = errors.New("invalid transfer")
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrInsufficientBalance = errors.New("insufficient balance")

	// General errors
	ErrNotFound        = errors.New("not found")
	ErrMalformedResult = errors.New("malformed response")
)

// APIError is returned by the transport for any non-2xx response.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string // "message" field of the JSON error body, when present
	Body       []byte
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

// Is lets errors.Is(err, ErrUnauthorized) and errors.Is(err, ErrNotFound) match on status code.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// AuthError reports a failed token refresh: the refresh credential was absent,
// expired, rejected, or the refresh call itself could not complete.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return "auth: " + e.Reason
	}
	return fmt.Sprintf("auth: %s: %v", e.Reason, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func (e *AuthError) Is(target error) bool {
	return target == ErrAuthExpired
}

// StatusCode returns the HTTP status carried by err, or 0 when err is not an APIError.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Message returns the server supplied message of an APIError in err's chain,
// falling back to err.Error().
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
