package provider

import "errors"

// Sentinel errors for provider operations.
var (
	// ErrProviderDown indicates the backend is unreachable or answered
	// with a server error.
	ErrProviderDown = errors.New("provider unavailable")

	// ErrModelNotFound indicates the requested model is not served.
	ErrModelNotFound = errors.New("model not found")

	// ErrBadResponse indicates the backend answered with a payload that
	// could not be decoded.
	ErrBadResponse = errors.New("malformed provider response")

	// ErrAuthentication indicates the backend rejected the credentials.
	ErrAuthentication = errors.New("provider authentication failed")
)

// IsUnavailable reports whether the error means the backend could not be
// reached, as opposed to rejecting the request.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrProviderDown)
}
