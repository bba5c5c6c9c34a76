package oauth

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigurationMissing means the client id, client secret or redirect
	// URI needed for the requested step is not configured.
	ErrConfigurationMissing = errors.New("oauth client configuration missing")

	// ErrInvalidState covers a state parameter that is missing, malformed,
	// undecryptable, of an unknown version, too old or issued in the future.
	ErrInvalidState = errors.New("invalid state parameter")

	// ErrMissingAuthorizationCode means the callback carried no code.
	ErrMissingAuthorizationCode = errors.New("missing authorization code")

	// ErrNoRecord means no token record exists for the identity.
	ErrNoRecord = errors.New("no token record")

	// ErrNoRefreshToken means the stored record cannot be refreshed.
	ErrNoRefreshToken = errors.New("token record has no refresh token")
)

// ProviderError is an error reported by the provider on the callback.
type ProviderError struct {
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("provider returned error %q", e.Code)
	}
	return fmt.Sprintf("provider returned error %q: %s", e.Code, e.Description)
}

// TokenExchangeError is a failed call to the token endpoint. StatusCode is
// zero when no HTTP response was received.
type TokenExchangeError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TokenExchangeError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("token exchange failed: %v", e.Err)
	}
	return fmt.Sprintf("token exchange failed with status %d", e.StatusCode)
}

func (e *TokenExchangeError) Unwrap() error {
	return e.Err
}
