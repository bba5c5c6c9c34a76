package oauth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// AuthStateVersion is the only AuthState version this build accepts.
const AuthStateVersion = 1

// MaxClockSkew is how far in the future an AuthState may claim to be issued.
const MaxClockSkew = time.Minute

// AuthState is the value carried in the OAuth state parameter.
type AuthState struct {
	Version int `json:"v"`

	// UserID is the encrypted identity.
	UserID string `json:"user_id"`

	// IssuedAt is in epoch milliseconds.
	IssuedAt int64 `json:"issued_at"`
}

// NewAuthState returns a current-version state for an encrypted identity.
func NewAuthState(encryptedIdentity string, now time.Time) AuthState {
	return AuthState{
		Version:  AuthStateVersion,
		UserID:   encryptedIdentity,
		IssuedAt: now.UnixMilli(),
	}
}

// Encode serializes the state as unpadded base64url JSON.
func (s AuthState) Encode() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to marshal state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeAuthState parses an encoded state. Padded input is accepted. All
// failures wrap ErrInvalidState.
func DecodeAuthState(encoded string) (AuthState, error) {
	var s AuthState
	if encoded == "" {
		return s, fmt.Errorf("%w: missing", ErrInvalidState)
	}

	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(encoded, "="))
	if err != nil {
		return s, fmt.Errorf("%w: not base64url", ErrInvalidState)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("%w: not JSON", ErrInvalidState)
	}

	if s.Version != AuthStateVersion {
		return s, fmt.Errorf("%w: unsupported version %d", ErrInvalidState, s.Version)
	}
	if s.UserID == "" {
		return s, fmt.Errorf("%w: no user_id", ErrInvalidState)
	}
	if s.IssuedAt <= 0 {
		return s, fmt.Errorf("%w: no issued_at", ErrInvalidState)
	}
	return s, nil
}

// CheckAge rejects states older than maxAge or issued more than MaxClockSkew
// in the future.
func (s AuthState) CheckAge(now time.Time, maxAge time.Duration) error {
	issued := time.UnixMilli(s.IssuedAt)
	age := now.Sub(issued)
	if age > maxAge {
		return fmt.Errorf("%w: expired %s ago", ErrInvalidState, (age - maxAge).Truncate(time.Second))
	}
	if age < -MaxClockSkew {
		return fmt.Errorf("%w: issued in the future", ErrInvalidState)
	}
	return nil
}
