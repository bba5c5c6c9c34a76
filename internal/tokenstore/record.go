package tokenstore

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"
)

// TestRecordLifetime is how long a test-mode record stays valid.
const TestRecordLifetime = time.Hour

// TokenRecord is the persisted result of a token exchange.
//
// ExpiresAt is absolute, in epoch milliseconds, computed when the provider
// response was received. Provider fields without a dedicated field are kept
// in Extra and written back unchanged.
type TokenRecord struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	Scope        string `json:"scope,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	ExpiresAt    int64  `json:"expires_at"`

	Extra map[string]any `json:"-"`
}

var recordFields = []string{"access_token", "refresh_token", "token_type", "scope", "expires_in", "expires_at"}

// ExpiresAtFrom returns receivedAt + expiresIn seconds in epoch milliseconds.
func ExpiresAtFrom(receivedAt time.Time, expiresIn int64) int64 {
	return receivedAt.UnixMilli() + expiresIn*1000
}

// NewTestRecord returns a synthetic record valid for TestRecordLifetime from now.
func NewTestRecord(now time.Time) *TokenRecord {
	ms := now.UnixMilli()
	expiresIn := int64(TestRecordLifetime / time.Second)
	return &TokenRecord{
		AccessToken:  fmt.Sprintf("test_access_token_%d", ms),
		RefreshToken: fmt.Sprintf("test_refresh_token_%d", ms),
		TokenType:    "Bearer",
		ExpiresIn:    expiresIn,
		ExpiresAt:    ExpiresAtFrom(now, expiresIn),
		Extra:        map[string]any{"test_mode": true},
	}
}

// IsValid reports whether the record has an access token that has not
// expired at now. A record is invalid from ExpiresAt onwards.
func (r *TokenRecord) IsValid(now time.Time) bool {
	if r == nil || r.AccessToken == "" {
		return false
	}
	return now.UnixMilli() < r.ExpiresAt
}

// IsValid is the package-level form of TokenRecord.IsValid.
func IsValid(r *TokenRecord, now time.Time) bool {
	return r.IsValid(now)
}

// ExpiresAtTime returns ExpiresAt as a time.Time.
func (r *TokenRecord) ExpiresAtTime() time.Time {
	return time.UnixMilli(r.ExpiresAt)
}

// Clone returns a deep copy of the record.
func (r *TokenRecord) Clone() *TokenRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.Extra != nil {
		c.Extra = maps.Clone(r.Extra)
	}
	return &c
}

// MarshalJSON writes the known fields on top of Extra.
func (r TokenRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Extra)+len(recordFields))
	for k, v := range r.Extra {
		out[k] = v
	}

	out["access_token"] = r.AccessToken
	out["expires_at"] = r.ExpiresAt
	if r.RefreshToken != "" {
		out["refresh_token"] = r.RefreshToken
	}
	if r.TokenType != "" {
		out["token_type"] = r.TokenType
	}
	if r.Scope != "" {
		out["scope"] = r.Scope
	}
	if r.ExpiresIn != 0 {
		out["expires_in"] = r.ExpiresIn
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the known fields and collects the rest into Extra.
func (r *TokenRecord) UnmarshalJSON(data []byte) error {
	type plain TokenRecord
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, k := range recordFields {
		delete(raw, k)
	}

	var extra map[string]any
	if len(raw) > 0 {
		extra = make(map[string]any, len(raw))
		for k, v := range raw {
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				return fmt.Errorf("field %s: %w", k, err)
			}
			extra[k] = val
		}
	}

	*r = TokenRecord(p)
	r.Extra = extra
	return nil
}
