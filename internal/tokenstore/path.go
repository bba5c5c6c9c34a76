package tokenstore

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

const (
	fileSuffix = ".json"

	// MaxIdentityLength bounds identities in bytes.
	MaxIdentityLength = 200
)

// ErrInvalidIdentity is returned for identities that cannot name a token file.
var ErrInvalidIdentity = errors.New("invalid identity")

// ValidateIdentity rejects empty identities, identities longer than
// MaxIdentityLength bytes and identities containing control characters.
func ValidateIdentity(identity string) error {
	if identity == "" {
		return fmt.Errorf("%w: empty", ErrInvalidIdentity)
	}
	if len(identity) > MaxIdentityLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidIdentity, MaxIdentityLength)
	}
	if strings.IndexFunc(identity, unicode.IsControl) >= 0 {
		return fmt.Errorf("%w: contains control characters", ErrInvalidIdentity)
	}
	return nil
}

// fileName maps an identity to its token file name.
func fileName(prefix, identity string) string {
	return prefix + url.PathEscape(identity) + fileSuffix
}

// identityFromFileName reverses fileName. ok is false for files that are not
// token files.
func identityFromFileName(prefix, name string) (string, bool) {
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, fileSuffix) {
		return "", false
	}
	escaped := strings.TrimSuffix(strings.TrimPrefix(name, prefix), fileSuffix)
	if escaped == "" {
		return "", false
	}
	identity, err := url.PathUnescape(escaped)
	if err != nil {
		return "", false
	}
	if url.PathEscape(identity) != escaped {
		return "", false
	}
	return identity, true
}
