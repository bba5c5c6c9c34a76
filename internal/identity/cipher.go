package identity

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// Mode selects the block cipher mode.
type Mode string

const (
	ModeGCM Mode = "gcm"
	ModeCBC Mode = "cbc"
)

const (
	// IVSize is the IV (cbc) or nonce (gcm) length in bytes.
	IVSize = 16

	keySize = 32

	scryptN = 16384
	scryptR = 8
	scryptP = 1
)

var (
	// ErrInvalidEncryptedIdentity is returned for any value that does not
	// decrypt cleanly under the configured key.
	ErrInvalidEncryptedIdentity = errors.New("invalid encrypted identity")

	// ErrMissingSecret is returned when no operator secret is configured.
	ErrMissingSecret = errors.New("identity encryption secret is not configured")
)

// Cipher encrypts and decrypts identities. It is safe for concurrent use.
type Cipher struct {
	mode  Mode
	block cipher.Block
	aead  cipher.AEAD
	rand  io.Reader
}

// ParseMode converts a configuration string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeGCM:
		return ModeGCM, nil
	case ModeCBC:
		return ModeCBC, nil
	default:
		return "", fmt.Errorf("unknown identity cipher mode %q", s)
	}
}

// NewCipher derives the key from secret and salt and returns a Cipher.
func NewCipher(secret, salt string, mode Mode) (*Cipher, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if mode != ModeGCM && mode != ModeCBC {
		return nil, fmt.Errorf("unknown identity cipher mode %q", mode)
	}

	key, err := scrypt.Key([]byte(secret), []byte(salt), scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("failed to derive identity key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	c := &Cipher{mode: mode, block: block, rand: rand.Reader}
	if mode == ModeGCM {
		c.aead, err = cipher.NewGCMWithNonceSize(block, IVSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCM: %w", err)
		}
	}
	return c, nil
}

// Mode returns the configured mode.
func (c *Cipher) Mode() Mode {
	return c.mode
}

// Encrypt encrypts identity under a fresh random IV.
func (c *Cipher) Encrypt(identity string) (string, error) {
	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(c.rand, iv); err != nil {
		return "", fmt.Errorf("failed to generate IV: %w", err)
	}
	return c.encryptWithIV(identity, iv)
}

func (c *Cipher) encryptWithIV(identity string, iv []byte) (string, error) {
	if len(iv) != IVSize {
		return "", fmt.Errorf("IV must be %d bytes, got %d", IVSize, len(iv))
	}

	var ct []byte
	switch c.mode {
	case ModeGCM:
		ct = c.aead.Seal(nil, iv, []byte(identity), nil)
	case ModeCBC:
		padded := pkcs7Pad([]byte(identity), aes.BlockSize)
		ct = make([]byte, len(padded))
		cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(ct, padded)
	}

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(ct), nil
}

// Decrypt recovers the identity from an Encrypt result. Every failure is
// reported as ErrInvalidEncryptedIdentity.
func (c *Cipher) Decrypt(value string) (string, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("%w: expected iv:ciphertext", ErrInvalidEncryptedIdentity)
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != IVSize {
		return "", fmt.Errorf("%w: malformed IV", ErrInvalidEncryptedIdentity)
	}
	ct, err := hex.DecodeString(parts[1])
	if err != nil || len(ct) == 0 {
		return "", fmt.Errorf("%w: malformed ciphertext", ErrInvalidEncryptedIdentity)
	}

	switch c.mode {
	case ModeGCM:
		plain, err := c.aead.Open(nil, iv, ct, nil)
		if err != nil {
			return "", fmt.Errorf("%w: authentication failed", ErrInvalidEncryptedIdentity)
		}
		return string(plain), nil
	default:
		if len(ct)%aes.BlockSize != 0 {
			return "", fmt.Errorf("%w: ciphertext is not a whole number of blocks", ErrInvalidEncryptedIdentity)
		}
		plain := make([]byte, len(ct))
		cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(plain, ct)
		plain, ok := pkcs7Unpad(plain, aes.BlockSize)
		if !ok {
			return "", fmt.Errorf("%w: bad padding", ErrInvalidEncryptedIdentity)
		}
		return string(plain), nil
	}
}

// LooksEncrypted reports whether value has the iv:ciphertext shape. It does
// not check that the value decrypts.
func LooksEncrypted(value string) bool {
	iv, ct, ok := strings.Cut(value, ":")
	if !ok || len(iv) != IVSize*2 || ct == "" || strings.Contains(ct, ":") {
		return false
	}
	_, errIV := hex.DecodeString(iv)
	_, errCT := hex.DecodeString(ct)
	return errIV == nil && errCT == nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, bool) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, false
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize {
		return nil, false
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, false
		}
	}
	return data[:len(data)-n], true
}
