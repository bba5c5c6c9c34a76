package cmd

import (
	"errors"
	"fmt"

	"outlookmcp/internal/config"
	"outlookmcp/internal/identity"
	"outlookmcp/internal/oauth"
	"outlookmcp/internal/status"
	"outlookmcp/internal/tokenstore"
	"outlookmcp/pkg/logging"
)

// newStore returns the token store for cfg.
func newStore(cfg config.Config) (*tokenstore.Store, error) {
	return tokenstore.New(tokenstore.Config{
		Dir:        cfg.Tokens.Dir,
		FilePrefix: cfg.Tokens.FilePrefix,
	})
}

// newCipher returns the identity cipher for cfg.
func newCipher(cfg config.Config) (*identity.Cipher, error) {
	mode, err := identity.ParseMode(cfg.Identity.Mode)
	if err != nil {
		return nil, err
	}
	c, err := identity.NewCipher(cfg.Identity.Secret, cfg.Identity.Salt, mode)
	if err != nil {
		return nil, fmt.Errorf("identity encryption: %w (set ENCRYPTION_KEY)", err)
	}
	return c, nil
}

// components is the wired set of services shared by the commands.
type components struct {
	cfg    config.Config
	cipher oauth.IdentityCipher
	store  *tokenstore.Store
	flow   *oauth.Flow
	probe  *status.Probe
}

func newComponents(cfg config.Config) (*components, error) {
	store, err := newStore(cfg)
	if err != nil {
		return nil, err
	}
	cipher, err := newIdentityCipher(cfg)
	if err != nil {
		return nil, err
	}
	flow, err := oauth.NewFlow(cfg.OAuth, cipher, store)
	if err != nil {
		return nil, err
	}
	return &components{
		cfg:    cfg,
		cipher: cipher,
		store:  store,
		flow:   flow,
		probe:  status.NewProbe(store, nil),
	}, nil
}

// newIdentityCipher is newCipher, except that test mode runs without
// ENCRYPTION_KEY: no identity is encrypted there until a sign-in link is
// requested, which then fails with identity.ErrMissingSecret.
func newIdentityCipher(cfg config.Config) (oauth.IdentityCipher, error) {
	c, err := newCipher(cfg)
	if err == nil {
		return c, nil
	}
	if cfg.Tools.TestMode && errors.Is(err, identity.ErrMissingSecret) {
		logging.Warn("CLI", "ENCRYPTION_KEY is not set; sign-in links are unavailable in test mode")
		return missingSecretCipher{}, nil
	}
	return nil, err
}

type missingSecretCipher struct{}

func (missingSecretCipher) Encrypt(string) (string, error) {
	return "", identity.ErrMissingSecret
}

func (missingSecretCipher) Decrypt(string) (string, error) {
	return "", identity.ErrMissingSecret
}
