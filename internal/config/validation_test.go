package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := GetDefaultConfig()
	cfg.Tokens.Dir = "/tmp/tokens"
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_MissingCredentialsIsNotAnError(t *testing.T) {
	cfg := validConfig()
	cfg.OAuth.ClientID = ""
	cfg.OAuth.ClientSecret = ""
	assert.NoError(t, cfg.Validate())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"public url without scheme", func(c *Config) { c.Server.PublicURL = "auth.example.com" }, "server.publicUrl"},
		{"negative rate limit", func(c *Config) { c.Server.CallbackRateLimit = -1 }, "server.callbackRateLimit"},
		{"redirect uri empty", func(c *Config) { c.OAuth.RedirectURI = "" }, "oauth.redirectUri"},
		{"token url not http", func(c *Config) { c.OAuth.TokenURL = "ftp://example.com/token" }, "oauth.tokenUrl"},
		{"no scopes", func(c *Config) { c.OAuth.Scopes = nil }, "oauth.scopes"},
		{"zero state max age", func(c *Config) { c.OAuth.StateMaxAge = 0 }, "oauth.stateMaxAge"},
		{"zero http timeout", func(c *Config) { c.OAuth.HTTPTimeout = 0 }, "oauth.httpTimeout"},
		{"unknown identity mode", func(c *Config) { c.Identity.Mode = "ecb" }, "identity.mode"},
		{"empty salt", func(c *Config) { c.Identity.Salt = "" }, "identity.salt"},
		{"empty token dir", func(c *Config) { c.Tokens.Dir = "" }, "tokens.dir"},
		{"prefix with separator", func(c *Config) { c.Tokens.FilePrefix = "../x" }, "tokens.filePrefix"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))
			require.Len(t, verrs, 1)
			assert.Equal(t, tt.field, verrs[0].Field)
		})
	}
}

func TestValidationErrors_Error(t *testing.T) {
	var errs ValidationErrors
	assert.False(t, errs.HasErrors())
	assert.Equal(t, "no validation errors", errs.Error())

	errs.Add("a", "is bad")
	assert.Equal(t, "field 'a': is bad", errs.Error())

	errs.Add("b", "is worse", 42)
	assert.True(t, errs.HasErrors())
	assert.Equal(t, "validation failed: field 'a': is bad; field 'b': is worse", errs.Error())
	assert.Equal(t, 42, errs[1].Value)
}
