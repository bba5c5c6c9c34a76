package config

import (
	"net"
	"strconv"
	"strings"
	"time"
)

// Config is the top-level configuration for outlook-mcp. It is built once at
// process start (defaults, then config.yaml, then environment, then flags) and
// passed by reference into each component constructor.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	OAuth    OAuthConfig    `yaml:"oauth"`
	Identity IdentityConfig `yaml:"identity"`
	Tokens   TokensConfig   `yaml:"tokens"`
	Tools    ToolsConfig    `yaml:"tools"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig configures the authentication HTTP server.
type ServerConfig struct {
	Host string `yaml:"host,omitempty" env:"OUTLOOK_MCP_HOST"`
	Port int    `yaml:"port,omitempty" env:"OUTLOOK_MCP_PORT"`

	// PublicURL is the externally reachable base URL of the auth server, used
	// by the tool process when it has no client id of its own and has to send
	// the user through /auth. Defaults to http://<host>:<port>.
	PublicURL string `yaml:"publicUrl,omitempty" env:"AUTH_SERVER_URL"`

	// AllowPlainIdentity lets /auth accept a user_id that is not an encrypted
	// identity. The legacy tooling linked to /auth?user_id=<plain id>.
	AllowPlainIdentity bool `yaml:"allowPlainIdentity,omitempty" env:"OUTLOOK_MCP_ALLOW_PLAIN_IDENTITY"`

	// CallbackRateLimit is the number of /auth and /auth/callback requests
	// accepted per client IP per minute. Zero disables rate limiting.
	CallbackRateLimit int `yaml:"callbackRateLimit,omitempty" env:"OUTLOOK_MCP_CALLBACK_RATE_LIMIT"`

	ShutdownTimeout time.Duration `yaml:"shutdownTimeout,omitempty" env:"OUTLOOK_MCP_SHUTDOWN_TIMEOUT"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// EffectivePublicURL returns PublicURL, or a URL derived from host and port.
func (s ServerConfig) EffectivePublicURL() string {
	if s.PublicURL != "" {
		return strings.TrimSuffix(s.PublicURL, "/")
	}
	return "http://" + s.Addr()
}

// OAuthConfig configures the provider application registration.
type OAuthConfig struct {
	ClientID     string `yaml:"clientId,omitempty" env:"MS_CLIENT_ID"`
	ClientSecret string `yaml:"clientSecret,omitempty" env:"MS_CLIENT_SECRET"`

	// Tenant selects the Microsoft identity platform tenant ("common",
	// "organizations", "consumers" or a tenant id).
	Tenant string `yaml:"tenant,omitempty" env:"MS_TENANT"`

	// AuthURL and TokenURL override the endpoints derived from Tenant.
	AuthURL  string `yaml:"authUrl,omitempty" env:"MS_AUTH_URL"`
	TokenURL string `yaml:"tokenUrl,omitempty" env:"MS_TOKEN_URL"`

	// RedirectURI must match the URI registered with the provider exactly.
	RedirectURI string `yaml:"redirectUri,omitempty" env:"MS_REDIRECT_URI"`

	Scopes []string `yaml:"scopes,omitempty" env:"MS_SCOPES" envSeparator:" "`

	// StateMaxAge bounds how old a callback's issued_at may be.
	StateMaxAge time.Duration `yaml:"stateMaxAge,omitempty" env:"OUTLOOK_MCP_STATE_MAX_AGE"`

	// HTTPTimeout bounds each token endpoint round trip.
	HTTPTimeout time.Duration `yaml:"httpTimeout,omitempty" env:"OUTLOOK_MCP_HTTP_TIMEOUT"`
}

// HasCredentials reports whether both client id and client secret are set.
func (o OAuthConfig) HasCredentials() bool {
	return o.ClientID != "" && o.ClientSecret != ""
}

// IdentityConfig configures identifier encryption.
type IdentityConfig struct {
	// Secret is the operator secret the encryption key is derived from.
	Secret string `yaml:"secret,omitempty" env:"ENCRYPTION_KEY"`

	// Mode is "gcm" (authenticated, default) or "cbc" (legacy compatible).
	Mode string `yaml:"mode,omitempty" env:"OUTLOOK_MCP_IDENTITY_MODE"`

	// Salt is the fixed key-derivation salt.
	Salt string `yaml:"salt,omitempty" env:"OUTLOOK_MCP_IDENTITY_SALT"`
}

// TokensConfig configures token persistence.
type TokensConfig struct {
	// Dir holds one token file per identity. Defaults to the user's home directory.
	Dir string `yaml:"dir,omitempty" env:"OUTLOOK_MCP_TOKEN_DIR"`

	// FilePrefix is prepended to the escaped identity to form the file name.
	FilePrefix string `yaml:"filePrefix,omitempty" env:"OUTLOOK_MCP_TOKEN_PREFIX"`
}

// ToolsConfig configures the MCP tool facade process.
type ToolsConfig struct {
	// UserID is the identity the tool process acts for.
	UserID string `yaml:"userId,omitempty" env:"USER_ID"`

	// TestMode installs synthetic tokens instead of running the OAuth flow.
	TestMode bool `yaml:"testMode,omitempty" env:"USE_TEST_MODE"`

	ServerName string `yaml:"serverName,omitempty" env:"OUTLOOK_MCP_SERVER_NAME"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty" env:"OUTLOOK_MCP_LOG_LEVEL"`
	Format string `yaml:"format,omitempty" env:"OUTLOOK_MCP_LOG_FORMAT"`
}
