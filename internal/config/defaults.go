package config

import "time"

const (
	// DefaultPort is the port the legacy auth server listened on; the redirect
	// URI registered with the provider usually points at it.
	DefaultPort = 3333

	DefaultHost = "localhost"

	DefaultCallbackPath = "/auth/callback"

	DefaultTenant = "common"

	DefaultStateMaxAge = 10 * time.Minute

	DefaultHTTPTimeout = 30 * time.Second

	DefaultShutdownTimeout = 10 * time.Second

	DefaultCallbackRateLimit = 30

	// DefaultTokenFilePrefix yields ~/.outlook-mcp-tokens-<identity>.json.
	DefaultTokenFilePrefix = ".outlook-mcp-tokens-"

	DefaultIdentityMode = "gcm"

	// DefaultIdentitySalt matches the salt the legacy tooling derived its key with.
	DefaultIdentitySalt = "salt"

	DefaultServerName = "outlook-assistant"
)

// DefaultScopes is the fixed scope list requested from the provider.
var DefaultScopes = []string{
	"offline_access",
	"User.Read",
	"Mail.Read",
	"Mail.Send",
	"Calendars.Read",
	"Calendars.ReadWrite",
	"Contacts.Read",
}

// GetDefaultConfig returns the built-in defaults.
func GetDefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host:               DefaultHost,
			Port:               DefaultPort,
			AllowPlainIdentity: true,
			CallbackRateLimit:  DefaultCallbackRateLimit,
			ShutdownTimeout:    DefaultShutdownTimeout,
		},
		OAuth: OAuthConfig{
			Tenant:      DefaultTenant,
			RedirectURI: "http://localhost:3333" + DefaultCallbackPath,
			Scopes:      append([]string(nil), DefaultScopes...),
			StateMaxAge: DefaultStateMaxAge,
			HTTPTimeout: DefaultHTTPTimeout,
		},
		Identity: IdentityConfig{
			Mode: DefaultIdentityMode,
			Salt: DefaultIdentitySalt,
		},
		Tokens: TokensConfig{
			FilePrefix: DefaultTokenFilePrefix,
		},
		Tools: ToolsConfig{
			ServerName: DefaultServerName,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
