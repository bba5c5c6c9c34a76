// Package config builds the single configuration value that every
// outlook-mcp component is constructed from.
//
// Configuration is assembled once, in this order, each layer overriding the
// previous one:
//
//  1. Built-in defaults (GetDefaultConfig)
//  2. config.yaml from ~/.config/outlook-mcp, or the path given by --config-path
//  3. Environment variables (MS_CLIENT_ID, MS_CLIENT_SECRET, ENCRYPTION_KEY,
//     USER_ID, USE_TEST_MODE, AUTH_SERVER_URL, ...)
//  4. Command-line flags, applied by the cmd package
//
// Components never read the environment themselves; they receive the parts
// of Config they need through their constructors.
//
// # Example config.yaml
//
//	server:
//	  port: 3333
//	  publicUrl: https://auth.example.com
//	oauth:
//	  clientId: 00000000-0000-0000-0000-000000000000
//	  redirectUri: https://auth.example.com/auth/callback
//	  tenant: common
//	identity:
//	  mode: gcm
//	tokens:
//	  dir: ~/.local/share/outlook-mcp
//
// Secrets (oauth.clientSecret, identity.secret) are usually supplied through
// the environment rather than the file.
package config
