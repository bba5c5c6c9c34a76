// Package logging provides the structured, subsystem-oriented logger used by
// every outlook-mcp component.
//
// The package is a thin layer over Go's standard slog package. Every entry
// carries a subsystem name so operators can filter the output of the auth
// server and the MCP tool process by concern:
//
//   - Bootstrap: process start-up, configuration and shutdown
//   - Config: configuration loading and validation
//   - Identity: identifier encryption and decryption
//   - TokenStore: token persistence
//   - OAuth: authorization URL generation, callbacks and code exchange
//   - HTTP: the authentication server
//   - Tools: the MCP tool facade
//
// # Usage
//
//	logging.Init(logging.Options{Level: logging.LevelInfo, Output: os.Stderr})
//
//	logging.Info("OAuth", "Authorization URL generated for %s", logging.TruncateIdentity(id))
//	logging.Error("TokenStore", err, "Failed to persist token record")
//
// Output defaults to stderr. The MCP tool process talks JSON-RPC over stdout,
// so nothing in this package ever writes there unless asked to.
//
// # Audit Logging
//
// Security-relevant events (token exchange, token persistence, rejected
// callbacks) are emitted through Audit:
//
//	logging.Audit(logging.AuditEvent{
//	    Action:   "token_exchange",
//	    Outcome:  "success",
//	    Identity: logging.TruncateIdentity(id),
//	})
//
// Audit events are logged at INFO level with an [AUDIT] prefix for easy
// filtering by log aggregation systems.
//
// Identities are never logged in full: TruncateIdentity keeps a short prefix.
// Access and refresh tokens are never logged at all.
package logging
