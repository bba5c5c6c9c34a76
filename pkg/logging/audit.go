package logging

import (
	"context"
	"log/slog"
)

// identityPrefixLength is how many characters of an identity are kept in logs.
const identityPrefixLength = 4

// AuditEvent describes a security-relevant event.
type AuditEvent struct {
	// Action is what happened, e.g. "token_exchange", "token_stored", "callback_rejected".
	Action string
	// Outcome is "success" or "failure".
	Outcome string
	// Identity is the (already truncated) identity the event concerns.
	Identity string
	// Target is the remote party, typically the provider token endpoint.
	Target string
	// Details carries free-form context such as a provider status code.
	Details string
	// Error is set for failures.
	Error error
}

// Audit logs a security audit event at INFO level with an [AUDIT] prefix.
func Audit(event AuditEvent) {
	l := logger()
	if l == nil {
		l = slog.Default()
	}

	attrs := []slog.Attr{
		slog.String("subsystem", "Audit"),
		slog.String("action", event.Action),
		slog.String("outcome", event.Outcome),
	}
	if event.Identity != "" {
		attrs = append(attrs, slog.String("identity", event.Identity))
	}
	if event.Target != "" {
		attrs = append(attrs, slog.String("target", event.Target))
	}
	if event.Details != "" {
		attrs = append(attrs, slog.String("details", event.Details))
	}
	if event.Error != nil {
		attrs = append(attrs, slog.String("error", event.Error.Error()))
	}

	l.LogAttrs(context.Background(), slog.LevelInfo, "[AUDIT] "+event.Action, attrs...)
}

// TruncateIdentity shortens an identity for log output. Short identities are
// masked entirely so that a prefix never equals the full value.
func TruncateIdentity(identity string) string {
	if identity == "" {
		return "<none>"
	}
	runes := []rune(identity)
	if len(runes) <= identityPrefixLength {
		return "***"
	}
	return string(runes[:identityPrefixLength]) + "..."
}
