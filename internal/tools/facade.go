package tools

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"outlookmcp/internal/oauth"
	"outlookmcp/internal/status"
	"outlookmcp/internal/tokenstore"
	"outlookmcp/pkg/logging"
)

// Tool names.
const (
	ToolAbout           = "about"
	ToolAuthenticate    = "authenticate"
	ToolCheckAuthStatus = "check-auth-status"
)

// Status messages returned by check-auth-status.
const (
	MessageNoIdentity    = "Not authenticated - USER_ID environment variable not set"
	MessageNotAuthed     = "Not authenticated"
	MessageExpired       = "Authentication expired - run authenticate to sign in again"
	MessageAuthenticated = "Authenticated and ready"
)

const missingIdentityText = "Error: USER_ID environment variable is required for authentication. " +
	"Please set the USER_ID environment variable to create user-specific credentials.\n\n" +
	`Example: export USER_ID="your_user_id"`

// Config configures the facade.
type Config struct {
	// UserID is the identity this process acts for.
	UserID string

	// TestMode makes authenticate install a synthetic record.
	TestMode bool

	// AuthServerURL is the auth server base URL used for /auth links.
	AuthServerURL string

	ServerName string
	Version    string
}

// Authenticator is the part of the authorization flow the facade drives.
type Authenticator interface {
	ClientID() string
	BuildAuthorizationURL(identity string) (string, error)
	InstallTestRecord(identity string) (*tokenstore.TokenRecord, error)
}

// Encrypter encrypts identities for /auth links.
type Encrypter interface {
	Encrypt(identity string) (string, error)
}

// RecordDeleter removes stored records for force re-authentication.
type RecordDeleter interface {
	Delete(identity string) error
}

// Facade implements the MCP tools.
type Facade struct {
	cfg       Config
	auth      Authenticator
	encrypter Encrypter
	records   RecordDeleter
	probe     *status.Probe
}

// NewFacade returns a Facade.
func NewFacade(cfg Config, auth Authenticator, encrypter Encrypter, records RecordDeleter, probe *status.Probe) *Facade {
	return &Facade{
		cfg:       cfg,
		auth:      auth,
		encrypter: encrypter,
		records:   records,
		probe:     probe,
	}
}

// NewMCPServer returns an MCP server with the facade's tools registered.
func (f *Facade) NewMCPServer() *server.MCPServer {
	s := server.NewMCPServer(
		f.cfg.ServerName,
		f.cfg.Version,
		server.WithToolCapabilities(false),
	)
	f.Register(s)
	return s
}

// Register adds the tools to s.
func (f *Facade) Register(s *server.MCPServer) {
	aboutTool := mcp.NewTool(ToolAbout,
		mcp.WithDescription("Returns information about this Outlook Assistant server"),
	)
	s.AddTool(aboutTool, f.handleAbout)

	authenticateTool := mcp.NewTool(ToolAuthenticate,
		mcp.WithDescription("Authenticate with Microsoft Graph API to access Outlook data (USER_ID environment variable required)"),
		mcp.WithBoolean("force",
			mcp.Description("Force re-authentication even if already authenticated"),
		),
	)
	s.AddTool(authenticateTool, f.handleAuthenticate)

	statusTool := mcp.NewTool(ToolCheckAuthStatus,
		mcp.WithDescription("Check the current authentication status with Microsoft Graph API"),
	)
	s.AddTool(statusTool, f.handleCheckAuthStatus)
}

// ServeStdio serves the tools on stdin/stdout until the client disconnects.
func (f *Facade) ServeStdio() error {
	logging.Info("Tools", "Serving %s %s on stdio", f.cfg.ServerName, f.cfg.Version)
	return server.ServeStdio(f.NewMCPServer())
}

func (f *Facade) handleAbout(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(f.About()), nil
}

func (f *Facade) handleAuthenticate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	force, _ := request.GetArguments()["force"].(bool)

	text, err := f.Authenticate(force)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (f *Facade) handleCheckAuthStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(f.CheckAuthStatus()), nil
}

// About returns the about text.
func (f *Facade) About() string {
	return fmt.Sprintf("📧 Outlook Assistant MCP Server v%s 📧\n\n"+
		"Provides access to Microsoft Outlook email, calendar, and contacts through Microsoft Graph API.\n"+
		"Sign in with the authenticate tool; check-auth-status reports whether a token is ready.", f.cfg.Version)
}

// Authenticate starts sign-in for the configured identity.
//
// With force unset and a valid token already stored, no new flow is started.
// With force set, the stored token is deleted first, so check-auth-status
// reports the identity as unauthenticated until the new sign-in completes.
// Test mode ignores force and always installs a fresh synthetic token.
func (f *Facade) Authenticate(force bool) (string, error) {
	identity := f.cfg.UserID
	if identity == "" {
		return "", errors.New(missingIdentityText)
	}

	if f.cfg.TestMode {
		if _, err := f.auth.InstallTestRecord(identity); err != nil {
			return "", fmt.Errorf("failed to create test token: %w", err)
		}
		return fmt.Sprintf("Successfully authenticated with Microsoft Graph API (test mode) for user: %s", identity), nil
	}

	if !force && f.probe.Check(identity) == status.Valid {
		return fmt.Sprintf("Already authenticated for user: %s\n\n"+
			"Use force=true to sign in again.", identity), nil
	}
	if force {
		if err := f.records.Delete(identity); err != nil {
			return "", fmt.Errorf("failed to clear existing token: %w", err)
		}
	}

	link, err := f.SignInLink(identity)
	if err != nil {
		return "", err
	}

	logging.Info("Tools", "Issued sign-in link for %s (force=%t)", logging.TruncateIdentity(identity), force)
	return fmt.Sprintf("Authentication required for user: %s\n\n"+
		"Please visit the following URL to authenticate with Microsoft: %s\n\n"+
		"After authentication, your credentials will be saved securely with your user ID.", identity, link), nil
}

// SignInLink returns the URL that starts sign-in for identity. It prefers the
// provider URL and falls back to the auth server's /auth.
func (f *Facade) SignInLink(identity string) (string, error) {
	if f.auth.ClientID() != "" {
		link, err := f.auth.BuildAuthorizationURL(identity)
		if err == nil {
			return link, nil
		}
		if !errors.Is(err, oauth.ErrConfigurationMissing) {
			return "", fmt.Errorf("failed to build authorization URL: %w", err)
		}
	}

	if f.cfg.AuthServerURL == "" {
		return "", errors.New("no client id and no auth server URL configured; set MS_CLIENT_ID or AUTH_SERVER_URL")
	}
	encrypted, err := f.encrypter.Encrypt(identity)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt identity: %w", err)
	}

	q := url.Values{}
	q.Set("user_id", encrypted)
	return strings.TrimSuffix(f.cfg.AuthServerURL, "/") + "/auth?" + q.Encode(), nil
}

// CheckAuthStatus returns the status message for the configured identity.
func (f *Facade) CheckAuthStatus() string {
	st := f.probe.Check(f.cfg.UserID)
	logging.Debug("Tools", "Auth status for %s: %s", logging.TruncateIdentity(f.cfg.UserID), st)
	return StatusMessage(st)
}

// StatusMessage maps a status to its user-facing message.
func StatusMessage(st status.Status) string {
	switch st {
	case status.NotConfigured:
		return MessageNoIdentity
	case status.Expired:
		return MessageExpired
	case status.Valid:
		return MessageAuthenticated
	default:
		return MessageNotAuthed
	}
}
