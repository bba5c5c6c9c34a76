package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"outlookmcp/internal/config"
	"outlookmcp/internal/tokenstore"
	"outlookmcp/pkg/logging"
	pkgstrings "outlookmcp/pkg/strings"
)

// extraFields are provider response fields copied into TokenRecord.Extra.
var extraFields = []string{"ext_expires_in", "id_token"}

// IdentityCipher encrypts identities into the state parameter.
type IdentityCipher interface {
	Encrypt(identity string) (string, error)
	Decrypt(value string) (string, error)
}

// TokenStore is the persistence the flow writes to.
type TokenStore interface {
	Save(identity string, record *tokenstore.TokenRecord) error
	Load(identity string) (*tokenstore.TokenRecord, bool)
}

// Flow drives the authorization-code flow. It holds no per-flow state and is
// safe for concurrent use.
type Flow struct {
	cfg        config.OAuthConfig
	oauth2     *oauth2.Config
	cipher     IdentityCipher
	store      TokenStore
	httpClient *http.Client
	now        func() time.Time
}

// Option customizes a Flow.
type Option func(*Flow)

// WithHTTPClient sets the client used for token endpoint calls.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Flow) { f.httpClient = c }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(f *Flow) { f.now = now }
}

// NewFlow returns a Flow. Missing client credentials are not an error here;
// the steps that need them return ErrConfigurationMissing.
func NewFlow(cfg config.OAuthConfig, cipher IdentityCipher, store TokenStore, opts ...Option) (*Flow, error) {
	if cipher == nil {
		return nil, errors.New("identity cipher is required")
	}
	if store == nil {
		return nil, errors.New("token store is required")
	}

	if cfg.StateMaxAge <= 0 {
		cfg.StateMaxAge = config.DefaultStateMaxAge
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = config.DefaultHTTPTimeout
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = config.DefaultScopes
	}

	f := &Flow{
		cfg:        cfg,
		oauth2:     newOAuth2Config(cfg),
		cipher:     cipher,
		store:      store,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func newOAuth2Config(cfg config.OAuthConfig) *oauth2.Config {
	tenant := cfg.Tenant
	if tenant == "" {
		tenant = config.DefaultTenant
	}
	endpoint := microsoft.AzureADEndpoint(tenant)
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	// credentials go in the form body
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     endpoint,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       cfg.Scopes,
	}
}

// ClientID returns the configured client id.
func (f *Flow) ClientID() string {
	return f.cfg.ClientID
}

// TokenURL returns the token endpoint.
func (f *Flow) TokenURL() string {
	return f.oauth2.Endpoint.TokenURL
}

// BuildAuthorizationURL returns the provider authorize URL for identity.
func (f *Flow) BuildAuthorizationURL(identity string) (string, error) {
	if f.cfg.ClientID == "" || f.cfg.RedirectURI == "" {
		return "", ErrConfigurationMissing
	}
	if err := tokenstore.ValidateIdentity(identity); err != nil {
		return "", err
	}

	encrypted, err := f.cipher.Encrypt(identity)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt identity: %w", err)
	}
	state, err := NewAuthState(encrypted, f.now()).Encode()
	if err != nil {
		return "", err
	}

	authURL := f.oauth2.AuthCodeURL(state, oauth2.SetAuthURLParam("response_mode", "query"))

	logging.Debug("OAuth", "Flow %s -> %s for %s", FlowIdle, FlowAwaitingProviderRedirect,
		logging.TruncateIdentity(identity))
	return authURL, nil
}

// HandleCallback completes a flow from the provider redirect. The returned
// result is non-nil even on error and reports where the flow stopped.
func (f *Flow) HandleCallback(ctx context.Context, params CallbackParams) (*CallbackResult, error) {
	result := &CallbackResult{State: FlowAwaitingCallback}
	fail := func(err error) (*CallbackResult, error) {
		result.State = FlowFailed
		logging.Warn("OAuth", "Callback failed for %s: %v", logging.TruncateIdentity(result.Identity), err)
		return result, err
	}

	if params.Error != "" {
		return fail(&ProviderError{Code: params.Error, Description: params.ErrorDescription})
	}

	state, err := DecodeAuthState(params.State)
	if err != nil {
		return fail(err)
	}
	if err := state.CheckAge(f.now(), f.cfg.StateMaxAge); err != nil {
		return fail(err)
	}
	identity, err := f.cipher.Decrypt(state.UserID)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrInvalidState, err))
	}
	if err := tokenstore.ValidateIdentity(identity); err != nil {
		return fail(fmt.Errorf("%w: %w", ErrInvalidState, err))
	}
	result.Identity = identity

	if params.Code == "" {
		return fail(ErrMissingAuthorizationCode)
	}
	if !f.cfg.HasCredentials() {
		return fail(ErrConfigurationMissing)
	}

	result.State = FlowExchanging
	tok, err := f.oauth2.Exchange(f.clientContext(ctx), params.Code,
		oauth2.SetAuthURLParam("scope", strings.Join(f.cfg.Scopes, " ")))
	receivedAt := f.now()
	if err != nil {
		exchangeErr := toExchangeError(err)
		f.auditExchange("token_exchange", identity, exchangeErr)
		return fail(exchangeErr)
	}
	f.auditExchange("token_exchange", identity, nil)

	record := recordFromToken(tok, receivedAt)
	if err := f.store.Save(identity, record); err != nil {
		return fail(fmt.Errorf("failed to save token: %w", err))
	}

	result.State = FlowAuthenticated
	result.Record = record
	logging.Info("OAuth", "Authenticated %s, token expires at %s", logging.TruncateIdentity(identity),
		record.ExpiresAtTime().UTC().Format(time.RFC3339))
	return result, nil
}

// Refresh redeems the stored refresh token for identity and saves the new
// record. A refresh token the provider does not rotate is kept.
func (f *Flow) Refresh(ctx context.Context, identity string) (*tokenstore.TokenRecord, error) {
	current, ok := f.store.Load(identity)
	if !ok {
		return nil, ErrNoRecord
	}
	if current.RefreshToken == "" {
		return nil, ErrNoRefreshToken
	}
	if !f.cfg.HasCredentials() {
		return nil, ErrConfigurationMissing
	}

	ts := f.oauth2.TokenSource(f.clientContext(ctx), &oauth2.Token{RefreshToken: current.RefreshToken})
	tok, err := ts.Token()
	receivedAt := f.now()
	if err != nil {
		exchangeErr := toExchangeError(err)
		f.auditExchange("token_refresh", identity, exchangeErr)
		return nil, exchangeErr
	}
	f.auditExchange("token_refresh", identity, nil)

	record := recordFromToken(tok, receivedAt)
	if record.RefreshToken == "" {
		record.RefreshToken = current.RefreshToken
	}
	if err := f.store.Save(identity, record); err != nil {
		return nil, fmt.Errorf("failed to save token: %w", err)
	}
	return record, nil
}

// InstallTestRecord saves a synthetic record without contacting the provider.
func (f *Flow) InstallTestRecord(identity string) (*tokenstore.TokenRecord, error) {
	record := tokenstore.NewTestRecord(f.now())
	if err := f.store.Save(identity, record); err != nil {
		return nil, err
	}
	logging.Info("OAuth", "Installed test-mode token for %s", logging.TruncateIdentity(identity))
	return record, nil
}

func (f *Flow) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, f.httpClient)
}

func (f *Flow) auditExchange(action, identity string, err *TokenExchangeError) {
	event := logging.AuditEvent{
		Action:   action,
		Outcome:  "success",
		Identity: logging.TruncateIdentity(identity),
		Target:   f.oauth2.Endpoint.TokenURL,
	}
	if err != nil {
		event.Outcome = "failure"
		event.Details = fmt.Sprintf("status=%d", err.StatusCode)
		if err.Body != "" {
			event.Details += " body=" + pkgstrings.SingleLine(err.Body, pkgstrings.DefaultLogValueMaxLen)
		}
		event.Error = err
	}
	logging.Audit(event)
}

func toExchangeError(err error) *TokenExchangeError {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		exchangeErr := &TokenExchangeError{Body: string(retrieveErr.Body), Err: err}
		if retrieveErr.Response != nil {
			exchangeErr.StatusCode = retrieveErr.Response.StatusCode
		}
		return exchangeErr
	}
	return &TokenExchangeError{Err: err}
}

// recordFromToken builds a TokenRecord. expires_at is receivedAt plus the
// provider's expires_in.
func recordFromToken(tok *oauth2.Token, receivedAt time.Time) *tokenstore.TokenRecord {
	expiresIn := expiresInFrom(tok, receivedAt)

	record := &tokenstore.TokenRecord{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		ExpiresIn:    expiresIn,
		ExpiresAt:    tokenstore.ExpiresAtFrom(receivedAt, expiresIn),
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		record.Scope = scope
	}
	for _, key := range extraFields {
		if v := tok.Extra(key); v != nil {
			if record.Extra == nil {
				record.Extra = make(map[string]any)
			}
			record.Extra[key] = v
		}
	}
	return record
}

// expiresInFrom prefers the wire expires_in over the Expiry oauth2 derived
// from its own clock.
func expiresInFrom(tok *oauth2.Token, receivedAt time.Time) int64 {
	if tok.ExpiresIn > 0 {
		return tok.ExpiresIn
	}
	switch v := tok.Extra("expires_in").(type) {
	case float64:
		return int64(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	if !tok.Expiry.IsZero() {
		return int64(tok.Expiry.Sub(receivedAt).Round(time.Second) / time.Second)
	}
	return 0
}
