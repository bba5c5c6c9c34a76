package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outlookmcp/internal/config"
	"outlookmcp/internal/identity"
	"outlookmcp/internal/oauth"
	"outlookmcp/internal/tokenstore"
)

type fakeFlow struct {
	authURL     string
	authErr     error
	gotIdentity string

	result    *oauth.CallbackResult
	callErr   error
	gotParams oauth.CallbackParams
}

func (f *fakeFlow) BuildAuthorizationURL(id string) (string, error) {
	f.gotIdentity = id
	if f.authErr != nil {
		return "", f.authErr
	}
	return f.authURL, nil
}

func (f *fakeFlow) HandleCallback(_ context.Context, params oauth.CallbackParams) (*oauth.CallbackResult, error) {
	f.gotParams = params
	if f.callErr != nil {
		return nil, f.callErr
	}
	return f.result, nil
}

func testConfig() config.Config {
	cfg := config.GetDefaultConfig()
	cfg.OAuth.ClientID = "client-123"
	cfg.OAuth.ClientSecret = "secret-456"
	cfg.Server.AllowPlainIdentity = false
	cfg.Server.CallbackRateLimit = 0
	return cfg
}

func testCipher(t *testing.T) *identity.Cipher {
	t.Helper()
	c, err := identity.NewCipher("test-operator-secret", "salt", identity.ModeGCM)
	require.NoError(t, err)
	return c
}

func newTestServer(t *testing.T, cfg config.Config, flow *fakeFlow) (*Server, *identity.Cipher) {
	t.Helper()
	c := testCipher(t)
	s, err := New(cfg, flow, c)
	require.NoError(t, err)
	return s, c
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(testConfig(), nil, testCipher(t))
	assert.Error(t, err)

	_, err = New(testConfig(), &fakeFlow{}, nil)
	assert.Error(t, err)
}

func TestRootPage(t *testing.T) {
	s, _ := newTestServer(t, testConfig(), &fakeFlow{})

	rec := get(t, s.Handler(), "/")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Outlook Authentication Server")
	assert.Contains(t, rec.Body.String(), "/auth?user_id=YOUR_USER_ID")
	assert.Contains(t, rec.Body.String(), "http://localhost:3333/auth/callback")
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	s, _ := newTestServer(t, testConfig(), &fakeFlow{})

	rec := get(t, s.Handler(), "/")

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-referrer", rec.Header().Get("Referrer-Policy"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'none'")
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	other := get(t, s.Handler(), "/")
	assert.NotEqual(t, rec.Header().Get(requestIDHeader), other.Header().Get(requestIDHeader))
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, testConfig(), &fakeFlow{})

	rec := get(t, s.Handler(), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestNotFound(t *testing.T) {
	s, _ := newTestServer(t, testConfig(), &fakeFlow{})

	for _, path := range []string{"/nope", "/auth/other", "/favicon.ico"} {
		t.Run(path, func(t *testing.T) {
			rec := get(t, s.Handler(), path)
			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.Equal(t, "Not Found", rec.Body.String())
			assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
		})
	}
}

func TestAuth_RedirectsWithEncryptedIdentity(t *testing.T) {
	flow := &fakeFlow{authURL: "https://login.example.com/authorize?x=1"}
	s, c := newTestServer(t, testConfig(), flow)

	enc, err := c.Encrypt("alice@example.com")
	require.NoError(t, err)

	rec := get(t, s.Handler(), "/auth?user_id="+url.QueryEscape(enc))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, flow.authURL, rec.Header().Get("Location"))
	assert.Equal(t, "alice@example.com", flow.gotIdentity)
}

func TestAuth_PlainIdentity(t *testing.T) {
	t.Run("rejected by default", func(t *testing.T) {
		flow := &fakeFlow{authURL: "https://login.example.com/authorize"}
		s, _ := newTestServer(t, testConfig(), flow)

		rec := get(t, s.Handler(), "/auth?user_id=bob")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "user_id")
		assert.Empty(t, flow.gotIdentity)
	})

	t.Run("accepted when allowed", func(t *testing.T) {
		cfg := testConfig()
		cfg.Server.AllowPlainIdentity = true
		flow := &fakeFlow{authURL: "https://login.example.com/authorize"}
		s, _ := newTestServer(t, cfg, flow)

		rec := get(t, s.Handler(), "/auth?user_id=bob")

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "bob", flow.gotIdentity)
	})

	for _, allowPlain := range []bool{false, true} {
		t.Run(fmt.Sprintf("tampered ciphertext rejected (allowPlainIdentity=%t)", allowPlain), func(t *testing.T) {
			cfg := testConfig()
			cfg.Server.AllowPlainIdentity = allowPlain
			flow := &fakeFlow{authURL: "https://login.example.com/authorize"}
			s, c := newTestServer(t, cfg, flow)

			enc, err := c.Encrypt("alice@example.com")
			require.NoError(t, err)
			tampered := enc[:len(enc)-2] + "00"
			if tampered == enc {
				tampered = enc[:len(enc)-2] + "11"
			}

			rec := get(t, s.Handler(), "/auth?user_id="+url.QueryEscape(tampered))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, flow.gotIdentity)
		})
	}

	t.Run("link from another key and mode rejected with default config", func(t *testing.T) {
		cfg := config.GetDefaultConfig()
		cfg.OAuth.ClientID = "client-123"
		cfg.OAuth.ClientSecret = "secret-456"
		require.True(t, cfg.Server.AllowPlainIdentity)
		flow := &fakeFlow{authURL: "https://login.example.com/authorize"}
		s, _ := newTestServer(t, cfg, flow)

		legacy, err := identity.NewCipher("another-secret", "salt", identity.ModeCBC)
		require.NoError(t, err)
		enc, err := legacy.Encrypt("alice@example.com")
		require.NoError(t, err)

		rec := get(t, s.Handler(), "/auth?user_id="+url.QueryEscape(enc))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, flow.gotIdentity)
	})
}

func TestAuth_BadRequests(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{name: "missing user_id", query: ""},
		{name: "mismatched client_id", query: "?user_id=bob&client_id=someone-else"},
		{name: "control characters", query: "?user_id=" + url.QueryEscape("bo\nb")},
		{name: "too long", query: "?user_id=" + strings.Repeat("a", tokenstore.MaxIdentityLength+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Server.AllowPlainIdentity = true
			flow := &fakeFlow{authURL: "https://login.example.com/authorize"}
			s, _ := newTestServer(t, cfg, flow)

			rec := get(t, s.Handler(), "/auth"+tt.query)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, flow.gotIdentity)
		})
	}
}

func TestAuth_MatchingClientIDAccepted(t *testing.T) {
	cfg := testConfig()
	cfg.Server.AllowPlainIdentity = true
	flow := &fakeFlow{authURL: "https://login.example.com/authorize"}
	s, _ := newTestServer(t, cfg, flow)

	rec := get(t, s.Handler(), "/auth?user_id=bob&client_id=client-123")

	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestAuth_ConfigurationError(t *testing.T) {
	cfg := testConfig()
	cfg.OAuth.ClientSecret = ""
	flow := &fakeFlow{authURL: "https://login.example.com/authorize"}
	s, _ := newTestServer(t, cfg, flow)

	rec := get(t, s.Handler(), "/auth?user_id=bob")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Configuration Error")
	assert.Contains(t, rec.Body.String(), "MS_CLIENT_SECRET")
	assert.NotContains(t, rec.Body.String(), "MS_CLIENT_ID")
}

func TestAuth_FlowConfigurationMissing(t *testing.T) {
	cfg := testConfig()
	cfg.Server.AllowPlainIdentity = true
	flow := &fakeFlow{authErr: oauth.ErrConfigurationMissing}
	s, _ := newTestServer(t, cfg, flow)

	rec := get(t, s.Handler(), "/auth?user_id=bob")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Configuration Error")
}

func TestCallback_Success(t *testing.T) {
	expiresAt := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	flow := &fakeFlow{result: &oauth.CallbackResult{
		Identity: "alice@example.com",
		Record:   &tokenstore.TokenRecord{AccessToken: "at", ExpiresAt: expiresAt.UnixMilli()},
	}}
	s, _ := newTestServer(t, testConfig(), flow)

	rec := get(t, s.Handler(), "/auth/callback?code=abc&state=xyz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Authentication Successful!")
	assert.Contains(t, rec.Body.String(), "alice@example.com")
	assert.Equal(t, "abc", flow.gotParams.Code)
	assert.Equal(t, "xyz", flow.gotParams.State)
}

func TestCallback_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   []string
	}{
		{
			name:       "provider error",
			err:        &oauth.ProviderError{Code: "access_denied", Description: "User declined"},
			wantStatus: http.StatusBadRequest,
			wantBody:   []string{"Authentication Error", "access_denied", "User declined"},
		},
		{
			name:       "provider error without description",
			err:        &oauth.ProviderError{Code: "server_error"},
			wantStatus: http.StatusBadRequest,
			wantBody:   []string{"server_error", "No description provided"},
		},
		{
			name:       "invalid state",
			err:        errors.Join(oauth.ErrInvalidState, identity.ErrInvalidEncryptedIdentity),
			wantStatus: http.StatusBadRequest,
			wantBody:   []string{"Invalid State"},
		},
		{
			name:       "missing code",
			err:        oauth.ErrMissingAuthorizationCode,
			wantStatus: http.StatusBadRequest,
			wantBody:   []string{"Missing Authorization Code"},
		},
		{
			name:       "token exchange",
			err:        &oauth.TokenExchangeError{StatusCode: 400, Body: `{"error":"invalid_grant"}`},
			wantStatus: http.StatusInternalServerError,
			wantBody:   []string{"Token Exchange Error", "400"},
		},
		{
			name:       "configuration missing",
			err:        oauth.ErrConfigurationMissing,
			wantStatus: http.StatusInternalServerError,
			wantBody:   []string{"Configuration Error"},
		},
		{
			name:       "storage failure",
			err:        errors.New("failed to save token: disk full"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   []string{"Authentication Failed", "Request ID"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, testConfig(), &fakeFlow{callErr: tt.err})

			rec := get(t, s.Handler(), "/auth/callback?code=abc&state=xyz")

			assert.Equal(t, tt.wantStatus, rec.Code)
			for _, want := range tt.wantBody {
				assert.Contains(t, rec.Body.String(), want)
			}
		})
	}
}

func TestCallback_ProviderDescriptionShownVerbatim(t *testing.T) {
	description := "AADSTS65004: User declined to consent to access the app. " +
		strings.Repeat("The administrator has not granted consent for this tenant. ", 3) +
		"\r\nTrace ID: 2f1c8a3e-6b7d-4c55-9a0e-1d2b3c4d5e6f" +
		"\r\nCorrelation ID: 7a8b9c0d-1e2f-4a3b-8c5d-6e7f8a9b0c1d" +
		"\r\nTimestamp: 2025-06-01 12:00:00Z"
	require.Greater(t, len(description), 200)

	flow := &fakeFlow{callErr: &oauth.ProviderError{Code: "consent_required", Description: description}}
	s, _ := newTestServer(t, testConfig(), flow)

	rec := get(t, s.Handler(), "/auth/callback?error=consent_required")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), description)
	assert.Contains(t, rec.Body.String(), "Timestamp: 2025-06-01 12:00:00Z")
	assert.Contains(t, rec.Body.String(), "white-space: pre-wrap")
}

func TestCallback_ProviderErrorIsEscaped(t *testing.T) {
	flow := &fakeFlow{callErr: &oauth.ProviderError{Code: "<script>alert(1)</script>"}}
	s, _ := newTestServer(t, testConfig(), flow)

	rec := get(t, s.Handler(), "/auth/callback?error=x")

	assert.NotContains(t, rec.Body.String(), "<script>")
	assert.Contains(t, rec.Body.String(), "&lt;script&gt;")
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	s, _ := newTestServer(t, testConfig(), &fakeFlow{})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
