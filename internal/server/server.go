package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"outlookmcp/internal/config"
	"outlookmcp/internal/oauth"
	"outlookmcp/pkg/logging"
)

const readHeaderTimeout = 10 * time.Second

// Flow is the part of the authorization flow the server drives.
type Flow interface {
	BuildAuthorizationURL(identity string) (string, error)
	HandleCallback(ctx context.Context, params oauth.CallbackParams) (*oauth.CallbackResult, error)
}

// Decrypter recovers identities passed to /auth.
type Decrypter interface {
	Decrypt(value string) (string, error)
}

// Server is the authentication HTTP server.
type Server struct {
	cfg       config.Config
	flow      Flow
	decrypter Decrypter
	pages     *pages
	limiter   *ipRateLimiter
}

// New returns a Server.
func New(cfg config.Config, flow Flow, decrypter Decrypter) (*Server, error) {
	if flow == nil || decrypter == nil {
		return nil, errors.New("flow and decrypter are required")
	}

	p, err := newPages()
	if err != nil {
		return nil, fmt.Errorf("failed to parse page templates: %w", err)
	}

	return &Server{
		cfg:       cfg,
		flow:      flow,
		decrypter: decrypter,
		pages:     p,
		limiter:   newIPRateLimiter(cfg.Server.CallbackRateLimit, time.Minute),
	}, nil
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /auth", s.limiter.middleware(http.HandlerFunc(s.handleAuth)))
	mux.Handle("GET /auth/callback", s.limiter.middleware(http.HandlerFunc(s.handleCallback)))
	mux.HandleFunc("/", handleNotFound)

	var h http.Handler = mux
	h = securityHeaders(h)
	h = accessLog(h)
	h = recovery(h)
	h = requestID(h)
	return h
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully
// within the configured shutdown timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logging.Info("Server", "Authentication server running at %s", s.cfg.Server.EffectivePublicURL())
		logging.Info("Server", "Waiting for authentication callback at %s", s.cfg.OAuth.RedirectURI)
		if !s.cfg.OAuth.HasCredentials() {
			logging.Warn("Server", "Microsoft Graph API credentials are not set. Set MS_CLIENT_ID and MS_CLIENT_SECRET.")
		}
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logging.Info("Server", "Authentication server shutting down")

		timeout := s.cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = config.DefaultShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
