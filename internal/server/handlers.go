package server

import (
	"errors"
	"net/http"

	"outlookmcp/internal/identity"
	"outlookmcp/internal/oauth"
	"outlookmcp/internal/tokenstore"
	"outlookmcp/pkg/logging"
	pkgstrings "outlookmcp/pkg/strings"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.pages.render(w, http.StatusOK, pageRoot, map[string]any{
		"PublicURL":   s.cfg.Server.EffectivePublicURL(),
		"RedirectURI": s.cfg.OAuth.RedirectURI,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte("Not Found"))
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if !s.cfg.OAuth.HasCredentials() {
		s.renderConfigError(w)
		return
	}

	if clientID := query.Get("client_id"); clientID != "" && clientID != s.cfg.OAuth.ClientID {
		logging.Warn("Server", "Rejected /auth request with mismatched client_id")
		s.pages.render(w, http.StatusBadRequest, pageBadRequest, map[string]any{
			"Message": "The client_id does not match this server's configuration.",
		})
		return
	}

	id, err := s.resolveIdentity(query.Get("user_id"))
	if err != nil {
		logging.Warn("Server", "Rejected /auth request: %v", err)
		s.pages.render(w, http.StatusBadRequest, pageBadRequest, map[string]any{
			"Message": "A valid user_id query parameter is required.",
		})
		return
	}

	authURL, err := s.flow.BuildAuthorizationURL(id)
	if err != nil {
		if errors.Is(err, oauth.ErrConfigurationMissing) {
			s.renderConfigError(w)
			return
		}
		logging.Error("Server", err, "Failed to build authorization URL for %s", logging.TruncateIdentity(id))
		s.renderInternalError(w, r)
		return
	}

	logging.Info("Server", "Redirecting %s to the provider for sign-in", logging.TruncateIdentity(id))
	http.Redirect(w, r, authURL, http.StatusFound)
}

// resolveIdentity turns the user_id query value into a plain identity.
func (s *Server) resolveIdentity(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("user_id is missing")
	}

	// A value shaped like an encrypted identity is never taken as plain text,
	// so a tampered or foreign-key link cannot name a different token file.
	if identity.LooksEncrypted(userID) {
		plain, err := s.decrypter.Decrypt(userID)
		if err != nil {
			return "", err
		}
		return plain, tokenstore.ValidateIdentity(plain)
	}

	if !s.cfg.Server.AllowPlainIdentity {
		return "", errors.New("user_id is not an encrypted identity")
	}
	return userID, tokenstore.ValidateIdentity(userID)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	params := oauth.CallbackParamsFromQuery(r.URL.Query())

	result, err := s.flow.HandleCallback(r.Context(), params)
	if err != nil {
		s.renderCallbackError(w, r, err)
		return
	}

	s.pages.render(w, http.StatusOK, pageSuccess, map[string]any{
		"Identity":  result.Identity,
		"ExpiresAt": result.Record.ExpiresAtTime(),
	})
}

func (s *Server) renderCallbackError(w http.ResponseWriter, r *http.Request, err error) {
	var providerErr *oauth.ProviderError
	var exchangeErr *oauth.TokenExchangeError

	switch {
	case errors.As(err, &providerErr):
		logging.Warn("Server", "Provider returned an error on callback: %s: %s",
			pkgstrings.SingleLine(providerErr.Code, pkgstrings.DefaultLogValueMaxLen),
			pkgstrings.SingleLine(providerErr.Description, pkgstrings.DefaultLogValueMaxLen))
		s.pages.render(w, http.StatusBadRequest, pageProviderError, map[string]any{
			"Code":        providerErr.Code,
			"Description": providerErr.Description,
		})
	case errors.Is(err, oauth.ErrInvalidState):
		logging.Warn("Server", "Rejected callback: %v", err)
		logging.Audit(logging.AuditEvent{
			Action:  "callback_rejected",
			Outcome: "failure",
			Details: "invalid state",
			Error:   err,
		})
		s.pages.render(w, http.StatusBadRequest, pageInvalidState, nil)
	case errors.Is(err, oauth.ErrMissingAuthorizationCode):
		logging.Warn("Server", "Callback without authorization code")
		s.pages.render(w, http.StatusBadRequest, pageMissingCode, nil)
	case errors.Is(err, oauth.ErrConfigurationMissing):
		s.renderConfigError(w)
	case errors.As(err, &exchangeErr):
		logging.Error("Server", err, "Token exchange failed")
		s.pages.render(w, http.StatusInternalServerError, pageExchangeError, map[string]any{
			"StatusCode": exchangeErr.StatusCode,
		})
	default:
		logging.Error("Server", err, "Callback failed")
		s.renderInternalError(w, r)
	}
}

func (s *Server) renderConfigError(w http.ResponseWriter) {
	var missing []string
	if s.cfg.OAuth.ClientID == "" {
		missing = append(missing, "MS_CLIENT_ID")
	}
	if s.cfg.OAuth.ClientSecret == "" {
		missing = append(missing, "MS_CLIENT_SECRET")
	}
	if len(missing) == 0 {
		missing = []string{"MS_CLIENT_ID", "MS_CLIENT_SECRET"}
	}
	logging.Error("Server", oauth.ErrConfigurationMissing, "Missing OAuth configuration")
	s.pages.render(w, http.StatusInternalServerError, pageConfigError, map[string]any{"Missing": missing})
}

func (s *Server) renderInternalError(w http.ResponseWriter, r *http.Request) {
	s.pages.render(w, http.StatusInternalServerError, pageInternalError, map[string]any{
		"RequestID": requestIDFrom(r.Context()),
	})
}
