package config

import (
	"fmt"
	"net/url"
	"strings"

	"outlookmcp/pkg/logging"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// Validate checks structural configuration problems. Missing provider
// credentials are deliberately not an error: the auth server starts without
// them and answers /auth with a configuration error page instead.
func (c Config) Validate() error {
	var errs ValidationErrors

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs.Add("server.port", "must be between 0 and 65535", c.Server.Port)
	}
	if c.Server.PublicURL != "" {
		if err := validateAbsoluteURL(c.Server.PublicURL); err != nil {
			errs.Add("server.publicUrl", err.Error(), c.Server.PublicURL)
		}
	}
	if c.Server.CallbackRateLimit < 0 {
		errs.Add("server.callbackRateLimit", "must not be negative", c.Server.CallbackRateLimit)
	}

	if err := validateAbsoluteURL(c.OAuth.RedirectURI); err != nil {
		errs.Add("oauth.redirectUri", err.Error(), c.OAuth.RedirectURI)
	}
	for field, value := range map[string]string{"oauth.authUrl": c.OAuth.AuthURL, "oauth.tokenUrl": c.OAuth.TokenURL} {
		if value == "" {
			continue
		}
		if err := validateAbsoluteURL(value); err != nil {
			errs.Add(field, err.Error(), value)
		}
	}
	if len(c.OAuth.Scopes) == 0 {
		errs.Add("oauth.scopes", "must have at least one scope")
	}
	if c.OAuth.StateMaxAge <= 0 {
		errs.Add("oauth.stateMaxAge", "must be positive", c.OAuth.StateMaxAge)
	}
	if c.OAuth.HTTPTimeout <= 0 {
		errs.Add("oauth.httpTimeout", "must be positive", c.OAuth.HTTPTimeout)
	}

	switch c.Identity.Mode {
	case "gcm", "cbc":
	default:
		errs.Add("identity.mode", "must be one of gcm, cbc", c.Identity.Mode)
	}
	if c.Identity.Salt == "" {
		errs.Add("identity.salt", "must not be empty")
	}

	if c.Tokens.Dir == "" {
		errs.Add("tokens.dir", "must not be empty")
	}
	if strings.ContainsAny(c.Tokens.FilePrefix, `/\`) {
		errs.Add("tokens.filePrefix", "must not contain path separators", c.Tokens.FilePrefix)
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs.Add("logging.level", err.Error(), c.Logging.Level)
	}
	switch logging.Format(c.Logging.Format) {
	case "", logging.FormatText, logging.FormatJSON:
	default:
		errs.Add("logging.format", "must be one of text, json", c.Logging.Format)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateAbsoluteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must be an http or https URL")
	}
	if u.Host == "" {
		return fmt.Errorf("must include a host")
	}
	return nil
}
