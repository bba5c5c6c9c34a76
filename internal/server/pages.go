package server

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"

	"github.com/Masterminds/sprig/v3"

	"outlookmcp/pkg/logging"
)

type pageName string

const (
	pageRoot          pageName = "root"
	pageSuccess       pageName = "success"
	pageProviderError pageName = "provider-error"
	pageInvalidState  pageName = "invalid-state"
	pageMissingCode   pageName = "missing-code"
	pageExchangeError pageName = "exchange-error"
	pageConfigError   pageName = "config-error"
	pageBadRequest    pageName = "bad-request"
	pageInternalError pageName = "internal-error"
)

const layoutTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{ .Title }}</title>
<style>
body { font-family: Arial, sans-serif; max-width: 600px; margin: 50px auto; padding: 20px; }
h1.error { color: #d9534f; }
h1.ok { color: #5cb85c; }
.verbatim { white-space: pre-wrap; }
.box { padding: 10px; border: 1px solid #ccc; border-radius: 4px; background: #f8f8f8; word-break: break-all; }
</style>
</head>
<body>
{{ template "content" . }}
</body>
</html>
`

var pageTemplates = map[pageName]string{
	pageRoot: `<h1>Outlook Authentication Server</h1>
<p>This server handles the OAuth callback from Microsoft.</p>
<p>To start authentication, open <code>{{ .PublicURL }}/auth?user_id=YOUR_USER_ID</code>
or run the authenticate tool from your assistant.</p>
<p>Callback URL: <code>{{ .RedirectURI }}</code></p>`,

	pageSuccess: `<h1 class="ok">Authentication Successful!</h1>
<p>You have successfully authenticated with Microsoft Graph API.</p>
<p>The access token has been saved for user: <strong>{{ .Identity }}</strong></p>
<p>Token expires at {{ .ExpiresAt | date "2006-01-02 15:04:05 MST" }}.</p>
<p>You can close this window.</p>`,

	pageProviderError: `<h1 class="error">Authentication Error</h1>
<p><strong>Error:</strong> {{ .Code }}</p>
<p><strong>Description:</strong></p>
<p class="verbatim">{{ .Description | default "No description provided" }}</p>
<p>Please close this window and try again.</p>`,

	pageInvalidState: `<h1 class="error">Invalid State</h1>
<p>The authentication request could not be verified. It may have expired or been tampered with.</p>
<p>Please start the sign-in again from your assistant.</p>`,

	pageMissingCode: `<h1 class="error">Missing Authorization Code</h1>
<p>No authorization code was provided in the callback.</p>
<p>Please close this window and try again.</p>`,

	pageExchangeError: `<h1 class="error">Token Exchange Error</h1>
<p>Failed to exchange the authorization code for an access token.</p>
{{- if .StatusCode }}
<p><strong>Status:</strong> {{ .StatusCode }}</p>
{{- end }}
<p>Please close this window and try again.</p>`,

	pageConfigError: `<h1 class="error">Configuration Error</h1>
<p>Microsoft Graph API credentials are not set. Please set the following environment variables:</p>
<ul>
{{- range .Missing }}
<li><code>{{ . }}</code></li>
{{- end }}
</ul>`,

	pageBadRequest: `<h1 class="error">Invalid Request</h1>
<p>{{ .Message }}</p>`,

	pageInternalError: `<h1 class="error">Authentication Failed</h1>
<p>An internal error occurred while completing authentication.</p>
{{- with .RequestID }}
<p>Request ID: <code>{{ . }}</code></p>
{{- end }}`,
}

var pageTitles = map[pageName]string{
	pageRoot:          "Outlook Authentication Server",
	pageSuccess:       "Authentication Successful",
	pageProviderError: "Authentication Error",
	pageInvalidState:  "Invalid State",
	pageMissingCode:   "Missing Authorization Code",
	pageExchangeError: "Token Exchange Error",
	pageConfigError:   "Configuration Error",
	pageBadRequest:    "Invalid Request",
	pageInternalError: "Authentication Failed",
}

type pages struct {
	templates map[pageName]*template.Template
}

func newPages() (*pages, error) {
	layout, err := template.New("layout").Funcs(sprig.FuncMap()).Parse(layoutTemplate)
	if err != nil {
		return nil, err
	}

	p := &pages{templates: make(map[pageName]*template.Template, len(pageTemplates))}
	for name, content := range pageTemplates {
		t, err := layout.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.New("content").Parse(content); err != nil {
			return nil, fmt.Errorf("page %s: %w", name, err)
		}
		p.templates[name] = t
	}
	return p, nil
}

// render writes the named page. data may be nil or a map of page fields;
// Title is filled in from the page name.
func (p *pages) render(w http.ResponseWriter, status int, name pageName, data map[string]any) {
	t, ok := p.templates[name]
	if !ok {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	data["Title"] = pageTitles[name]

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		logging.Error("Server", err, "Failed to render page %s", name)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
