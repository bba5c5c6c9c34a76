// Package server implements the authentication HTTP server.
//
// Routes:
//
//	GET /               instructions page
//	GET /auth           302 to the provider authorize URL for user_id
//	GET /auth/callback  completes the flow and renders the outcome
//	GET /healthz        liveness probe, plain "ok"
//	anything else       404 "Not Found"
//
// /auth accepts an encrypted identity as produced by the authenticate tool or,
// when AllowPlainIdentity is set, a plain one. Each callback failure renders
// its own page: provider errors, invalid state and a missing code with 400, a
// failed token exchange or missing configuration with 500.
//
// Every response carries an X-Request-ID and the security headers. /auth and
// /auth/callback are rate limited per client IP.
package server
