// Package tools exposes the authentication tools of the Outlook assistant over
// MCP stdio.
//
// Three tools are registered:
//
//   - about: server name and version.
//   - authenticate: starts sign-in for the configured USER_ID. In test mode it
//     installs a synthetic one-hour token instead. Otherwise it returns a link
//     the user opens in a browser: the provider authorize URL when this
//     process has a client id, or the auth server's /auth link carrying the
//     encrypted identity when it does not.
//   - check-auth-status: reports the status of the configured identity's token.
//
// The facade reads nothing from the environment. Everything arrives through
// Config and the collaborators passed to NewFacade.
//
// stdout carries the MCP protocol, so all logging goes to stderr.
package tools
