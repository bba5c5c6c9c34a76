// Package oauth implements the OAuth2 authorization-code flow that obtains
// Microsoft Graph tokens for a user identity.
//
// # Flow
//
//	Idle -> AwaitingProviderRedirect -> AwaitingCallback -> Exchanging -> Authenticated
//	                                                                   \-> Failed
//
//  1. BuildAuthorizationURL encrypts the identity, wraps it in a versioned
//     AuthState with the issue time and returns the provider authorize URL.
//  2. The user signs in with the provider, which redirects the browser to the
//     auth server's /auth/callback with code and state.
//  3. HandleCallback rejects provider errors, decodes and ages the state,
//     recovers the identity, exchanges the code and saves the TokenRecord.
//
// All flow state travels in the state parameter. No flow object is shared
// between requests, so any auth server instance configured with the same
// identity secret can complete a flow started by another.
//
// # Errors
//
// Every callback failure maps to one of ErrConfigurationMissing,
// ErrInvalidState, ErrMissingAuthorizationCode, *ProviderError or
// *TokenExchangeError. The auth server renders a distinct page for each.
//
// # Security
//
// Token values are never logged. Audit lines carry a truncated identity, the
// token endpoint and, for failures, the provider status code.
package oauth
