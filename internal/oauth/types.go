package oauth

import (
	"net/url"

	"outlookmcp/internal/tokenstore"
)

// FlowState is the position of one authorization attempt in the flow.
type FlowState int

const (
	FlowIdle FlowState = iota
	FlowAwaitingProviderRedirect
	FlowAwaitingCallback
	FlowExchanging
	FlowAuthenticated
	FlowFailed
)

// String returns the state name used in logs.
func (s FlowState) String() string {
	switch s {
	case FlowIdle:
		return "Idle"
	case FlowAwaitingProviderRedirect:
		return "AwaitingProviderRedirect"
	case FlowAwaitingCallback:
		return "AwaitingCallback"
	case FlowExchanging:
		return "Exchanging"
	case FlowAuthenticated:
		return "Authenticated"
	case FlowFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// CallbackParams are the query parameters of a provider redirect.
type CallbackParams struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// CallbackParamsFromQuery extracts CallbackParams from a callback URL query.
func CallbackParamsFromQuery(q url.Values) CallbackParams {
	return CallbackParams{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	}
}

// CallbackResult describes how a callback ended. It is returned alongside
// the error on failure so callers can log the final state.
type CallbackResult struct {
	State FlowState

	// Identity is set once the state parameter has been decrypted.
	Identity string

	// Record is set when State is FlowAuthenticated.
	Record *tokenstore.TokenRecord
}
