package pkce

import "errors"

var (
	// ErrInvalidConfiguration reports missing or malformed PKCE/client
	// configuration. Fatal at construction.
	ErrInvalidConfiguration = errors.New("invalid pkce configuration")

	// ErrAuthorizationDenied reports an error parameter on the redirect back
	// from the authorization server (e.g. access_denied).
	ErrAuthorizationDenied = errors.New("authorization denied")

	// ErrStateMismatch reports that the state parameter returned by the
	// authorization server does not match the persisted one. Treated as a
	// possible attack, never retried.
	ErrStateMismatch = errors.New("state parameter mismatch")

	// ErrMissingAuthorizationCode reports a redirect back that carried
	// neither an error nor a code parameter.
	ErrMissingAuthorizationCode = errors.New("no authorization code received")

	// ErrTokenRequestFailed reports a non-2xx response from the token
	// endpoint, for either grant.
	ErrTokenRequestFailed = errors.New("token request failed")

	// ErrNoAccessToken reports that tokens were requested with no prior
	// session and no pending authorization code.
	ErrNoAccessToken = errors.New("no access token available")

	// ErrNoRefreshToken reports a refresh attempt without a held refresh token.
	ErrNoRefreshToken = errors.New("no refresh token available")
)
