package oauth2

// TokenResponse represents the response from an OAuth2 token request.
// This is the standard OAuth2 token endpoint response format as defined in RFC 6749.
// Returned from the token endpoint for both the authorization_code and
// refresh_token grants.
type TokenResponse struct {
	// AccessToken is the bearer token used to access protected resources.
	// Usage: Include in Authorization header: "Bearer <access_token>"
	// Lifespan: Short-lived (typically 15 minutes - 1 hour)
	AccessToken *string `json:"access_token,omitempty"`

	// IdToken is the OpenID Connect ID token containing user identity information.
	// Only present when the "openid" scope was requested. This client decodes
	// its claims but performs no signature verification; that is the
	// authorization server's and resource server's responsibility.
	IdToken *string `json:"id_token,omitempty"`

	// TokenType indicates how to use the access token (normally "bearer").
	TokenType string `json:"token_type,omitempty"`

	// ExpiresIn is the lifetime in seconds of the access token.
	// Converted into an absolute expiry timestamp the moment the response
	// is received.
	ExpiresIn int `json:"expires_in,omitempty"`

	// RefreshToken is an opaque token used to obtain new access tokens.
	// Sent back to the token endpoint with grant_type=refresh_token.
	// Security: only persisted when the client is configured to do so.
	RefreshToken *string `json:"refresh_token,omitempty"`

	// Scope indicates the access token's granted permissions.
	// Space-separated list; may be less than requested if some scopes were
	// denied.
	Scope string `json:"scope,omitempty"`
}
