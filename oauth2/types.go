package oauth2

// ResponseType represents the OAuth 2.0 response type.
// Determines what is returned from the authorization endpoint.
type ResponseType string

const (
	// CodeResponseType indicates the authorization code flow.
	// The only response type used by this client: the authorization endpoint
	// returns a short-lived code that is exchanged for tokens at the token
	// endpoint.
	// Example: /oauth/authorize?response_type=code&client_id=...
	CodeResponseType ResponseType = "code"
)

// CodeMethodType represents the PKCE (Proof Key for Code Exchange) challenge method.
// Used to prevent authorization code interception attacks (especially for public clients).
type CodeMethodType string

const (
	// CodeMethodTypeS256 indicates SHA-256 hashing is used for the code challenge.
	// Client sends: code_challenge = BASE64URL(SHA256(code_verifier))
	// Server validates: SHA256(provided code_verifier) == stored code_challenge
	// This client only ever issues S256; the "plain" method offers no
	// protection against active attackers and is not supported.
	CodeMethodTypeS256 CodeMethodType = "S256"
)

// GrantType represents the OAuth 2.0 grant type used at the token endpoint.
// Determines what credentials are required to obtain tokens.
type GrantType string

const (
	// AuthorizationCodeGrant exchanges an authorization code for tokens.
	// Token request includes: code, client_id, redirect_uri, code_verifier
	// Returns: access_token, id_token, refresh_token (if requested)
	AuthorizationCodeGrant GrantType = "authorization_code"

	// RefreshTokenCodeGrant exchanges a refresh token for new tokens.
	// Token request includes: refresh_token, client_id
	// Returns: new access_token, id_token, and possibly a rotated refresh_token
	RefreshTokenCodeGrant GrantType = "refresh_token"
)
