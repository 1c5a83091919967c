package authn

import (
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// UnknownUserID is the user id published when the ID token lacks a subject
// claim.
const UnknownUserID = "undefined"

// OpenIDClaims are the OpenID Connect standard claims this plugin reads
// from the ID token (https://openid.net/specs/openid-connect-core-1_0.html).
// The registered claims carry sub, iss, iat and exp; iat/exp are NumericDate
// values in seconds since epoch (RFC 7519 section 2).
type OpenIDClaims struct {
	jwtlib.RegisteredClaims

	// Name is the end-user's full name in displayable form.
	Name string `json:"name,omitempty"`
	// GivenName is the given name(s) or first name(s) of the end-user.
	GivenName string `json:"given_name,omitempty"`
	// FamilyName is the surname(s) or last name(s) of the end-user.
	FamilyName string `json:"family_name,omitempty"`
	// PreferredUsername is the shorthand name the end-user wishes to be
	// referred to as. Not guaranteed unique.
	PreferredUsername string `json:"preferred_username,omitempty"`
	// Email is the end-user's preferred e-mail address. Not guaranteed unique.
	Email string `json:"email,omitempty"`
}

// DecodeClaims extracts the claims from an ID token without verifying its
// signature. This is a client-side convenience decode only; verification is
// the authorization server's and resource server's responsibility.
func DecodeClaims(rawToken string) (*OpenIDClaims, error) {
	claims := &OpenIDClaims{}
	if _, _, err := jwtlib.NewParser().ParseUnverified(rawToken, claims); err != nil {
		return nil, errors.Wrap(err, "[DecodeClaims] parse id token")
	}
	return claims, nil
}
