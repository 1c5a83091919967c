package pkce

import (
	"net/url"
	"time"

	"github.com/pkg/errors"
)

const (
	// RecommendedStateLength is the default length of the anti-CSRF state
	// parameter. RFC 6749 does not mandate a length; 32 characters from the
	// unreserved charset gives well over 128 bits of entropy.
	RecommendedStateLength = 32

	// DefaultRefreshInterval is the default period of the auto-refresh timer.
	DefaultRefreshInterval = 6 * time.Minute
)

// Endpoints holds the authorization server URLs the client talks to.
// They can be configured explicitly or discovered from an OIDC issuer
// via EndpointsFromIssuer.
type Endpoints struct {
	AuthorizationURL string // user-facing authorization endpoint
	TokenURL         string // token endpoint (code and refresh grants)
	RevokeTokenURL   string // token revocation endpoint, used on logout
}

// ClientConfig identifies this OAuth2 client towards the authorization server.
type ClientConfig struct {
	ClientID    string
	RedirectURL string
	Scopes      []string // requested scopes, joined with spaces in the authorization request
}

// RefreshOptions controls the token refresh behaviour of the session plugin.
type RefreshOptions struct {
	// AutoRefresh arms a recurring timer that refreshes the access token
	// once it expires.
	AutoRefresh bool
	// Interval is the refresh timer period. Defaults to DefaultRefreshInterval.
	Interval time.Duration
	// StoreRefreshToken controls whether the refresh token is written to the
	// persistent store. When false the token is held in memory only and is
	// stripped from every saved session record.
	StoreRefreshToken bool
}

// Options is the full configuration surface of the PKCE client.
type Options struct {
	Endpoints Endpoints
	Client    ClientConfig
	Refresh   RefreshOptions

	// StateLength overrides the length of the generated state parameter.
	// Defaults to RecommendedStateLength.
	StateLength int
}

// Validate checks the configuration and applies defaults. Called by
// NewClient; a failure here is fatal at construction.
func (o *Options) Validate() error {
	if err := validateEndpointURL("authorization url", o.Endpoints.AuthorizationURL); err != nil {
		return err
	}
	if err := validateEndpointURL("token url", o.Endpoints.TokenURL); err != nil {
		return err
	}
	if o.Endpoints.RevokeTokenURL != "" {
		if err := validateEndpointURL("revoke token url", o.Endpoints.RevokeTokenURL); err != nil {
			return err
		}
	}
	if o.Client.ClientID == "" {
		return errors.Wrap(ErrInvalidConfiguration, "client id is required")
	}
	if err := validateEndpointURL("redirect url", o.Client.RedirectURL); err != nil {
		return err
	}
	if o.StateLength == 0 {
		o.StateLength = RecommendedStateLength
	}
	if o.StateLength < RecommendedStateLength {
		return errors.Wrapf(ErrInvalidConfiguration, "state length must be at least %d", RecommendedStateLength)
	}
	if o.Refresh.Interval <= 0 {
		o.Refresh.Interval = DefaultRefreshInterval
	}
	return nil
}

func validateEndpointURL(name, rawURL string) error {
	if rawURL == "" {
		return errors.Wrapf(ErrInvalidConfiguration, "%s is required", name)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return errors.Wrapf(ErrInvalidConfiguration, "%s is malformed: %v", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Wrapf(ErrInvalidConfiguration, "%s must use http or https scheme", name)
	}
	return nil
}
