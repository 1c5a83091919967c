package config

import (
	"strings"
	"time"

	"github.com/jrsteele09/go-auth-client/pkce"
)

type AuthConfig interface {
	GetIssuer() string
	GetAuthorizationURL() string
	GetTokenURL() string
	GetRevokeTokenURL() string
	GetClientID() string
	GetRedirectURL() string
	GetScopes() []string
	GetAutoRefresh() bool
	GetRefreshInterval() time.Duration
	GetStoreRefreshToken() bool
}

type Auth struct{}

var _ AuthConfig = Auth{}

// GetIssuer returns the OIDC issuer for endpoint discovery. When set, the
// explicit endpoint variables are not needed.
func (Auth) GetIssuer() string {
	return GetEnv("OAUTH_ISSUER", "")
}

func (Auth) GetAuthorizationURL() string {
	return GetEnv("OAUTH_AUTHORIZATION_URL", "")
}

func (Auth) GetTokenURL() string {
	return GetEnv("OAUTH_TOKEN_URL", "")
}

func (Auth) GetRevokeTokenURL() string {
	return GetEnv("OAUTH_REVOKE_TOKEN_URL", "")
}

func (Auth) GetClientID() string {
	return GetEnv("OAUTH_CLIENT_ID", "")
}

func (Auth) GetRedirectURL() string {
	return GetEnv("OAUTH_REDIRECT_URL", "http://127.0.0.1:8089/callback")
}

func (Auth) GetScopes() []string {
	scopes := GetEnv("OAUTH_SCOPES", "openid profile")
	return strings.Fields(scopes)
}

func (Auth) GetAutoRefresh() bool {
	return GetEnv("OAUTH_AUTO_REFRESH", "false") == "true"
}

func (Auth) GetRefreshInterval() time.Duration {
	interval, err := time.ParseDuration(GetEnv("OAUTH_REFRESH_INTERVAL", ""))
	if err != nil {
		return pkce.DefaultRefreshInterval
	}
	return interval
}

func (Auth) GetStoreRefreshToken() bool {
	return GetEnv("OAUTH_STORE_REFRESH_TOKEN", "false") == "true"
}

// Options assembles the pkce client configuration from the environment.
func Options(c AuthConfig) pkce.Options {
	return pkce.Options{
		Endpoints: pkce.Endpoints{
			AuthorizationURL: c.GetAuthorizationURL(),
			TokenURL:         c.GetTokenURL(),
			RevokeTokenURL:   c.GetRevokeTokenURL(),
		},
		Client: pkce.ClientConfig{
			ClientID:    c.GetClientID(),
			RedirectURL: c.GetRedirectURL(),
			Scopes:      c.GetScopes(),
		},
		Refresh: pkce.RefreshOptions{
			AutoRefresh:       c.GetAutoRefresh(),
			Interval:          c.GetRefreshInterval(),
			StoreRefreshToken: c.GetStoreRefreshToken(),
		},
	}
}
