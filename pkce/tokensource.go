package pkce

import (
	"context"
	"errors"
	"time"

	xoauth2 "golang.org/x/oauth2"
)

// TokenSource adapts the managed session to the standard
// golang.org/x/oauth2 TokenSource contract so API callers can plug the
// session into oauth2.NewClient and friends. An expired access token is
// refreshed on demand when a refresh token is held; wrap the result in
// oauth2.ReuseTokenSource to avoid hitting the session record on every call.
func (c *Client) TokenSource(ctx context.Context) xoauth2.TokenSource {
	return &sessionTokenSource{ctx: ctx, client: c}
}

type sessionTokenSource struct {
	ctx    context.Context
	client *Client
}

func (ts *sessionTokenSource) Token() (*xoauth2.Token, error) {
	c := ts.client

	if c.IsAuthorized() {
		return c.currentToken(), nil
	}

	if _, err := c.ExchangeRefreshTokenForAccessToken(ts.ctx); err != nil {
		if errors.Is(err, ErrNoRefreshToken) {
			return nil, ErrNoAccessToken
		}
		return nil, err
	}
	return c.currentToken(), nil
}

func (c *Client) currentToken() *xoauth2.Token {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiry time.Time
	if expiresAt, ok := c.state.expiryTime(); ok {
		expiry = expiresAt
	}
	return &xoauth2.Token{
		AccessToken:  c.state.AccessToken,
		RefreshToken: c.state.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       expiry,
	}
}
