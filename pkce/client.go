package pkce

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-auth-client/internal/utils"
	"github.com/jrsteele09/go-auth-client/oauth2"
)

const loginFailedMessage = "Unable to login"

// AccessContext is the token snapshot handed to callers after a successful
// exchange or session restore.
type AccessContext struct {
	AccessToken  string
	IdToken      string
	RefreshToken string
	Scopes       []string
}

// Client owns the raw OAuth2/PKCE protocol mechanics: challenge/verifier and
// state generation, the authorization redirect, authorization code and
// refresh token exchange, token revocation and the persisted session record.
// It decides nothing about when these operations run; that is the session
// plugin's job (package authn).
type Client struct {
	options    Options
	notifier   Notifier
	storage    Storage
	navigator  Navigator
	httpClient *http.Client
	nowTime    func() time.Time // injectable for testing

	mu    sync.Mutex
	state SessionState
}

// ClientOption modifies a Client instance.
type ClientOption func(*Client)

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) ClientOption {
	return func(c *Client) {
		c.nowTime = nowFunc
	}
}

// WithHTTPClient sets the HTTP client used for token endpoint calls.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient initialises a Client with the required collaborators, validates
// the configuration and recovers any persisted session record.
func NewClient(options Options, notifier Notifier, storage Storage, navigator Navigator, opts ...ClientOption) (*Client, error) {
	if notifier == nil {
		return nil, errors.New("[NewClient] notifier is required")
	}
	if storage == nil {
		return nil, errors.New("[NewClient] storage is required")
	}
	if navigator == nil {
		return nil, errors.New("[NewClient] navigator is required")
	}
	if err := options.Validate(); err != nil {
		return nil, errors.Wrap(err, "[NewClient] validate options")
	}

	client := &Client{
		options:    options,
		notifier:   notifier,
		storage:    storage,
		navigator:  navigator,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		nowTime:    time.Now,
	}

	for _, opt := range opts {
		opt(client)
	}

	client.recoverState()
	return client, nil
}

// IsAuthorized reports whether an access token is present and not expired.
func (c *Client) IsAuthorized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.AccessToken != "" && !c.isExpiredLocked()
}

// IsExpiredAccessToken reports whether the recorded expiry has passed.
// A session without a recorded expiry is treated as not expired.
func (c *Client) IsExpiredAccessToken() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isExpiredLocked()
}

func (c *Client) isExpiredLocked() bool {
	expiresAt, ok := c.state.expiryTime()
	if !ok {
		return false
	}
	return !c.nowTime().Before(expiresAt)
}

// RequestAuthorizationCode starts the authorization code flow: it generates
// a fresh PKCE pair and state parameter, persists them so they survive the
// redirect, and navigates to the authorization server. With a browser-style
// navigator control does not return to the caller on success because the
// page unloads; other navigators may block until the user agent returns.
func (c *Client) RequestAuthorizationCode() error {
	verifier, challenge, err := generatePKCE()
	if err != nil {
		return errors.Wrap(err, "[RequestAuthorizationCode] generate pkce pair")
	}
	stateParam, err := generateState(c.options.StateLength)
	if err != nil {
		return errors.Wrap(err, "[RequestAuthorizationCode] generate state")
	}

	// save state before the redirect
	c.mu.Lock()
	c.state.StateParam = stateParam
	c.state.CodeChallenge = challenge
	c.state.CodeVerifier = verifier
	if err := c.saveState(); err != nil {
		c.mu.Unlock()
		return errors.Wrap(err, "[RequestAuthorizationCode] save state")
	}
	c.mu.Unlock()

	authURL, err := url.Parse(c.options.Endpoints.AuthorizationURL)
	if err != nil {
		return errors.Wrap(err, "[RequestAuthorizationCode] parse authorization url")
	}
	query := url.Values{}
	query.Set("response_type", string(oauth2.CodeResponseType))
	query.Set("client_id", c.options.Client.ClientID)
	query.Set("code_challenge", challenge)
	query.Set("code_challenge_method", string(oauth2.CodeMethodTypeS256))
	query.Set("redirect_uri", c.options.Client.RedirectURL)
	query.Set("state", stateParam)
	if len(c.options.Client.Scopes) > 0 {
		query.Set("scope", strings.Join(c.options.Client.Scopes, " "))
	}
	authURL.RawQuery = query.Encode()

	// go to the auth server
	if err := c.navigator.Replace(authURL); err != nil {
		return errors.Wrap(err, "[RequestAuthorizationCode] navigate to authorization server")
	}
	return nil
}

// IsReturningFromAuthServer reports whether the current location carries the
// outcome of an authorization request, either a code or an error.
func (c *Client) IsReturningFromAuthServer() bool {
	return c.locationParam("code") != "" || c.locationParam("error") != ""
}

// ReceiveCode consumes the redirect back from the authorization server. The
// state parameter must match the persisted one exactly; a mismatch is a
// security failure and abandons the pending flow. On success the code is
// stored and the now-unneeded code challenge is cleared.
func (c *Client) ReceiveCode() error {
	if errCode := c.locationParam("error"); errCode != "" {
		c.notifier.Notify(Notification{Level: LevelError, Message: loginFailedMessage})
		serverErr := oauth2.ErrorResponse{
			Code:        errCode,
			Description: c.locationParam("error_description"),
			URI:         c.locationParam("error_uri"),
		}
		return errors.Wrap(ErrAuthorizationDenied, serverErr.Error())
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if stateParam := c.locationParam("state"); stateParam != c.state.StateParam {
		c.notifier.Notify(Notification{Level: LevelError, Message: loginFailedMessage})
		return errors.Wrap(ErrStateMismatch, "possible malicious activity")
	}

	authorizationCode := c.locationParam("code")
	if authorizationCode == "" {
		c.notifier.Notify(Notification{Level: LevelError, Message: loginFailedMessage})
		return ErrMissingAuthorizationCode
	}

	c.state.AuthorizationCode = authorizationCode
	c.state.CodeChallenge = "" // no longer needed, must not linger
	if err := c.saveState(); err != nil {
		return errors.Wrap(err, "[ReceiveCode] save state")
	}
	return nil
}

// GetTokens returns the current token snapshot. A pending authorization code
// is exchanged first. An expired token resets the session (logical logout)
// and yields an empty context; refreshing before returning is the caller's
// responsibility, not this method's.
func (c *Client) GetTokens(ctx context.Context) (AccessContext, error) {
	c.mu.Lock()
	if c.state.AuthorizationCode != "" {
		c.mu.Unlock()
		return c.ExchangeAuthCodeForAccessToken(ctx)
	}

	if c.state.AccessToken == "" {
		c.mu.Unlock()
		c.notifier.Notify(Notification{Level: LevelError, Message: "No access token available"})
		return AccessContext{}, ErrNoAccessToken
	}

	if c.isExpiredLocked() {
		err := c.resetStateLocked()
		c.mu.Unlock()
		return AccessContext{}, errors.Wrap(err, "[GetTokens] reset expired session")
	}

	snapshot := AccessContext{
		AccessToken:  c.state.AccessToken,
		IdToken:      c.state.IdToken,
		RefreshToken: c.state.RefreshToken,
		Scopes:       c.state.Scopes,
	}
	c.mu.Unlock()
	return snapshot, nil
}

// ExchangeAuthCodeForAccessToken performs the authorization_code grant using
// the pending code and verifier.
func (c *Client) ExchangeAuthCodeForAccessToken(ctx context.Context) (AccessContext, error) {
	c.mu.Lock()
	if c.state.CodeVerifier == "" {
		log.Warn().Msg("no code_verifier present on token request")
	} else if c.state.AuthorizationCode == "" {
		log.Warn().Msg("no authorization_code present on token request")
	}
	form := url.Values{}
	form.Set("grant_type", string(oauth2.AuthorizationCodeGrant))
	form.Set("code_verifier", c.state.CodeVerifier)
	form.Set("code", c.state.AuthorizationCode)
	form.Set("redirect_uri", c.options.Client.RedirectURL)
	form.Set("client_id", c.options.Client.ClientID)
	c.mu.Unlock()

	response, err := c.tokenRequest(ctx, form)
	if err != nil {
		return AccessContext{}, err
	}
	return c.setTokens(response)
}

// ExchangeRefreshTokenForAccessToken performs the refresh_token grant using
// the held refresh token.
func (c *Client) ExchangeRefreshTokenForAccessToken(ctx context.Context) (AccessContext, error) {
	c.mu.Lock()
	refreshToken := c.state.RefreshToken
	c.mu.Unlock()

	if refreshToken == "" {
		log.Warn().Msg("no refresh token is present")
		return AccessContext{}, ErrNoRefreshToken
	}

	form := url.Values{}
	form.Set("grant_type", string(oauth2.RefreshTokenCodeGrant))
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", c.options.Client.ClientID)

	response, err := c.tokenRequest(ctx, form)
	if err != nil {
		return AccessContext{}, err
	}
	return c.setTokens(response)
}

// Logout revokes the access token best-effort and always clears the local
// session. A failing revocation call is reported to the notifier but does
// not block the local logout.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	accessToken := c.state.AccessToken
	c.mu.Unlock()

	if accessToken != "" && c.options.Endpoints.RevokeTokenURL != "" {
		if err := c.revokeToken(ctx, accessToken); err != nil {
			c.notifier.Notify(Notification{Level: LevelError, Message: err.Error()})
		}
	}
	return c.ResetState()
}

func (c *Client) revokeToken(ctx context.Context, accessToken string) error {
	form := url.Values{}
	form.Set("token", accessToken)
	form.Set("client_id", c.options.Client.ClientID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.options.Endpoints.RevokeTokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "[revokeToken] create request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "[revokeToken] revocation request")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Errorf("[revokeToken] revocation endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// tokenRequest POSTs a form to the token endpoint and decodes the response.
// Non-2xx responses are parsed as RFC 6749 error JSON where possible and
// always wrap ErrTokenRequestFailed; no state is mutated on failure.
func (c *Client) tokenRequest(ctx context.Context, form url.Values) (*oauth2.TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.options.Endpoints.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "[tokenRequest] create request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(ErrTokenRequestFailed, "request error: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(ErrTokenRequestFailed, "read response body: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var serverErr oauth2.ErrorResponse
		if jsonErr := json.Unmarshal(body, &serverErr); jsonErr == nil && serverErr.Code != "" {
			return nil, errors.Wrapf(ErrTokenRequestFailed, "status %d: %s", resp.StatusCode, serverErr.Error())
		}
		return nil, errors.Wrapf(ErrTokenRequestFailed, "status %d", resp.StatusCode)
	}

	tokenResponse := &oauth2.TokenResponse{}
	if err := json.Unmarshal(body, tokenResponse); err != nil {
		return nil, errors.Wrapf(ErrTokenRequestFailed, "decode token response: %v", err)
	}
	return tokenResponse, nil
}

// setTokens funnels a successful token response into the session record:
// transient flow fields are cleared, expires_in becomes an absolute expiry
// and the scope string is split into its granted scopes.
func (c *Client) setTokens(response *oauth2.TokenResponse) (AccessContext, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.StateParam = ""
	c.state.CodeVerifier = ""
	c.state.AuthorizationCode = ""

	expiresAt := c.nowTime().UnixMilli() + int64(response.ExpiresIn)*1000
	c.state.AccessToken = utils.Value(response.AccessToken)
	c.state.AccessTokenExpiry = strconv.FormatInt(expiresAt, 10)
	c.state.IdToken = utils.Value(response.IdToken)
	c.state.RefreshToken = utils.Value(response.RefreshToken)
	c.state.Scopes = splitScopes(response.Scope)

	if err := c.saveState(); err != nil {
		return AccessContext{}, errors.Wrap(err, "[setTokens] save state")
	}

	return AccessContext{
		AccessToken:  c.state.AccessToken,
		IdToken:      c.state.IdToken,
		RefreshToken: c.state.RefreshToken,
		Scopes:       c.state.Scopes,
	}, nil
}

func (c *Client) locationParam(parameter string) string {
	location := c.navigator.Location()
	if location == nil {
		return ""
	}
	return location.Query().Get(parameter)
}

func splitScopes(scope string) []string {
	if scope == "" {
		return []string{}
	}
	return strings.Split(scope, " ")
}
