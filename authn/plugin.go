package authn

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	xoauth2 "golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/jrsteele09/go-auth-client/pkce"
)

// Dependencies holds the collaborators required by the Plugin.
type Dependencies struct {
	Notifier  pkce.Notifier
	Storage   pkce.Storage
	Navigator pkce.Navigator
}

// Plugin is the session-lifecycle state machine on top of pkce.Client. It
// owns the reactive AuthState, decides when client operations run (startup,
// return from redirect, refresh timer) and decodes identity claims out of
// the ID token.
type Plugin struct {
	options   pkce.Options
	client    *pkce.Client
	notifier  pkce.Notifier
	navigator pkce.Navigator
	subject   *Subject
	log       zerolog.Logger

	// refreshGroup deduplicates overlapping refresh attempts when the timer
	// period is shorter than a slow network round trip.
	refreshGroup singleflight.Group

	mu        sync.Mutex
	stopTimer chan struct{}
	destroyed bool
}

type pluginSettings struct {
	logger        zerolog.Logger
	clientOptions []pkce.ClientOption
}

// Option modifies the Plugin configuration.
type Option func(*pluginSettings)

// WithLogger sets the logger used by the plugin.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *pluginSettings) {
		s.logger = logger
	}
}

// WithClientOptions passes options through to the underlying pkce.Client
// (e.g. pkce.WithNowTime, pkce.WithHTTPClient).
func WithClientOptions(opts ...pkce.ClientOption) Option {
	return func(s *pluginSettings) {
		s.clientOptions = append(s.clientOptions, opts...)
	}
}

// New validates the configuration, constructs the client and establishes the
// initial authentication state: a return from the authorization server is
// consumed (and the code/state query parameters scrubbed from the visible
// location), otherwise a persisted session is restored if one exists.
// Startup flow failures publish an error or not-authenticated state instead
// of failing construction; only configuration errors are fatal here.
func New(ctx context.Context, options pkce.Options, deps Dependencies, opts ...Option) (*Plugin, error) {
	settings := &pluginSettings{logger: log.Logger}
	for _, opt := range opts {
		opt(settings)
	}

	client, err := pkce.NewClient(options, deps.Notifier, deps.Storage, deps.Navigator, settings.clientOptions...)
	if err != nil {
		return nil, errors.Wrap(err, "[New] construct pkce client")
	}

	p := &Plugin{
		options:   options,
		client:    client,
		notifier:  deps.Notifier,
		navigator: deps.Navigator,
		subject:   NewSubject(AuthState{Kind: KindNotAuthenticated}),
		log:       settings.logger,
	}

	if client.IsReturningFromAuthServer() {
		p.receiveCode(ctx)
		// clean the visible location from oauth params regardless of
		// outcome, so a reload cannot re-trigger the code exchange
		p.scrubLocation()
	} else {
		p.restoreSession(ctx)
	}

	return p, nil
}

// State returns the current authentication state.
func (p *Plugin) State() AuthState {
	return p.subject.Value()
}

// Subscribe registers an observer for state changes and returns its cancel
// function. The plugin is the sole writer.
func (p *Plugin) Subscribe(observer func(AuthState)) (cancel func()) {
	return p.subject.Subscribe(observer)
}

// Client exposes the underlying protocol client.
func (p *Plugin) Client() *pkce.Client {
	return p.client
}

// TokenSource exposes the managed session as a golang.org/x/oauth2
// TokenSource for API callers.
func (p *Plugin) TokenSource(ctx context.Context) xoauth2.TokenSource {
	return p.client.TokenSource(ctx)
}

// StartCodeFlow begins the authorization code flow; the entry point for a
// login action. Failures are published as an error state and notified, never
// propagated past the plugin boundary.
func (p *Plugin) StartCodeFlow() {
	if err := p.client.RequestAuthorizationCode(); err != nil {
		p.publish(AuthState{Kind: KindError, Err: err})
		p.notifier.Notify(pkce.Notification{
			Level:   pkce.LevelError,
			Title:   "Login failed",
			Message: "Could not reach the authorization server. Please try again.",
		})
		p.log.Error().Err(err).Msg("failed to start authorization code flow")
		return
	}

	// A browser navigator never returns here because the page unloads and
	// the constructor consumes the redirect on reload. A navigator that
	// regains control (loopback redirect) hands the callback straight back;
	// consume it now.
	if p.client.IsReturningFromAuthServer() {
		p.receiveCode(context.Background())
		p.scrubLocation()
	}
}

// Logout stops the refresh timer, publishes not-authenticated immediately
// and then revokes the token best-effort; the local session is always
// cleared.
func (p *Plugin) Logout(ctx context.Context) error {
	p.stopRefresh()
	p.publish(AuthState{Kind: KindNotAuthenticated})
	return p.client.Logout(ctx)
}

// Destroy cancels the refresh timer and stops all state publications.
// Idempotent and callable in any state; results of in-flight operations
// arriving after Destroy are dropped.
func (p *Plugin) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopTimerLocked()
	p.destroyed = true
}

func (p *Plugin) receiveCode(ctx context.Context) {
	if err := p.client.ReceiveCode(); err != nil {
		p.publish(AuthState{Kind: KindError, Err: err})
		p.log.Error().Err(err).Msg("failed to receive authorization code")
		return
	}
	tokens, err := p.client.GetTokens(ctx)
	if err != nil {
		p.publish(AuthState{Kind: KindError, Err: err})
		p.log.Error().Err(err).Msg("failed to exchange authorization code")
		return
	}
	p.authenticate(tokens)
}

// restoreSession re-establishes a prior session from the persisted record: a
// fresh token is used as-is, an expired one is refreshed when a refresh
// token is held. Failures invalidate the session and leave the state
// not-authenticated.
func (p *Plugin) restoreSession(ctx context.Context) {
	if p.client.IsAuthorized() {
		tokens, err := p.client.GetTokens(ctx)
		if err != nil {
			p.notifier.Notify(pkce.Notification{Level: pkce.LevelError, Message: "Token exchange failed"})
			p.log.Error().Err(err).Msg("failed to restore session")
			return
		}
		p.authenticate(tokens)
		return
	}

	if p.client.IsExpiredAccessToken() {
		tokens, err := p.client.ExchangeRefreshTokenForAccessToken(ctx)
		if err != nil {
			// fail closed: never hold a stale token
			_ = p.client.ResetState()
			p.notifier.Notify(pkce.Notification{Level: pkce.LevelError, Message: "Token exchange failed"})
			p.log.Error().Err(err).Msg("failed to refresh expired session")
			return
		}
		p.authenticate(tokens)
	}
}

// authenticate decodes the identity claims, publishes the authenticated
// state and (re)arms the refresh timer when auto refresh is configured.
func (p *Plugin) authenticate(tokens pkce.AccessContext) {
	claims, err := DecodeClaims(tokens.IdToken)
	if err != nil {
		p.publish(AuthState{Kind: KindError, Err: err})
		p.log.Error().Err(err).Msg("failed to decode id token claims")
		return
	}

	userID := claims.Subject
	if userID == "" {
		userID = UnknownUserID
	}
	issuer := claims.Issuer
	if issuer == "" {
		issuer = "unknown"
	}

	p.publish(AuthState{
		Kind: KindAuthenticated,
		Session: &SessionInfo{
			UserID:   userID,
			UserName: claims.PreferredUsername,
			Attributes: SessionAttributes{
				Issuer:      issuer,
				AccessToken: tokens.AccessToken,
				GivenName:   claims.GivenName,
				FamilyName:  claims.FamilyName,
				ExpiresAt:   numericDateTime(claims.ExpiresAt),
				IssuedAt:    numericDateTime(claims.IssuedAt),
			},
		},
	})
	p.log.Debug().Str("user_id", userID).Msg("user is authenticated")

	if p.options.Refresh.AutoRefresh {
		p.armRefresh(p.options.Refresh.Interval)
	}
}

// armRefresh starts the recurring refresh timer, always cancelling a
// previous timer first so a second concurrent timer can never leak.
func (p *Plugin) armRefresh(interval time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return
	}
	p.stopTimerLocked()
	stop := make(chan struct{})
	p.stopTimer = stop

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				p.refreshTick()
			}
		}
	}()
}

// refreshTick refreshes the access token once it has expired. Overlapping
// attempts are deduplicated; a refresh failure is terminal for the session.
func (p *Plugin) refreshTick() {
	if !p.client.IsExpiredAccessToken() {
		return
	}

	_, err, _ := p.refreshGroup.Do("refresh", func() (interface{}, error) {
		tokens, err := p.client.ExchangeRefreshTokenForAccessToken(context.Background())
		if err != nil {
			return nil, err
		}
		p.authenticate(tokens)
		return nil, nil
	})
	if err != nil {
		p.log.Error().Err(err).Msg("failed to refresh token, session is unrecoverable")
		_ = p.client.ResetState()
		p.stopRefresh()
		p.publish(AuthState{Kind: KindNotAuthenticated})
	}
}

func (p *Plugin) stopRefresh() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopTimerLocked()
}

func (p *Plugin) stopTimerLocked() {
	if p.stopTimer != nil {
		close(p.stopTimer)
		p.stopTimer = nil
	}
}

func (p *Plugin) publish(state AuthState) {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	p.subject.publish(state)
}

func (p *Plugin) scrubLocation() {
	location := p.navigator.Location()
	if location == nil {
		return
	}
	scrubbed := *location
	query := scrubbed.Query()
	query.Del("code")
	query.Del("state")
	query.Del("error")
	query.Del("error_description")
	query.Del("error_uri")
	scrubbed.RawQuery = query.Encode()
	if err := p.navigator.ReplaceHistory(&scrubbed); err != nil {
		p.log.Warn().Err(err).Msg("failed to scrub oauth params from location")
	}
}

// numericDateTime converts a JWT NumericDate (seconds since epoch) into a
// time.Time, mapping an absent claim to the epoch.
func numericDateTime(numericDate *jwtlib.NumericDate) time.Time {
	if numericDate == nil {
		return time.Unix(0, 0)
	}
	return numericDate.Time
}
