package pkce_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-auth-client/pkce"
	"github.com/jrsteele09/go-auth-client/pkce/pkcefakes"
)

const (
	testClientID    = "test-client-1"
	testRedirectURL = "http://localhost:3000/callback"
	testIDToken     = "test-id-token"
)

// testFixture holds all client dependencies
type testFixture struct {
	storage  *pkcefakes.FakeStorage
	notifier *pkcefakes.FakeNotifier
	nav      *pkcefakes.FakeNavigator
	now      time.Time
	client   *pkce.Client
}

func testOptions(tokenURL string) pkce.Options {
	return pkce.Options{
		Endpoints: pkce.Endpoints{
			AuthorizationURL: "https://auth.example.com/authorize",
			TokenURL:         tokenURL,
		},
		Client: pkce.ClientConfig{
			ClientID:    testClientID,
			RedirectURL: testRedirectURL,
			Scopes:      []string{"openid", "profile"},
		},
	}
}

// setupFixture creates a client on fakes. mutate can adjust options and seed
// storage before the client is constructed (and recovers state).
func setupFixture(t *testing.T, tokenURL string, mutate func(options *pkce.Options, storage *pkcefakes.FakeStorage)) *testFixture {
	t.Helper()

	f := &testFixture{
		storage:  pkcefakes.NewFakeStorage(),
		notifier: pkcefakes.NewFakeNotifier(),
		nav:      pkcefakes.NewFakeNavigator(testRedirectURL),
		now:      time.Now(),
	}

	options := testOptions(tokenURL)
	if mutate != nil {
		mutate(&options, f.storage)
	}

	client, err := pkce.NewClient(options, f.notifier, f.storage, f.nav,
		pkce.WithNowTime(func() time.Time { return f.now }))
	require.NoError(t, err)
	f.client = client
	return f
}

func (f *testFixture) persistedState(t *testing.T) pkce.SessionState {
	t.Helper()
	raw, ok := f.storage.Get(pkce.StorageKey)
	require.True(t, ok, "no session state persisted")
	var state pkce.SessionState
	require.NoError(t, json.Unmarshal([]byte(raw), &state))
	return state
}

func seedState(t *testing.T, storage *pkcefakes.FakeStorage, state pkce.SessionState) {
	t.Helper()
	encoded, err := json.Marshal(&state)
	require.NoError(t, err)
	require.NoError(t, storage.Set(pkce.StorageKey, string(encoded)))
}

func millis(ts time.Time) string {
	return strconv.FormatInt(ts.UnixMilli(), 10)
}

func TestNewClientRequiresCollaborators(t *testing.T) {
	options := testOptions("https://auth.example.com/token")
	_, err := pkce.NewClient(options, nil, pkcefakes.NewFakeStorage(), pkcefakes.NewFakeNavigator(testRedirectURL))
	require.Error(t, err)
}

func TestNewClientValidatesConfiguration(t *testing.T) {
	options := testOptions("https://auth.example.com/token")
	options.Client.ClientID = ""
	_, err := pkce.NewClient(options, pkcefakes.NewFakeNotifier(), pkcefakes.NewFakeStorage(), pkcefakes.NewFakeNavigator(testRedirectURL))
	require.ErrorIs(t, err, pkce.ErrInvalidConfiguration)
}

func TestRequestAuthorizationCodePersistsFlowState(t *testing.T) {
	f := setupFixture(t, "https://auth.example.com/token", nil)

	require.NoError(t, f.client.RequestAuthorizationCode())

	state := f.persistedState(t)
	require.Len(t, state.StateParam, pkce.RecommendedStateLength)
	require.NotEmpty(t, state.CodeVerifier)
	require.Equal(t, pkce.S256ChallengeFromVerifier(state.CodeVerifier), state.CodeChallenge)

	replaced := f.nav.Replaced()
	require.Len(t, replaced, 1)
	query := replaced[0].Query()
	require.Equal(t, "code", query.Get("response_type"))
	require.Equal(t, testClientID, query.Get("client_id"))
	require.Equal(t, state.CodeChallenge, query.Get("code_challenge"))
	require.Equal(t, "S256", query.Get("code_challenge_method"))
	require.Equal(t, testRedirectURL, query.Get("redirect_uri"))
	require.Equal(t, state.StateParam, query.Get("state"))
	require.Equal(t, "openid profile", query.Get("scope"))
}

func TestRequestAuthorizationCodeUniquePerFlow(t *testing.T) {
	f := setupFixture(t, "https://auth.example.com/token", nil)

	require.NoError(t, f.client.RequestAuthorizationCode())
	first := f.persistedState(t)
	require.NoError(t, f.client.RequestAuthorizationCode())
	second := f.persistedState(t)

	require.NotEqual(t, first.StateParam, second.StateParam)
	require.NotEqual(t, first.CodeVerifier, second.CodeVerifier)
}

func TestAuthorizationCodeRoundTrip(t *testing.T) {
	var tokenForm url.Values
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		tokenForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"access_token": "AT1",
			"token_type": "bearer",
			"expires_in": 3600,
			"id_token": "` + testIDToken + `",
			"refresh_token": "RT1",
			"scope": "openid"
		}`))
	}))
	defer tokenServer.Close()

	f := setupFixture(t, tokenServer.URL, nil)

	require.NoError(t, f.client.RequestAuthorizationCode())
	flowState := f.persistedState(t)

	f.nav.SetLocation(testRedirectURL + "?code=abc123&state=" + url.QueryEscape(flowState.StateParam))
	require.True(t, f.client.IsReturningFromAuthServer())
	require.NoError(t, f.client.ReceiveCode())

	received := f.persistedState(t)
	require.Equal(t, "abc123", received.AuthorizationCode)
	require.Equal(t, flowState.CodeVerifier, received.CodeVerifier)
	require.Equal(t, flowState.StateParam, received.StateParam)
	require.Empty(t, received.CodeChallenge, "code challenge must be cleared once the code is received")

	tokens, err := f.client.GetTokens(context.Background())
	require.NoError(t, err)
	require.Equal(t, "AT1", tokens.AccessToken)
	require.Equal(t, testIDToken, tokens.IdToken)
	require.Equal(t, []string{"openid"}, tokens.Scopes)

	require.Equal(t, "authorization_code", tokenForm.Get("grant_type"))
	require.Equal(t, "abc123", tokenForm.Get("code"))
	require.Equal(t, flowState.CodeVerifier, tokenForm.Get("code_verifier"))
	require.Equal(t, testRedirectURL, tokenForm.Get("redirect_uri"))
	require.Equal(t, testClientID, tokenForm.Get("client_id"))

	final := f.persistedState(t)
	require.Empty(t, final.StateParam)
	require.Empty(t, final.CodeVerifier)
	require.Empty(t, final.AuthorizationCode)
	require.Equal(t, millis(f.now.Add(time.Hour)), final.AccessTokenExpiry)
	require.True(t, f.client.IsAuthorized())
}

func TestReceiveCodeAuthorizationError(t *testing.T) {
	f := setupFixture(t, "https://auth.example.com/token", nil)
	before, _ := f.storage.Get(pkce.StorageKey)

	f.nav.SetLocation(testRedirectURL + "?error=access_denied&error_description=user+denied")
	err := f.client.ReceiveCode()
	require.ErrorIs(t, err, pkce.ErrAuthorizationDenied)
	require.Contains(t, err.Error(), "access_denied")
	require.Contains(t, err.Error(), "user denied")

	notifications := f.notifier.Notifications()
	require.Len(t, notifications, 1)
	require.Equal(t, pkce.LevelError, notifications[0].Level)

	after, _ := f.storage.Get(pkce.StorageKey)
	require.Equal(t, before, after, "no state may be persisted on a denied authorization")
}

func TestReceiveCodeStateMismatch(t *testing.T) {
	f := setupFixture(t, "https://auth.example.com/token", func(_ *pkce.Options, storage *pkcefakes.FakeStorage) {
		seedState(t, storage, pkce.SessionState{StateParam: "expected-state", CodeVerifier: "verifier", CodeChallenge: "challenge"})
	})

	f.nav.SetLocation(testRedirectURL + "?code=abc123&state=tampered-state")
	require.ErrorIs(t, f.client.ReceiveCode(), pkce.ErrStateMismatch)

	state := f.persistedState(t)
	require.Empty(t, state.AuthorizationCode, "a code from a mismatched state must never be accepted")
}

func TestReceiveCodeMissingCode(t *testing.T) {
	f := setupFixture(t, "https://auth.example.com/token", func(_ *pkce.Options, storage *pkcefakes.FakeStorage) {
		seedState(t, storage, pkce.SessionState{StateParam: "expected-state"})
	})

	f.nav.SetLocation(testRedirectURL + "?state=expected-state")
	require.ErrorIs(t, f.client.ReceiveCode(), pkce.ErrMissingAuthorizationCode)
}

func TestGetTokensWithoutSession(t *testing.T) {
	f := setupFixture(t, "https://auth.example.com/token", nil)

	_, err := f.client.GetTokens(context.Background())
	require.ErrorIs(t, err, pkce.ErrNoAccessToken)
	require.Len(t, f.notifier.Notifications(), 1)
}

func TestGetTokensExpiredResetsSession(t *testing.T) {
	f := setupFixture(t, "https://auth.example.com/token", func(_ *pkce.Options, storage *pkcefakes.FakeStorage) {
		seedState(t, storage, pkce.SessionState{
			AccessToken:       "stale-token",
			AccessTokenExpiry: millis(time.Now().Add(-time.Minute)),
		})
	})

	tokens, err := f.client.GetTokens(context.Background())
	require.NoError(t, err)
	require.Empty(t, tokens.AccessToken)

	state := f.persistedState(t)
	require.Equal(t, pkce.SessionState{}, state, "expired session must be reset")
}

func TestIsExpiredAccessTokenBoundary(t *testing.T) {
	for name, tc := range map[string]struct {
		expiry  func(now time.Time) string
		expired bool
	}{
		"exactly now":   {expiry: func(now time.Time) string { return millis(now) }, expired: true},
		"one ms ahead":  {expiry: func(now time.Time) string { return millis(now.Add(time.Millisecond)) }, expired: false},
		"in the past":   {expiry: func(now time.Time) string { return millis(now.Add(-time.Hour)) }, expired: true},
		"no expiry set": {expiry: func(time.Time) string { return "" }, expired: false},
	} {
		t.Run(name, func(t *testing.T) {
			now := time.Now()
			f := setupFixture(t, "https://auth.example.com/token", func(_ *pkce.Options, storage *pkcefakes.FakeStorage) {
				seedState(t, storage, pkce.SessionState{
					AccessToken:       "token",
					AccessTokenExpiry: tc.expiry(now),
				})
			})
			f.now = now
			require.Equal(t, tc.expired, f.client.IsExpiredAccessToken())
			require.Equal(t, !tc.expired, f.client.IsAuthorized())
		})
	}
}

func TestRefreshTokenExchange(t *testing.T) {
	var tokenForm url.Values
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		tokenForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"AT2","expires_in":3600,"id_token":"` + testIDToken + `","refresh_token":"RT2","scope":"openid profile"}`))
	}))
	defer tokenServer.Close()

	f := setupFixture(t, tokenServer.URL, func(options *pkce.Options, storage *pkcefakes.FakeStorage) {
		options.Refresh.StoreRefreshToken = true
		seedState(t, storage, pkce.SessionState{
			AccessToken:       "AT1",
			AccessTokenExpiry: millis(time.Now().Add(-time.Minute)),
			RefreshToken:      "RT1",
		})
	})

	tokens, err := f.client.ExchangeRefreshTokenForAccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "AT2", tokens.AccessToken)
	require.Equal(t, []string{"openid", "profile"}, tokens.Scopes)

	require.Equal(t, "refresh_token", tokenForm.Get("grant_type"))
	require.Equal(t, "RT1", tokenForm.Get("refresh_token"))
	require.Equal(t, testClientID, tokenForm.Get("client_id"))

	state := f.persistedState(t)
	require.Equal(t, "AT2", state.AccessToken)
	require.Equal(t, "RT2", state.RefreshToken)
}

func TestRefreshWithoutRefreshToken(t *testing.T) {
	f := setupFixture(t, "https://auth.example.com/token", nil)
	_, err := f.client.ExchangeRefreshTokenForAccessToken(context.Background())
	require.ErrorIs(t, err, pkce.ErrNoRefreshToken)
}

func TestTokenRequestFailureMutatesNoState(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"code expired"}`))
	}))
	defer tokenServer.Close()

	f := setupFixture(t, tokenServer.URL, func(_ *pkce.Options, storage *pkcefakes.FakeStorage) {
		seedState(t, storage, pkce.SessionState{
			AuthorizationCode: "abc123",
			CodeVerifier:      "verifier",
			StateParam:        "state",
		})
	})
	before, _ := f.storage.Get(pkce.StorageKey)

	_, err := f.client.ExchangeAuthCodeForAccessToken(context.Background())
	require.ErrorIs(t, err, pkce.ErrTokenRequestFailed)
	require.Contains(t, err.Error(), "invalid_grant")
	require.Contains(t, err.Error(), "code expired")

	after, _ := f.storage.Get(pkce.StorageKey)
	require.Equal(t, before, after, "a failed token request must not mutate state")
}

func TestRefreshTokenPersistenceToggle(t *testing.T) {
	tokenResponse := `{"access_token":"AT1","expires_in":3600,"refresh_token":"RT1","scope":""}`
	for name, store := range map[string]bool{"kept": true, "stripped": false} {
		t.Run(name, func(t *testing.T) {
			tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tokenResponse))
			}))
			defer tokenServer.Close()

			f := setupFixture(t, tokenServer.URL, func(options *pkce.Options, storage *pkcefakes.FakeStorage) {
				options.Refresh.StoreRefreshToken = store
				seedState(t, storage, pkce.SessionState{AuthorizationCode: "abc123", CodeVerifier: "verifier"})
			})

			tokens, err := f.client.ExchangeAuthCodeForAccessToken(context.Background())
			require.NoError(t, err)
			require.Equal(t, "RT1", tokens.RefreshToken, "the refresh token is always held in memory")

			state := f.persistedState(t)
			if store {
				require.Equal(t, "RT1", state.RefreshToken)
			} else {
				require.Empty(t, state.RefreshToken, "refresh token must be stripped from the persisted record")
			}
		})
	}
}

func TestScopeParsing(t *testing.T) {
	for scope, expected := range map[string][]string{
		`"openid profile email"`: {"openid", "profile", "email"},
		`""`:                     {},
	} {
		tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"AT1","expires_in":3600,"scope":` + scope + `}`))
		}))

		f := setupFixture(t, tokenServer.URL, func(_ *pkce.Options, storage *pkcefakes.FakeStorage) {
			seedState(t, storage, pkce.SessionState{AuthorizationCode: "abc123", CodeVerifier: "verifier"})
		})

		tokens, err := f.client.ExchangeAuthCodeForAccessToken(context.Background())
		require.NoError(t, err)
		require.Equal(t, expected, tokens.Scopes)
		tokenServer.Close()
	}
}

func TestResetStateIdempotent(t *testing.T) {
	f := setupFixture(t, "https://auth.example.com/token", func(_ *pkce.Options, storage *pkcefakes.FakeStorage) {
		seedState(t, storage, pkce.SessionState{AccessToken: "AT1", RefreshToken: "RT1"})
	})

	require.NoError(t, f.client.ResetState())
	first, _ := f.storage.Get(pkce.StorageKey)
	require.NoError(t, f.client.ResetState())
	second, _ := f.storage.Get(pkce.StorageKey)

	require.Equal(t, first, second)
	require.Equal(t, pkce.SessionState{}, f.persistedState(t))
}

func TestLogoutRevokesBestEffort(t *testing.T) {
	var revokeForm url.Values
	revokeServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		revokeForm = r.PostForm
		w.WriteHeader(http.StatusOK)
	}))
	defer revokeServer.Close()

	f := setupFixture(t, "https://auth.example.com/token", func(options *pkce.Options, storage *pkcefakes.FakeStorage) {
		options.Endpoints.RevokeTokenURL = revokeServer.URL
		seedState(t, storage, pkce.SessionState{AccessToken: "AT1"})
	})

	require.NoError(t, f.client.Logout(context.Background()))
	require.Equal(t, "AT1", revokeForm.Get("token"))
	require.Equal(t, testClientID, revokeForm.Get("client_id"))
	require.Equal(t, pkce.SessionState{}, f.persistedState(t))
	require.Empty(t, f.notifier.Notifications())
}

func TestLogoutClearsStateWhenRevocationFails(t *testing.T) {
	revokeServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer revokeServer.Close()

	f := setupFixture(t, "https://auth.example.com/token", func(options *pkce.Options, storage *pkcefakes.FakeStorage) {
		options.Endpoints.RevokeTokenURL = revokeServer.URL
		seedState(t, storage, pkce.SessionState{AccessToken: "AT1"})
	})

	require.NoError(t, f.client.Logout(context.Background()))
	require.Equal(t, pkce.SessionState{}, f.persistedState(t))
	require.Len(t, f.notifier.Notifications(), 1, "revocation failure is reported, not fatal")
}
