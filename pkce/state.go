package pkce

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// StorageKey is the fixed key the session record is persisted under.
const StorageKey = "authentication-pkce"

// SessionState is the persisted session record owned by the Client. It is
// created empty, populated on successful code or refresh exchange, and
// cleared on logout or terminal refresh failure.
//
// CodeChallenge and CodeVerifier are generated together and cleared
// together once consumed. AuthorizationCode is present only transiently
// between the redirect back and the token exchange.
type SessionState struct {
	AccessToken       string   `json:"accessToken,omitempty"`
	AccessTokenExpiry string   `json:"accessTokenExpiry,omitempty"` // epoch millis as string
	AuthorizationCode string   `json:"authorizationCode,omitempty"`
	CodeChallenge     string   `json:"codeChallenge,omitempty"`
	CodeVerifier      string   `json:"codeVerifier,omitempty"`
	IdToken           string   `json:"idToken,omitempty"`
	RefreshToken      string   `json:"refreshToken,omitempty"`
	StateParam        string   `json:"stateParam,omitempty"`
	Scopes            []string `json:"scopes,omitempty"`
}

// expiryTime parses the stored expiry. ok is false when no expiry is
// recorded, which callers must treat as "not expired".
func (s *SessionState) expiryTime() (time.Time, bool) {
	if s.AccessTokenExpiry == "" {
		return time.Time{}, false
	}
	millis, err := strconv.ParseInt(s.AccessTokenExpiry, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(millis), true
}

// saveState writes the whole session record back to storage, stripping the
// refresh token unless configured to keep it. Callers must hold c.mu.
func (c *Client) saveState() error {
	state := c.state
	if !c.options.Refresh.StoreRefreshToken {
		state.RefreshToken = ""
	}
	encoded, err := json.Marshal(&state)
	if err != nil {
		return errors.Wrap(err, "[saveState] marshal session state")
	}
	if err := c.storage.Set(StorageKey, string(encoded)); err != nil {
		return errors.Wrap(err, "[saveState] write session state")
	}
	return nil
}

// recoverState loads the persisted session record, if any. A corrupt record
// is discarded rather than failing construction.
func (c *Client) recoverState() {
	raw, ok := c.storage.Get(StorageKey)
	if !ok {
		c.state = SessionState{}
		return
	}
	var state SessionState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		c.state = SessionState{}
		return
	}
	c.state = state
}

// ResetState clears the session record and persists the empty record
// immediately.
func (c *Client) ResetState() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resetStateLocked()
}

func (c *Client) resetStateLocked() error {
	c.state = SessionState{}
	return c.saveState()
}
