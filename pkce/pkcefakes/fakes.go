// Package pkcefakes provides hand-written fakes for the pkce collaborator
// interfaces, for use in tests.
package pkcefakes

import (
	"net/url"
	"sync"

	"github.com/jrsteele09/go-auth-client/pkce"
)

// FakeStorage is an in-memory pkce.Storage.
type FakeStorage struct {
	mu     sync.Mutex
	values map[string]string

	// SetErr, when non-nil, is returned from every Set call.
	SetErr error
}

func NewFakeStorage() *FakeStorage {
	return &FakeStorage{values: make(map[string]string)}
}

func (s *FakeStorage) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[key]
	return value, ok
}

func (s *FakeStorage) Set(key, value string) error {
	if s.SetErr != nil {
		return s.SetErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// FakeNotifier records every notification.
type FakeNotifier struct {
	mu            sync.Mutex
	notifications []pkce.Notification
}

func NewFakeNotifier() *FakeNotifier {
	return &FakeNotifier{}
}

func (n *FakeNotifier) Notify(notification pkce.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifications = append(n.notifications, notification)
}

func (n *FakeNotifier) Notifications() []pkce.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]pkce.Notification, len(n.notifications))
	copy(out, n.notifications)
	return out
}

// FakeNavigator holds a settable current location and records navigations.
type FakeNavigator struct {
	mu       sync.Mutex
	current  *url.URL
	replaced []*url.URL
	history  []*url.URL

	// ReplaceErr, when non-nil, is returned from every Replace call.
	ReplaceErr error

	// OnReplace, when set, computes the location the user agent ends up at
	// after a Replace, e.g. a simulated redirect back from the
	// authorization server.
	OnReplace func(u *url.URL) *url.URL
}

func NewFakeNavigator(rawURL string) *FakeNavigator {
	current, _ := url.Parse(rawURL)
	return &FakeNavigator{current: current}
}

func (nav *FakeNavigator) Location() *url.URL {
	nav.mu.Lock()
	defer nav.mu.Unlock()
	return nav.current
}

// SetLocation simulates the user agent arriving at a URL, e.g. the redirect
// back from the authorization server.
func (nav *FakeNavigator) SetLocation(rawURL string) {
	current, _ := url.Parse(rawURL)
	nav.mu.Lock()
	defer nav.mu.Unlock()
	nav.current = current
}

func (nav *FakeNavigator) Replace(u *url.URL) error {
	if nav.ReplaceErr != nil {
		return nav.ReplaceErr
	}
	nav.mu.Lock()
	defer nav.mu.Unlock()
	nav.replaced = append(nav.replaced, u)
	if nav.OnReplace != nil {
		nav.current = nav.OnReplace(u)
	} else {
		nav.current = u
	}
	return nil
}

func (nav *FakeNavigator) ReplaceHistory(u *url.URL) error {
	nav.mu.Lock()
	defer nav.mu.Unlock()
	nav.history = append(nav.history, u)
	nav.current = u
	return nil
}

// Replaced returns every URL passed to Replace, oldest first.
func (nav *FakeNavigator) Replaced() []*url.URL {
	nav.mu.Lock()
	defer nav.mu.Unlock()
	out := make([]*url.URL, len(nav.replaced))
	copy(out, nav.replaced)
	return out
}

// History returns every URL passed to ReplaceHistory, oldest first.
func (nav *FakeNavigator) History() []*url.URL {
	nav.mu.Lock()
	defer nav.mu.Unlock()
	out := make([]*url.URL, len(nav.history))
	copy(out, nav.history)
	return out
}
