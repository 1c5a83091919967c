package authn

import (
	"sync"
	"time"
)

// Kind tags the variants of AuthState.
type Kind string

const (
	KindNotAuthenticated Kind = "not-authenticated"
	KindAuthenticated    Kind = "authenticated"
	KindError            Kind = "error"
)

// SessionAttributes carries the identity attributes decoded from the ID
// token, plus the access token for API calls.
type SessionAttributes struct {
	Issuer      string
	AccessToken string
	GivenName   string
	FamilyName  string
	ExpiresAt   time.Time
	IssuedAt    time.Time
}

// SessionInfo describes the authenticated user.
type SessionInfo struct {
	UserID     string
	UserName   string
	Attributes SessionAttributes
}

// AuthState is the reactive authentication state exposed to observers. It is
// a tagged variant: Session is set only for KindAuthenticated, Err only for
// KindError. It is derived state and never persisted; it is reconstructed
// from the session record at every startup.
type AuthState struct {
	Kind    Kind
	Session *SessionInfo
	Err     error
}

// Subject is a minimal observable holding the current AuthState. The plugin
// is the sole writer; observers read the current value or subscribe for
// updates.
type Subject struct {
	mu          sync.Mutex
	value       AuthState
	subscribers map[int]func(AuthState)
	nextID      int
}

// NewSubject creates a Subject with the given initial value.
func NewSubject(initial AuthState) *Subject {
	return &Subject{
		value:       initial,
		subscribers: make(map[int]func(AuthState)),
	}
}

// Value returns the current state.
func (s *Subject) Value() AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Subscribe registers an observer and returns its cancel function.
// Observers are invoked synchronously on every publish and must not block.
func (s *Subject) Subscribe(observer func(AuthState)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = observer
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

func (s *Subject) publish(newState AuthState) {
	s.mu.Lock()
	s.value = newState
	observers := make([]func(AuthState), 0, len(s.subscribers))
	for _, observer := range s.subscribers {
		observers = append(observers, observer)
	}
	s.mu.Unlock()

	for _, observer := range observers {
		observer(newState)
	}
}
