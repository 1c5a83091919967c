package pkce

import "net/url"

// Storage is the persistent key-value store the client saves its session
// record to. Last-write-wins; no transactional guarantees are required.
type Storage interface {
	Get(key string) (value string, ok bool)
	Set(key, value string) error
}

// Level classifies a user-facing notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a user-facing message. Title is optional.
type Notification struct {
	Level   Level
	Title   string
	Message string
}

// Notifier is the sink for user-facing messages. Notify is fire-and-forget
// and must not block.
type Notifier interface {
	Notify(n Notification)
}

// Navigator abstracts the user agent's location and history. In a browser
// host this maps to location/history; a native host typically implements it
// with a loopback redirect (see the browserflow package).
type Navigator interface {
	// Location returns the current location including its query string.
	Location() *url.URL

	// Replace performs a full navigation to the given URL. For the
	// authorization redirect the call hands control to the authorization
	// server; implementations may block until the user agent returns.
	Replace(u *url.URL) error

	// ReplaceHistory replaces the visible location without reloading, used
	// to scrub consumed code/state query parameters.
	ReplaceHistory(u *url.URL) error
}
