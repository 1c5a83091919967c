// Package notify provides a pkce.Notifier that renders user-facing
// notifications through zerolog. Hosting applications with a real UI supply
// their own Notifier; this one is for CLIs and services.
package notify

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-auth-client/pkce"
)

// LogNotifier writes notifications to a zerolog logger. Every notification
// gets a unique id so repeated messages can be told apart in log streams.
type LogNotifier struct {
	logger zerolog.Logger
}

// New creates a LogNotifier on the given logger.
func New(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify implements pkce.Notifier. Never blocks.
func (n *LogNotifier) Notify(notification pkce.Notification) {
	event := n.logger.WithLevel(level(notification.Level)).
		Str("notification_id", uuid.NewString())
	if notification.Title != "" {
		event = event.Str("title", notification.Title)
	}
	event.Msg(notification.Message)
}

func level(l pkce.Level) zerolog.Level {
	switch l {
	case pkce.LevelError:
		return zerolog.ErrorLevel
	case pkce.LevelWarning:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}
