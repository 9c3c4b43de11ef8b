// Package chat mirrors board events to chat platforms (Slack, Discord).
// Mirrors are best-effort: delivery failures are logged, never returned to
// the code paths that triggered them.
package chat

import (
	"context"
	"log"
)

// Event is a board event formatted for display in chat.
type Event struct {
	Title    string  // headline, e.g. "Approval resolved: deploy"
	Body     string  // detail text
	Severity string  // "info", "success", "warning"
	Fields   []Field // key-value metadata pairs
}

// Field is a key-value pair displayed alongside an event.
type Field struct {
	Name  string
	Value string
}

// Notifier posts events to one chat platform.
type Notifier interface {
	// Post delivers an event to the platform's configured channel.
	Post(ctx context.Context, evt Event) error

	// Platform returns the platform name for logging ("slack", "discord").
	Platform() string
}

// Broadcast posts an event to every notifier, logging failures.
func Broadcast(ctx context.Context, notifiers []Notifier, evt Event) {
	for _, n := range notifiers {
		if err := n.Post(ctx, evt); err != nil {
			log.Printf("chat: %s post failed: %v", n.Platform(), err)
		}
	}
}

// SeverityColor maps an event severity to a sidebar color hint.
func SeverityColor(severity string) string {
	switch severity {
	case "success":
		return "#36a64f"
	case "warning":
		return "#daa038"
	default:
		return "#439fe0"
	}
}
