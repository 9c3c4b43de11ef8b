// Package stream implements polling-based live event feeds over board
// state. A poller runs per connection, re-querying storage on a fixed
// interval and pushing ordered events into a bounded channel; the HTTP
// layer only frames those events and keeps the connection alive.
package stream

import (
	"context"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	// PollInterval is the fixed delay between storage polls.
	PollInterval = 2 * time.Second
	// PingInterval is the keep-alive ping period, independent of polling.
	PingInterval = 15 * time.Second
	// channelBuffer bounds the poller-to-transport event channel.
	channelBuffer = 64
)

// Event is one named event with a JSON-marshalable payload.
type Event struct {
	Name string
	Data any
}

// ParseSince leniently parses a client-supplied "since" timestamp. It
// accepts timezone-qualified ISO-8601 and naive date-times (taken as
// UTC), normalizing to UTC. ok is false for absent or unparseable input;
// callers substitute the current time.
func ParseSince(value string) (time.Time, bool) {
	normalized := strings.TrimSpace(value)
	if normalized == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999999",
		"2006-01-02T15:04:05",
	} {
		if parsed, err := time.Parse(layout, normalized); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}

// SinceOrNow parses a since value, falling back to the current time.
func SinceOrNow(value string) time.Time {
	if parsed, ok := ParseSince(value); ok {
		return parsed
	}
	return time.Now().UTC()
}

// poller is the shared shape of entity-specific pollers: each poll
// returns the batch of events newer than the watermark and advances it.
type poller interface {
	poll(db *gorm.DB) ([]Event, error)
}

// run drives a poller until ctx is cancelled, pushing events into out.
// out is closed on exit so the transport side unblocks.
func run(ctx context.Context, db *gorm.DB, p poller, interval time.Duration, out chan<- Event) {
	defer close(out)
	if interval <= 0 {
		interval = PollInterval
	}
	for {
		events, err := p.poll(db)
		if err != nil {
			log.Printf("stream: poll failed: %v", err)
		}
		for _, evt := range events {
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// advance moves a watermark just past an observed stamp, so the next
// inclusive query does not redeliver the boundary event. Never moves
// backwards.
func advance(watermark, stamp time.Time) time.Time {
	next := stamp.Add(time.Microsecond)
	if next.After(watermark) {
		return next
	}
	return watermark
}
