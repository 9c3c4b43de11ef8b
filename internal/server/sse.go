package server

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/crewdeck/crewdeck/internal/stream"
	"github.com/gin-gonic/gin"
)

// streamSSE frames events from a poller channel as server-sent events.
// It sends a connected event immediately, pings on the keep-alive
// interval, and returns when the client disconnects or the channel
// closes.
func streamSSE(c *gin.Context, events <-chan stream.Event) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	writeSSE(c.Writer, "connected", map[string]string{"type": "connected"})
	c.Writer.Flush()

	ctx := c.Request.Context()
	ping := time.NewTicker(stream.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			writeSSE(c.Writer, "ping", map[string]string{
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
			c.Writer.Flush()
		case evt, ok := <-events:
			if !ok {
				return
			}
			writeSSE(c.Writer, evt.Name, evt.Data)
			c.Writer.Flush()
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
