// Package gateway is the HTTP client for the outbound agent gateway. The
// gateway's protocol is treated as opaque: JSON requests in, JSON bodies
// out, errors reported as text.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultTimeout = 10 * time.Second

// Config identifies one gateway endpoint.
type Config struct {
	URL   string
	Token string
}

// Error is a failure reported by the gateway or the transport to it.
type Error struct {
	Op     string
	Status int
	Detail string
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("gateway: %s: status %d: %s", e.Op, e.Status, e.Detail)
	}
	return fmt.Sprintf("gateway: %s: %s", e.Op, e.Detail)
}

// Client talks to an agent gateway.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a gateway client with the default timeout.
func NewClient() *Client {
	return &Client{httpClient: &http.Client{Timeout: defaultTimeout}}
}

// NewClientWithHTTP creates a gateway client around an existing HTTP
// client. Used by tests.
func NewClientWithHTTP(hc *http.Client) *Client {
	return &Client{httpClient: hc}
}

// EnsureSession creates or revives a gateway session for the given key.
func (c *Client) EnsureSession(ctx context.Context, cfg Config, sessionKey, label string) error {
	body := map[string]any{"session_key": sessionKey, "label": label}
	_, err := c.post(ctx, cfg, "/v1/sessions", "ensure session", body)
	return err
}

// SendMessage delivers a message into a gateway session. deliver=false
// queues the message without requesting immediate dispatch confirmation.
func (c *Client) SendMessage(ctx context.Context, cfg Config, sessionKey, message string, deliver bool) error {
	body := map[string]any{
		"session_key": sessionKey,
		"message":     message,
		"deliver":     deliver,
	}
	_, err := c.post(ctx, cfg, "/v1/messages", "send message", body)
	return err
}

// ChatHistory fetches the decoded JSON chat history of a session. The
// shape is gateway-defined; callers scrape what they need leniently.
func (c *Client) ChatHistory(ctx context.Context, cfg Config, sessionKey string) (any, error) {
	endpoint, err := joinURL(cfg.URL, "/v1/sessions/"+url.PathEscape(sessionKey)+"/history")
	if err != nil {
		return nil, &Error{Op: "chat history", Detail: err.Error()}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &Error{Op: "chat history", Detail: err.Error()}
	}
	return c.do(req, cfg, "chat history")
}

func (c *Client) post(ctx context.Context, cfg Config, path, op string, body map[string]any) (any, error) {
	endpoint, err := joinURL(cfg.URL, path)
	if err != nil {
		return nil, &Error{Op: op, Detail: err.Error()}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &Error{Op: op, Detail: err.Error()}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &Error{Op: op, Detail: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, cfg, op)
}

func (c *Client) do(req *http.Request, cfg Config, op string) (any, error) {
	if cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Op: op, Detail: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &Error{Op: op, Status: resp.StatusCode, Detail: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{Op: op, Status: resp.StatusCode, Detail: string(raw)}
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		// Not all gateway responses are JSON; tolerate plain bodies.
		return string(raw), nil
	}
	return decoded, nil
}

func joinURL(base, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid gateway url %q", base)
	}
	return u.JoinPath(path).String(), nil
}
