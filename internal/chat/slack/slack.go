// Package slack posts board events to a Slack channel.
package slack

import (
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"
	"github.com/crewdeck/crewdeck/internal/chat"
)

// client abstracts the Slack API methods we use, enabling test mocks.
type client interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Notifier implements chat.Notifier for Slack.
type Notifier struct {
	client  client
	channel string
}

// Opts holds parameters for creating a Slack Notifier.
type Opts struct {
	BotToken string // xoxb-... Slack bot token
	Channel  string // channel to post to, e.g. "#approvals"
	// For testing: inject a mock client instead of the real Slack API.
	Client client
}

// New creates a Slack Notifier.
func New(opts Opts) (*Notifier, error) {
	if opts.Channel == "" {
		return nil, fmt.Errorf("slack: channel is required")
	}
	c := opts.Client
	if c == nil {
		if opts.BotToken == "" {
			return nil, fmt.Errorf("slack: bot token is required")
		}
		c = slackapi.New(opts.BotToken)
	}
	return &Notifier{client: c, channel: opts.Channel}, nil
}

// Platform returns "slack".
func (n *Notifier) Platform() string { return "slack" }

// Post delivers an event as an attachment with severity color and fields.
func (n *Notifier) Post(ctx context.Context, evt chat.Event) error {
	fields := make([]slackapi.AttachmentField, len(evt.Fields))
	for i, f := range evt.Fields {
		fields[i] = slackapi.AttachmentField{Title: f.Name, Value: f.Value, Short: true}
	}
	attachment := slackapi.Attachment{
		Title:  evt.Title,
		Text:   evt.Body,
		Color:  chat.SeverityColor(evt.Severity),
		Fields: fields,
	}
	_, _, err := n.client.PostMessageContext(ctx, n.channel,
		slackapi.MsgOptionAttachments(attachment))
	if err != nil {
		return fmt.Errorf("slack: post to %s: %w", n.channel, err)
	}
	return nil
}
