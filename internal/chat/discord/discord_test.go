package discord

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/crewdeck/crewdeck/internal/chat"
)

// mockSession records ChannelMessageSendEmbed calls.
type mockSession struct {
	calls   int
	channel string
	embed   *discordgo.MessageEmbed
	err     error
}

func (m *mockSession) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.calls++
	m.channel = channelID
	m.embed = embed
	return nil, m.err
}

func TestNew_RequiresChannelID(t *testing.T) {
	_, err := New(Opts{BotToken: "x"})
	if err == nil {
		t.Fatal("expected error for missing channel id")
	}
}

func TestPost_SendsEmbed(t *testing.T) {
	mock := &mockSession{}
	n, err := New(Opts{ChannelID: "123", Session: mock})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	evt := chat.Event{
		Title:    "Approval resolved: deploy",
		Severity: "success",
		Fields:   []chat.Field{{Name: "Board", Value: "Launch"}},
	}
	if err := n.Post(context.Background(), evt); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if mock.calls != 1 || mock.channel != "123" {
		t.Errorf("calls = %d channel = %q", mock.calls, mock.channel)
	}
	if mock.embed.Title != "Approval resolved: deploy" {
		t.Errorf("embed title = %q", mock.embed.Title)
	}
	if mock.embed.Color != 0x36a64f {
		t.Errorf("embed color = %#x, want 0x36a64f", mock.embed.Color)
	}
}

func TestPost_WrapsError(t *testing.T) {
	mock := &mockSession{err: errors.New("forbidden")}
	n, _ := New(Opts{ChannelID: "123", Session: mock})
	if err := n.Post(context.Background(), chat.Event{Title: "x"}); err == nil {
		t.Fatal("expected error from Post")
	}
}

func TestHexColor(t *testing.T) {
	if got := hexColor("#36a64f"); got != 0x36a64f {
		t.Errorf("hexColor = %#x, want 0x36a64f", got)
	}
	if got := hexColor("bogus"); got != 0 {
		t.Errorf("hexColor(bogus) = %d, want 0", got)
	}
}
