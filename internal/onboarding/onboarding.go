// Package onboarding runs the lead-agent goal interview for a board.
// The server relays answers into a gateway chat session and scrapes the
// lead's replies for a structured goal proposal.
package onboarding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/crewdeck/crewdeck/internal/gateway"
	"github.com/crewdeck/crewdeck/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SessionPrefix namespaces onboarding chat sessions on the gateway.
const SessionPrefix = "agent:main:onboarding:"

// Session statuses.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusConfirmed = "confirmed"
)

var (
	// ErrNotFound means the board has no onboarding session yet.
	ErrNotFound = errors.New("onboarding: session not found")
	// ErrNoGateway means the board has no usable gateway configured.
	ErrNoGateway = errors.New("onboarding: board has no gateway")
)

// Caller is the slice of the gateway client the interview needs.
type Caller interface {
	EnsureSession(ctx context.Context, cfg gateway.Config, sessionKey, label string) error
	SendMessage(ctx context.Context, cfg gateway.Config, sessionKey, message string, deliver bool) error
	ChatHistory(ctx context.Context, cfg gateway.Config, sessionKey string) (any, error)
}

// Message is one turn of the onboarding transcript.
type Message struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// ConfirmInput is the operator-approved goal written onto the board.
type ConfirmInput struct {
	BoardType      string     `json:"board_type"`
	Objective      string     `json:"objective"`
	SuccessMetrics string     `json:"success_metrics"`
	TargetDate     *time.Time `json:"target_date"`
}

// Manager drives onboarding sessions against the database and gateway.
type Manager struct {
	DB      *gorm.DB
	Gateway Caller
}

// SessionKey returns the gateway session key for a board's interview.
func SessionKey(boardID string) string {
	return SessionPrefix + boardID
}

// Latest returns the board's most recent onboarding session.
func (m *Manager) Latest(boardID string) (*models.OnboardingSession, error) {
	var sess models.OnboardingSession
	err := m.DB.Where("board_id = ?", boardID).
		Order("created_at DESC").
		First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("onboarding: load session: %w", err)
	}
	return &sess, nil
}

// Start begins an interview for the board, or returns the active one if
// an interview is already underway. The opening prompt instructs the
// lead agent on the question format and completion signal.
func (m *Manager) Start(ctx context.Context, board *models.Board) (*models.OnboardingSession, error) {
	var existing models.OnboardingSession
	err := m.DB.Where("board_id = ? AND status = ?", board.ID, StatusActive).
		First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("onboarding: check active session: %w", err)
	}

	cfg, err := m.gatewayConfig(board)
	if err != nil {
		return nil, err
	}
	sessionKey := SessionKey(board.ID)
	prompt := startPrompt(board.Name)

	if err := m.Gateway.EnsureSession(ctx, *cfg, sessionKey, "Onboarding "+board.Name); err != nil {
		return nil, err
	}
	if err := m.Gateway.SendMessage(ctx, *cfg, sessionKey, prompt, true); err != nil {
		return nil, err
	}

	transcript, err := appendMessage("", Message{Role: "user", Content: prompt, Timestamp: stamp()})
	if err != nil {
		return nil, err
	}
	sess := models.OnboardingSession{
		ID:         uuid.NewString(),
		BoardID:    board.ID,
		SessionKey: sessionKey,
		Status:     StatusActive,
		Messages:   transcript,
	}
	if err := m.DB.Create(&sess).Error; err != nil {
		return nil, fmt.Errorf("onboarding: create session: %w", err)
	}
	return &sess, nil
}

// Answer relays the operator's answer to the lead agent and scrapes the
// lead's latest reply. A reply carrying {"status": "complete", ...}
// becomes the session's draft goal and completes the interview.
func (m *Manager) Answer(ctx context.Context, board *models.Board, answer, otherText string) (*models.OnboardingSession, error) {
	sess, err := m.Latest(board.ID)
	if err != nil {
		return nil, err
	}
	cfg, err := m.gatewayConfig(board)
	if err != nil {
		return nil, err
	}

	answerText := answer
	if otherText != "" {
		answerText = answer + ": " + otherText
	}
	transcript, err := appendMessage(sess.Messages, Message{Role: "user", Content: answerText, Timestamp: stamp()})
	if err != nil {
		return nil, err
	}

	if err := m.Gateway.EnsureSession(ctx, *cfg, sess.SessionKey, "Onboarding "+board.Name); err != nil {
		return nil, err
	}
	if err := m.Gateway.SendMessage(ctx, *cfg, sess.SessionKey, answerText, true); err != nil {
		return nil, err
	}
	history, err := m.Gateway.ChatHistory(ctx, *cfg, sess.SessionKey)
	if err != nil {
		return nil, err
	}

	if replies := AssistantMessages(history); len(replies) > 0 {
		last := replies[len(replies)-1]
		transcript, err = appendMessage(transcript, Message{Role: "assistant", Content: last, Timestamp: stamp()})
		if err != nil {
			return nil, err
		}
		if parsed, ok := ExtractJSON(last); ok && parsed["status"] == "complete" {
			draft, err := json.Marshal(parsed)
			if err != nil {
				return nil, fmt.Errorf("onboarding: encode draft goal: %w", err)
			}
			sess.DraftGoal = string(draft)
			sess.Status = StatusCompleted
		}
	}

	sess.Messages = transcript
	sess.UpdatedAt = time.Now().UTC()
	if err := m.DB.Save(sess).Error; err != nil {
		return nil, fmt.Errorf("onboarding: save session: %w", err)
	}
	return sess, nil
}

// Confirm writes the approved goal onto the board and marks the latest
// onboarding session confirmed.
func (m *Manager) Confirm(board *models.Board, in ConfirmInput) (*models.Board, error) {
	sess, err := m.Latest(board.ID)
	if err != nil {
		return nil, err
	}

	board.BoardType = in.BoardType
	board.Objective = in.Objective
	board.SuccessMetrics = in.SuccessMetrics
	board.TargetDate = in.TargetDate
	board.GoalConfirmed = true
	board.GoalSource = "lead_agent_onboarding"

	sess.Status = StatusConfirmed
	sess.UpdatedAt = time.Now().UTC()

	err = m.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(board).Error; err != nil {
			return fmt.Errorf("onboarding: save board: %w", err)
		}
		if err := tx.Save(sess).Error; err != nil {
			return fmt.Errorf("onboarding: save session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return board, nil
}

func (m *Manager) gatewayConfig(board *models.Board) (*gateway.Config, error) {
	if board.GatewayID == nil {
		return nil, ErrNoGateway
	}
	var gw models.Gateway
	err := m.DB.First(&gw, "id = ?", *board.GatewayID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoGateway
	}
	if err != nil {
		return nil, fmt.Errorf("onboarding: load gateway: %w", err)
	}
	if gw.URL == "" {
		return nil, ErrNoGateway
	}
	return &gateway.Config{URL: gw.URL, Token: gw.Token}, nil
}

func startPrompt(boardName string) string {
	return "BOARD ONBOARDING REQUEST\n\n" +
		"Board Name: " + boardName + "\n" +
		"You are the lead agent. Ask the user 3-6 focused questions to clarify their goal.\n" +
		`Return questions as JSON: {"question": "...", "options": [...]}.` + "\n" +
		`When you have enough info, return JSON: {"status": "complete", "board_type": "goal"|"general", ` +
		`"objective": "...", "success_metrics": {...}, "target_date": "YYYY-MM-DD"}.`
}

func stamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func appendMessage(raw string, msg Message) (string, error) {
	var transcript []Message
	if strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &transcript); err != nil {
			return "", fmt.Errorf("onboarding: decode transcript: %w", err)
		}
	}
	transcript = append(transcript, msg)
	out, err := json.Marshal(transcript)
	if err != nil {
		return "", fmt.Errorf("onboarding: encode transcript: %w", err)
	}
	return string(out), nil
}

var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ExtractJSON pulls a JSON object out of free-form agent text. It tries
// the whole text, then a fenced code block, then the widest brace-
// delimited substring.
func ExtractJSON(text string) (map[string]any, bool) {
	if obj, ok := decodeObject(strings.TrimSpace(text)); ok {
		return obj, true
	}
	if match := fencedBlock.FindStringSubmatch(text); match != nil {
		if obj, ok := decodeObject(strings.TrimSpace(match[1])); ok {
			return obj, true
		}
	}
	first := strings.Index(text, "{")
	last := strings.LastIndex(text, "}")
	if first != -1 && last > first {
		if obj, ok := decodeObject(text[first : last+1]); ok {
			return obj, true
		}
	}
	return nil, false
}

func decodeObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, false
	}
	return obj, true
}

// AssistantMessages scrapes assistant-authored text out of a gateway
// chat history of unknown shape.
func AssistantMessages(history any) []string {
	if wrapped, ok := history.(map[string]any); ok {
		history = wrapped["messages"]
	}
	entries, ok := history.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, entry := range entries {
		msg, ok := entry.(map[string]any)
		if !ok || msg["role"] != "assistant" {
			continue
		}
		if text := extractText(msg["content"]); text != "" {
			out = append(out, text)
		}
	}
	return out
}

func extractText(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []any:
		for _, entry := range v {
			part, ok := entry.(map[string]any)
			if !ok || part["type"] != "text" {
				continue
			}
			if text, ok := part["text"].(string); ok {
				return text
			}
		}
	case map[string]any:
		if text, ok := v["text"].(string); ok {
			return text
		}
	}
	return ""
}
