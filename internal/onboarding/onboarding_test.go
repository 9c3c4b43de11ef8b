package onboarding

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/crewdeck/crewdeck/internal/gateway"
	"github.com/crewdeck/crewdeck/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Board{}, &models.Gateway{}, &models.OnboardingSession{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

type mockGateway struct {
	ensured  []string
	sent     []string
	history  any
	sendErr  error
	histErr  error
	lastCfg  gateway.Config
	lastSend string
}

func (m *mockGateway) EnsureSession(_ context.Context, cfg gateway.Config, sessionKey, _ string) error {
	m.lastCfg = cfg
	m.ensured = append(m.ensured, sessionKey)
	return nil
}

func (m *mockGateway) SendMessage(_ context.Context, cfg gateway.Config, sessionKey, message string, _ bool) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.lastCfg = cfg
	m.sent = append(m.sent, sessionKey)
	m.lastSend = message
	return nil
}

func (m *mockGateway) ChatHistory(_ context.Context, _ gateway.Config, _ string) (any, error) {
	return m.history, m.histErr
}

func seedBoard(t *testing.T, db *gorm.DB, withGateway bool) *models.Board {
	t.Helper()
	board := &models.Board{ID: "b1", Name: "Launch Prep"}
	if withGateway {
		gw := models.Gateway{ID: "gw1", URL: "http://gateway.local", Token: "secret"}
		if err := db.Create(&gw).Error; err != nil {
			t.Fatalf("seed gateway: %v", err)
		}
		board.GatewayID = &gw.ID
	}
	if err := db.Create(board).Error; err != nil {
		t.Fatalf("seed board: %v", err)
	}
	return board
}

func TestStart_CreatesSession(t *testing.T) {
	db := testDB(t)
	board := seedBoard(t, db, true)
	gw := &mockGateway{}
	m := &Manager{DB: db, Gateway: gw}

	sess, err := m.Start(context.Background(), board)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if sess.Status != StatusActive {
		t.Errorf("status = %q, want active", sess.Status)
	}
	if sess.SessionKey != SessionPrefix+"b1" {
		t.Errorf("session key = %q", sess.SessionKey)
	}
	if len(gw.ensured) != 1 || len(gw.sent) != 1 {
		t.Errorf("gateway calls = %d ensure, %d send; want 1 each", len(gw.ensured), len(gw.sent))
	}
	if gw.lastCfg.Token != "secret" {
		t.Errorf("gateway config token = %q", gw.lastCfg.Token)
	}

	var transcript []Message
	if err := json.Unmarshal([]byte(sess.Messages), &transcript); err != nil {
		t.Fatalf("decode transcript: %v", err)
	}
	if len(transcript) != 1 || transcript[0].Role != "user" {
		t.Fatalf("transcript = %+v, want single user prompt", transcript)
	}
	if transcript[0].Content != gw.lastSend {
		t.Error("stored prompt differs from sent prompt")
	}
}

func TestStart_ReturnsActiveSession(t *testing.T) {
	db := testDB(t)
	board := seedBoard(t, db, true)
	gw := &mockGateway{}
	m := &Manager{DB: db, Gateway: gw}

	first, err := m.Start(context.Background(), board)
	if err != nil {
		t.Fatalf("first Start: %v", err)
	}
	second, err := m.Start(context.Background(), board)
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("second Start created a new session %s, want %s", second.ID, first.ID)
	}
	if len(gw.sent) != 1 {
		t.Errorf("sends = %d, want 1 (no re-prompt)", len(gw.sent))
	}
}

func TestStart_NoGateway(t *testing.T) {
	db := testDB(t)
	board := seedBoard(t, db, false)
	m := &Manager{DB: db, Gateway: &mockGateway{}}

	if _, err := m.Start(context.Background(), board); err != ErrNoGateway {
		t.Fatalf("err = %v, want ErrNoGateway", err)
	}
}

func TestAnswer_RecordsReply(t *testing.T) {
	db := testDB(t)
	board := seedBoard(t, db, true)
	gw := &mockGateway{}
	m := &Manager{DB: db, Gateway: gw}
	if _, err := m.Start(context.Background(), board); err != nil {
		t.Fatalf("Start: %v", err)
	}

	gw.history = map[string]any{"messages": []any{
		map[string]any{"role": "assistant", "content": `{"question": "What is the deadline?", "options": []}`},
	}}
	sess, err := m.Answer(context.Background(), board, "Ship the beta", "")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if sess.Status != StatusActive {
		t.Errorf("status = %q, want still active", sess.Status)
	}
	if gw.lastSend != "Ship the beta" {
		t.Errorf("sent = %q", gw.lastSend)
	}

	var transcript []Message
	if err := json.Unmarshal([]byte(sess.Messages), &transcript); err != nil {
		t.Fatalf("decode transcript: %v", err)
	}
	if len(transcript) != 3 {
		t.Fatalf("transcript length = %d, want 3 (prompt, answer, reply)", len(transcript))
	}
	if transcript[2].Role != "assistant" {
		t.Errorf("last role = %q, want assistant", transcript[2].Role)
	}
}

func TestAnswer_OtherTextAppended(t *testing.T) {
	db := testDB(t)
	board := seedBoard(t, db, true)
	gw := &mockGateway{}
	m := &Manager{DB: db, Gateway: gw}
	if _, err := m.Start(context.Background(), board); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := m.Answer(context.Background(), board, "Other", "ship a mobile app"); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if gw.lastSend != "Other: ship a mobile app" {
		t.Errorf("sent = %q", gw.lastSend)
	}
}

func TestAnswer_CompletesOnGoalProposal(t *testing.T) {
	db := testDB(t)
	board := seedBoard(t, db, true)
	gw := &mockGateway{}
	m := &Manager{DB: db, Gateway: gw}
	if _, err := m.Start(context.Background(), board); err != nil {
		t.Fatalf("Start: %v", err)
	}

	gw.history = []any{
		map[string]any{"role": "assistant", "content": "Here is my proposal:\n```json\n" +
			`{"status": "complete", "board_type": "goal", "objective": "Ship the beta"}` + "\n```"},
	}
	sess, err := m.Answer(context.Background(), board, "done", "")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if sess.Status != StatusCompleted {
		t.Errorf("status = %q, want completed", sess.Status)
	}
	var draft map[string]any
	if err := json.Unmarshal([]byte(sess.DraftGoal), &draft); err != nil {
		t.Fatalf("decode draft: %v", err)
	}
	if draft["objective"] != "Ship the beta" {
		t.Errorf("draft objective = %v", draft["objective"])
	}
}

func TestAnswer_NoSession(t *testing.T) {
	db := testDB(t)
	board := seedBoard(t, db, true)
	m := &Manager{DB: db, Gateway: &mockGateway{}}

	if _, err := m.Answer(context.Background(), board, "hi", ""); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestConfirm_WritesGoal(t *testing.T) {
	db := testDB(t)
	board := seedBoard(t, db, true)
	gw := &mockGateway{}
	m := &Manager{DB: db, Gateway: gw}
	if _, err := m.Start(context.Background(), board); err != nil {
		t.Fatalf("Start: %v", err)
	}

	target := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	got, err := m.Confirm(board, ConfirmInput{
		BoardType:      "goal",
		Objective:      "Ship the beta",
		SuccessMetrics: `{"signups": 100}`,
		TargetDate:     &target,
	})
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if !got.GoalConfirmed || got.GoalSource != "lead_agent_onboarding" {
		t.Errorf("board = confirmed %v source %q", got.GoalConfirmed, got.GoalSource)
	}

	var sess models.OnboardingSession
	if err := db.Where("board_id = ?", board.ID).First(&sess).Error; err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if sess.Status != StatusConfirmed {
		t.Errorf("session status = %q, want confirmed", sess.Status)
	}

	var reloaded models.Board
	if err := db.First(&reloaded, "id = ?", board.ID).Error; err != nil {
		t.Fatalf("reload board: %v", err)
	}
	if reloaded.Objective != "Ship the beta" {
		t.Errorf("objective = %q", reloaded.Objective)
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{name: "bare object", text: `{"status": "complete"}`, want: "complete", ok: true},
		{name: "padded object", text: "  {\"status\": \"complete\"}\n", want: "complete", ok: true},
		{name: "fenced json", text: "reply:\n```json\n{\"status\": \"complete\"}\n```", want: "complete", ok: true},
		{name: "fenced plain", text: "```\n{\"status\": \"complete\"}\n```", want: "complete", ok: true},
		{name: "embedded braces", text: `I think {"status": "complete"} works`, want: "complete", ok: true},
		{name: "no json", text: "just prose, no structure", ok: false},
		{name: "broken json", text: `{"status": `, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, ok := ExtractJSON(tt.text)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && obj["status"] != tt.want {
				t.Errorf("status = %v, want %q", obj["status"], tt.want)
			}
		})
	}
}

func TestAssistantMessages(t *testing.T) {
	history := map[string]any{"messages": []any{
		map[string]any{"role": "user", "content": "hello"},
		map[string]any{"role": "assistant", "content": "plain text"},
		map[string]any{"role": "assistant", "content": []any{
			map[string]any{"type": "image"},
			map[string]any{"type": "text", "text": "from blocks"},
		}},
		map[string]any{"role": "assistant", "content": map[string]any{"text": "from object"}},
		"not a message",
	}}
	got := AssistantMessages(history)
	want := []string{"plain text", "from blocks", "from object"}
	if len(got) != len(want) {
		t.Fatalf("messages = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if msgs := AssistantMessages("not json at all"); msgs != nil {
		t.Errorf("non-list history = %v, want nil", msgs)
	}
}
