// Package notify delivers approval resolution notifications to board lead
// agents and mirrors them to configured chat channels. Delivery is
// best-effort: the approval transition that triggered it is already
// committed and is never rolled back by a notification failure.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/crewdeck/crewdeck/internal/activity"
	"github.com/crewdeck/crewdeck/internal/chat"
	"github.com/crewdeck/crewdeck/internal/gateway"
	"github.com/crewdeck/crewdeck/internal/models"
	"github.com/crewdeck/crewdeck/internal/tasklink"
	"gorm.io/gorm"
)

// Sender delivers messages into an agent gateway session. Satisfied by
// *gateway.Client.
type Sender interface {
	SendMessage(ctx context.Context, cfg gateway.Config, sessionKey, message string, deliver bool) error
}

// Notifier wires the resolution side effects together.
type Notifier struct {
	DB     *gorm.DB
	Sender Sender
	Chat   []chat.Notifier
}

// LeadOnResolution informs the board's lead agent that an approval reached
// a terminal status, and records the attempt as an audit event. Boards
// without a lead, a lead session, or a gateway are valid; those paths are
// silent no-ops.
func (n *Notifier) LeadOnResolution(ctx context.Context, boardID, approvalID string) error {
	var board models.Board
	if err := n.DB.First(&board, "id = ?", boardID).Error; err != nil {
		return fmt.Errorf("notify: load board %s: %w", boardID, err)
	}
	var appr models.Approval
	if err := n.DB.First(&appr, "id = ?", approvalID).Error; err != nil {
		return fmt.Errorf("notify: load approval %s: %w", approvalID, err)
	}
	if !appr.Resolved() {
		return nil
	}

	taskIDs, err := resolvedTaskIDs(n.DB, &appr)
	if err != nil {
		return err
	}

	n.mirrorToChat(ctx, &board, &appr, taskIDs)

	lead, err := boardLead(n.DB, boardID)
	if err != nil {
		return err
	}
	if lead == nil || lead.GatewaySessionID == nil || *lead.GatewaySessionID == "" {
		return nil
	}
	cfg, err := gatewayConfigForBoard(n.DB, &board)
	if err != nil {
		return err
	}
	if cfg == nil {
		return nil
	}

	message := ResolutionMessage(&board, &appr, taskIDs)
	sendErr := n.Sender.SendMessage(ctx, *cfg, *lead.GatewaySessionID, message, false)
	if sendErr == nil {
		_, err = activity.Record(n.DB, boardID, activity.EventLeadNotified,
			fmt.Sprintf("Lead agent notified for %s approval %s.", appr.Status, appr.ID),
			activity.RecordOpts{AgentID: &lead.ID, TaskID: appr.TaskID})
	} else {
		_, err = activity.Record(n.DB, boardID, activity.EventLeadNotifyFailed,
			fmt.Sprintf("Lead notify failed for approval %s: %v", appr.ID, sendErr),
			activity.RecordOpts{AgentID: &lead.ID, TaskID: appr.TaskID})
	}
	return err
}

// boardLead returns the agent flagged as the board's lead, nil when the
// board has none. The (board_id, is_board_lead) index backs this lookup.
func boardLead(db *gorm.DB, boardID string) (*models.Agent, error) {
	var lead models.Agent
	err := db.Where("board_id = ? AND is_board_lead = ?", boardID, true).
		First(&lead).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("notify: find lead for board %s: %w", boardID, err)
	}
	return &lead, nil
}

// gatewayConfigForBoard resolves a board's gateway settings, nil when the
// board has no usable gateway configured.
func gatewayConfigForBoard(db *gorm.DB, board *models.Board) (*gateway.Config, error) {
	if board.GatewayID == nil {
		return nil, nil
	}
	var gw models.Gateway
	err := db.First(&gw, "id = ?", *board.GatewayID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("notify: load gateway %s: %w", *board.GatewayID, err)
	}
	if gw.URL == "" {
		return nil, nil
	}
	return &gateway.Config{URL: gw.URL, Token: gw.Token}, nil
}

// resolvedTaskIDs mirrors the read projection rule: link rows first, the
// legacy column as fallback.
func resolvedTaskIDs(db *gorm.DB, appr *models.Approval) ([]string, error) {
	mapping, err := tasklink.LoadTaskIDs(db, []string{appr.ID})
	if err != nil {
		return nil, err
	}
	taskIDs := mapping[appr.ID]
	if len(taskIDs) == 0 && appr.TaskID != nil {
		taskIDs = []string{*appr.TaskID}
	}
	return taskIDs, nil
}

// ResolutionMessage composes the structured message sent to the lead.
func ResolutionMessage(board *models.Board, appr *models.Approval, taskIDs []string) string {
	decision := "rejected"
	if appr.Status == models.ApprovalApproved {
		decision = "approved"
	}
	lines := []string{
		"APPROVAL RESOLVED",
		fmt.Sprintf("Board: %s", board.Name),
		fmt.Sprintf("Approval ID: %s", appr.ID),
		fmt.Sprintf("Action: %s", appr.ActionType),
		fmt.Sprintf("Decision: %s", decision),
		fmt.Sprintf("Confidence: %g", appr.Confidence),
	}
	if len(taskIDs) == 1 {
		lines = append(lines, fmt.Sprintf("Task ID: %s", taskIDs[0]))
	} else if len(taskIDs) > 1 {
		lines = append(lines, fmt.Sprintf("Task IDs: %s", strings.Join(taskIDs, ", ")))
	}
	lines = append(lines, "", "Take action: continue execution using the final approval decision.")
	return strings.Join(lines, "\n")
}

// mirrorToChat posts the resolution to configured chat channels.
func (n *Notifier) mirrorToChat(ctx context.Context, board *models.Board, appr *models.Approval, taskIDs []string) {
	if len(n.Chat) == 0 {
		return
	}
	severity := "warning"
	if appr.Status == models.ApprovalApproved {
		severity = "success"
	}
	fields := []chat.Field{
		{Name: "Board", Value: board.Name},
		{Name: "Decision", Value: appr.Status},
		{Name: "Confidence", Value: fmt.Sprintf("%g", appr.Confidence)},
	}
	if len(taskIDs) > 0 {
		fields = append(fields, chat.Field{Name: "Tasks", Value: strings.Join(taskIDs, ", ")})
	}
	chat.Broadcast(ctx, n.Chat, chat.Event{
		Title:    fmt.Sprintf("Approval resolved: %s", appr.ActionType),
		Body:     fmt.Sprintf("Approval %s on board %s is %s.", appr.ID, board.Name, appr.Status),
		Severity: severity,
		Fields:   fields,
	})
}
