package server

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/crewdeck/crewdeck/internal/approval"
	"github.com/crewdeck/crewdeck/internal/notify"
	"github.com/crewdeck/crewdeck/internal/stream"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const conflictMessage = "Each task can have only one pending approval."

type createApprovalInput struct {
	TaskID       *string        `json:"task_id"`
	TaskIDs      []string       `json:"task_ids"`
	AgentID      *string        `json:"agent_id"`
	ActionType   string         `json:"action_type" binding:"required"`
	Payload      map[string]any `json:"payload"`
	Confidence   float64        `json:"confidence"`
	RubricScores map[string]any `json:"rubric_scores"`
	Status       string         `json:"status"`
}

type updateApprovalInput struct {
	Status       *string        `json:"status"`
	Confidence   *float64       `json:"confidence"`
	Payload      map[string]any `json:"payload"`
	RubricScores map[string]any `json:"rubric_scores"`
}

func handleListApprovals(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		board, ok := boardOr404(c, db)
		if !ok {
			return
		}
		limit, offset := pageParams(c)
		reads, err := approval.List(db, board.ID, c.Query("status"), limit, offset)
		if err != nil {
			renderApprovalError(c, err)
			return
		}
		c.JSON(http.StatusOK, reads)
	}
}

func handleCreateApproval(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		board, ok := boardOr404(c, db)
		if !ok {
			return
		}
		var in createApprovalInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		read, err := approval.Create(db, board.ID, approval.CreateInput{
			TaskID:       in.TaskID,
			TaskIDs:      in.TaskIDs,
			AgentID:      in.AgentID,
			ActionType:   in.ActionType,
			Payload:      in.Payload,
			Confidence:   in.Confidence,
			RubricScores: in.RubricScores,
			Status:       in.Status,
		})
		if err != nil {
			renderApprovalError(c, err)
			return
		}
		c.JSON(http.StatusCreated, read)
	}
}

// handleUpdateApproval applies a status transition. When the approval
// reaches a terminal status, lead notification runs in the background;
// its failures are logged and never surface to the caller.
func handleUpdateApproval(db *gorm.DB, notifier *notify.Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		board, ok := boardOr404(c, db)
		if !ok {
			return
		}
		var in updateApprovalInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		approvalID := c.Param("approval_id")
		read, resolvedNow, err := approval.Update(db, board.ID, approvalID, approval.UpdateInput{
			Status:       in.Status,
			Confidence:   in.Confidence,
			Payload:      in.Payload,
			RubricScores: in.RubricScores,
		})
		if err != nil {
			renderApprovalError(c, err)
			return
		}
		if resolvedNow && notifier != nil {
			boardID := board.ID
			go func() {
				if err := notifier.LeadOnResolution(context.Background(), boardID, approvalID); err != nil {
					log.Printf("server: lead notification for approval %s: %v", approvalID, err)
				}
			}()
		}
		c.JSON(http.StatusOK, read)
	}
}

func handleApprovalStream(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		board, ok := boardOr404(c, db)
		if !ok {
			return
		}
		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()
		events := stream.ApprovalEvents(ctx, db, board.ID, c.Query("since"))
		streamSSE(c, events)
	}
}

// renderApprovalError maps approval package errors onto the HTTP error
// contract.
func renderApprovalError(c *gin.Context, err error) {
	var conflict *approval.ConflictError
	var invalid *approval.ValidationError
	switch {
	case errors.Is(err, approval.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "approval not found"})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{
			"message":   conflictMessage,
			"conflicts": conflict.Conflicts,
		})
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, gin.H{"message": invalid.Error()})
	default:
		log.Printf("server: approval operation: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "approval operation failed"})
	}
}
