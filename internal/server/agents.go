package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/crewdeck/crewdeck/internal/auth"
	"github.com/crewdeck/crewdeck/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type createAgentInput struct {
	Name             string  `json:"name" binding:"required"`
	IsBoardLead      bool    `json:"is_board_lead"`
	GatewaySessionID *string `json:"gateway_session_id"`
}

// handleCreateAgent provisions an agent on a board and issues its API
// token. The token is returned once and only its digest is stored.
func handleCreateAgent(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		board, ok := boardOr404(c, db)
		if !ok {
			return
		}
		var in createAgentInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		token, lookup, digest, err := auth.GenerateToken()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "issue token failed"})
			return
		}
		agent := models.Agent{
			ID:               uuid.NewString(),
			BoardID:          &board.ID,
			Name:             in.Name,
			Status:           "provisioning",
			IsBoardLead:      in.IsBoardLead,
			GatewaySessionID: in.GatewaySessionID,
			TokenLookup:      lookup,
			TokenDigest:      digest,
		}
		if err := db.Create(&agent).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "create agent failed"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"agent": agent, "token": token})
	}
}

func handleListAgents(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		board, ok := boardOr404(c, db)
		if !ok {
			return
		}
		var agents []models.Agent
		if err := db.Where("board_id = ?", board.ID).
			Order("created_at ASC").
			Find(&agents).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "list agents failed"})
			return
		}
		c.JSON(http.StatusOK, agents)
	}
}

type heartbeatInput struct {
	Status string `json:"status"`
}

// handleAgentHeartbeat records liveness. Agents may only beat for
// themselves; the operator may beat for any agent.
func handleAgentHeartbeat(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		agentID := c.Param("agent_id")
		a := currentActor(c)
		if a.agent != nil && a.agent.ID != agentID {
			c.JSON(http.StatusForbidden, gin.H{"message": "agents may only report their own heartbeat"})
			return
		}
		var agent models.Agent
		err := db.First(&agent, "id = ?", agentID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "agent not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "load agent failed"})
			return
		}

		// An empty body is a bare liveness ping.
		var in heartbeatInput
		if err := c.ShouldBindJSON(&in); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		now := time.Now().UTC()
		agent.LastSeenAt = &now
		if in.Status != "" {
			agent.Status = in.Status
		} else if agent.Status == "provisioning" {
			agent.Status = "active"
		}
		if err := db.Save(&agent).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "save agent failed"})
			return
		}
		c.JSON(http.StatusOK, agent)
	}
}
