package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/crewdeck/crewdeck/internal/auth"
	"github.com/crewdeck/crewdeck/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const actorContextKey = "crewdeck.actor"

// actor is the authenticated caller: either the operator (admin token)
// or an agent (per-agent API token).
type actor struct {
	admin bool
	agent *models.Agent
}

// requireAuth authenticates the bearer token. The admin token always
// passes; agent tokens pass only when allowAgents is set.
func requireAuth(db *gorm.DB, adminToken string, allowAgents bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "missing bearer token"})
			return
		}
		if auth.VerifyAdminToken(adminToken, token) {
			c.Set(actorContextKey, &actor{admin: true})
			c.Next()
			return
		}
		if allowAgents {
			agent, err := auth.AuthenticateAgent(db, token)
			if err == nil {
				c.Set(actorContextKey, &actor{agent: agent})
				c.Next()
				return
			}
			if !errors.Is(err, auth.ErrInvalidToken) {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "authentication failed"})
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid token"})
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func currentActor(c *gin.Context) *actor {
	if v, ok := c.Get(actorContextKey); ok {
		if a, ok := v.(*actor); ok {
			return a
		}
	}
	return &actor{}
}

// boardOr404 resolves the :board_id path parameter. Agents may only
// reach the board they belong to.
func boardOr404(c *gin.Context, db *gorm.DB) (*models.Board, bool) {
	var board models.Board
	err := db.First(&board, "id = ?", c.Param("board_id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "board not found"})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "load board failed"})
		return nil, false
	}
	a := currentActor(c)
	if a.agent != nil && a.agent.BoardID != nil && *a.agent.BoardID != board.ID {
		c.JSON(http.StatusForbidden, gin.H{"message": "agent is not on this board"})
		return nil, false
	}
	return &board, true
}
