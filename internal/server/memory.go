package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/crewdeck/crewdeck/internal/models"
	"github.com/crewdeck/crewdeck/internal/stream"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type createMemoryInput struct {
	Content string   `json:"content" binding:"required"`
	Tags    []string `json:"tags"`
	Source  string   `json:"source"`
}

func handleListMemory(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		board, ok := boardOr404(c, db)
		if !ok {
			return
		}
		limit, offset := pageParams(c)
		var memories []models.BoardMemory
		if err := db.Where("board_id = ?", board.ID).
			Order("created_at DESC").
			Limit(limit).Offset(offset).
			Find(&memories).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "list memory failed"})
			return
		}
		c.JSON(http.StatusOK, memories)
	}
}

func handleCreateMemory(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		board, ok := boardOr404(c, db)
		if !ok {
			return
		}
		var in createMemoryInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		memory := models.BoardMemory{
			ID:      uuid.NewString(),
			BoardID: board.ID,
			Content: in.Content,
			Source:  in.Source,
		}
		if len(in.Tags) > 0 {
			raw, err := json.Marshal(in.Tags)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"message": "invalid tags"})
				return
			}
			memory.Tags = string(raw)
		}
		if err := db.Create(&memory).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "create memory failed"})
			return
		}
		c.JSON(http.StatusCreated, memory)
	}
}

func handleMemoryStream(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		board, ok := boardOr404(c, db)
		if !ok {
			return
		}
		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()
		events := stream.MemoryEvents(ctx, db, board.ID, c.Query("since"))
		streamSSE(c, events)
	}
}
