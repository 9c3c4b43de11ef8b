package server

import (
	"net/http"

	"github.com/crewdeck/crewdeck/internal/activity"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func handleListActivity(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		board, ok := boardOr404(c, db)
		if !ok {
			return
		}
		limit, offset := pageParams(c)
		events, err := activity.List(db, board.ID, limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "list activity failed"})
			return
		}
		c.JSON(http.StatusOK, events)
	}
}
