package server

import (
	"net/http"
	"strconv"

	"github.com/crewdeck/crewdeck/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type createTaskInput struct {
	Title           string  `json:"title" binding:"required"`
	Description     string  `json:"description"`
	Status          string  `json:"status"`
	AssignedAgentID *string `json:"assigned_agent_id"`
}

func handleCreateTask(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		board, ok := boardOr404(c, db)
		if !ok {
			return
		}
		var in createTaskInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		task := models.Task{
			ID:              uuid.NewString(),
			BoardID:         board.ID,
			Title:           in.Title,
			Description:     in.Description,
			Status:          in.Status,
			AssignedAgentID: in.AssignedAgentID,
		}
		if task.Status == "" {
			task.Status = "todo"
		}
		if err := db.Create(&task).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "create task failed"})
			return
		}
		c.JSON(http.StatusCreated, task)
	}
}

// handleListTasks lists a board's tasks newest first, optionally filtered
// by status or assigned agent. Each filter combination rides one of the
// composite indexes on the tasks table.
func handleListTasks(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		board, ok := boardOr404(c, db)
		if !ok {
			return
		}
		limit, offset := pageParams(c)
		query := db.Where("board_id = ?", board.ID)
		if status := c.Query("status"); status != "" {
			query = query.Where("status = ?", status)
		}
		if agentID := c.Query("assigned_agent_id"); agentID != "" {
			query = query.Where("assigned_agent_id = ?", agentID)
		}
		var tasks []models.Task
		if err := query.Order("created_at DESC").
			Limit(limit).Offset(offset).
			Find(&tasks).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "list tasks failed"})
			return
		}
		c.JSON(http.StatusOK, tasks)
	}
}

// pageParams reads limit/offset query parameters, defaulting to 50 and
// capping at 200.
func pageParams(c *gin.Context) (limit, offset int) {
	limit = 50
	if v, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil && v > 0 {
		limit = v
	}
	if limit > 200 {
		limit = 200
	}
	if v, err := strconv.Atoi(c.DefaultQuery("offset", "0")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}
