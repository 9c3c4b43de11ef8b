package server

import (
	"errors"
	"net/http"

	"github.com/crewdeck/crewdeck/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type createGatewayInput struct {
	Name  string `json:"name"`
	URL   string `json:"url" binding:"required"`
	Token string `json:"token"`
}

func handleCreateGateway(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in createGatewayInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		gw := models.Gateway{
			ID:    uuid.NewString(),
			Name:  in.Name,
			URL:   in.URL,
			Token: in.Token,
		}
		if err := db.Create(&gw).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "create gateway failed"})
			return
		}
		c.JSON(http.StatusCreated, gw)
	}
}

func handleListGateways(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var gateways []models.Gateway
		if err := db.Order("created_at DESC").Find(&gateways).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "list gateways failed"})
			return
		}
		c.JSON(http.StatusOK, gateways)
	}
}

type createBoardInput struct {
	Name      string  `json:"name" binding:"required"`
	GatewayID *string `json:"gateway_id"`
	BoardType string  `json:"board_type"`
	Objective string  `json:"objective"`
}

func handleCreateBoard(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in createBoardInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		if in.GatewayID != nil {
			var gw models.Gateway
			err := db.First(&gw, "id = ?", *in.GatewayID).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "gateway not found"})
				return
			}
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"message": "load gateway failed"})
				return
			}
		}
		board := models.Board{
			ID:        uuid.NewString(),
			Name:      in.Name,
			GatewayID: in.GatewayID,
			BoardType: in.BoardType,
			Objective: in.Objective,
		}
		if board.BoardType == "" {
			board.BoardType = "general"
		}
		if err := db.Create(&board).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "create board failed"})
			return
		}
		c.JSON(http.StatusCreated, board)
	}
}

func handleListBoards(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var boards []models.Board
		if err := db.Order("created_at DESC").Find(&boards).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "list boards failed"})
			return
		}
		c.JSON(http.StatusOK, boards)
	}
}

func handleGetBoard(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		board, ok := boardOr404(c, db)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, board)
	}
}
