package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/crewdeck/crewdeck/internal/gateway"
	"github.com/crewdeck/crewdeck/internal/onboarding"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type answerOnboardingInput struct {
	Answer    string `json:"answer" binding:"required"`
	OtherText string `json:"other_text"`
}

type confirmOnboardingInput struct {
	BoardType      string         `json:"board_type" binding:"required"`
	Objective      string         `json:"objective" binding:"required"`
	SuccessMetrics map[string]any `json:"success_metrics"`
	TargetDate     *time.Time     `json:"target_date"`
}

func handleGetOnboarding(db *gorm.DB, mgr *onboarding.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		board, ok := boardOr404(c, db)
		if !ok {
			return
		}
		sess, err := mgr.Latest(board.ID)
		if err != nil {
			renderOnboardingError(c, err)
			return
		}
		c.JSON(http.StatusOK, sess)
	}
}

func handleStartOnboarding(db *gorm.DB, mgr *onboarding.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		board, ok := boardOr404(c, db)
		if !ok {
			return
		}
		sess, err := mgr.Start(c.Request.Context(), board)
		if err != nil {
			renderOnboardingError(c, err)
			return
		}
		c.JSON(http.StatusOK, sess)
	}
}

func handleAnswerOnboarding(db *gorm.DB, mgr *onboarding.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		board, ok := boardOr404(c, db)
		if !ok {
			return
		}
		var in answerOnboardingInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		sess, err := mgr.Answer(c.Request.Context(), board, in.Answer, in.OtherText)
		if err != nil {
			renderOnboardingError(c, err)
			return
		}
		c.JSON(http.StatusOK, sess)
	}
}

func handleConfirmOnboarding(db *gorm.DB, mgr *onboarding.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		board, ok := boardOr404(c, db)
		if !ok {
			return
		}
		var in confirmOnboardingInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		confirmed, err := mgr.Confirm(board, onboarding.ConfirmInput{
			BoardType:      in.BoardType,
			Objective:      in.Objective,
			SuccessMetrics: marshalMetrics(in.SuccessMetrics),
			TargetDate:     in.TargetDate,
		})
		if err != nil {
			renderOnboardingError(c, err)
			return
		}
		c.JSON(http.StatusOK, confirmed)
	}
}

func marshalMetrics(metrics map[string]any) string {
	if len(metrics) == 0 {
		return ""
	}
	raw, err := json.Marshal(metrics)
	if err != nil {
		return ""
	}
	return string(raw)
}

func renderOnboardingError(c *gin.Context, err error) {
	var gwErr *gateway.Error
	switch {
	case errors.Is(err, onboarding.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "no onboarding session"})
	case errors.Is(err, onboarding.ErrNoGateway):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "board has no gateway configured"})
	case errors.As(err, &gwErr):
		c.JSON(http.StatusBadGateway, gin.H{"message": gwErr.Error()})
	default:
		log.Printf("server: onboarding: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "onboarding operation failed"})
	}
}
