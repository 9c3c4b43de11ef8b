package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// registerRoutes sets up all API routes on the gin router. Admin routes
// accept only the configured admin token; actor routes also accept agent
// tokens, with agents confined to their own board.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	db := opts.DB

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	admin := requireAuth(db, opts.AdminToken, false)
	actor := requireAuth(db, opts.AdminToken, true)

	// Gateways and boards are operator-managed.
	router.POST("/gateways", admin, handleCreateGateway(db))
	router.GET("/gateways", admin, handleListGateways(db))
	router.POST("/boards", admin, handleCreateBoard(db))
	router.GET("/boards", admin, handleListBoards(db))
	router.GET("/boards/:board_id", actor, handleGetBoard(db))

	// Agents.
	router.POST("/boards/:board_id/agents", admin, handleCreateAgent(db))
	router.GET("/boards/:board_id/agents", actor, handleListAgents(db))
	router.POST("/agents/:agent_id/heartbeat", actor, handleAgentHeartbeat(db))

	// Tasks.
	router.POST("/boards/:board_id/tasks", actor, handleCreateTask(db))
	router.GET("/boards/:board_id/tasks", actor, handleListTasks(db))

	// Approvals.
	router.GET("/boards/:board_id/approvals", actor, handleListApprovals(db))
	router.POST("/boards/:board_id/approvals", actor, handleCreateApproval(db))
	router.PATCH("/boards/:board_id/approvals/:approval_id", admin, handleUpdateApproval(db, opts.Notifier))
	router.GET("/boards/:board_id/approvals/stream", actor, handleApprovalStream(db))

	// Board memory.
	router.GET("/boards/:board_id/memory", actor, handleListMemory(db))
	router.POST("/boards/:board_id/memory", actor, handleCreateMemory(db))
	router.GET("/boards/:board_id/memory/stream", actor, handleMemoryStream(db))

	// Activity log.
	router.GET("/boards/:board_id/activity", actor, handleListActivity(db))

	// Onboarding wizard.
	if opts.Onboarding != nil {
		router.GET("/boards/:board_id/onboarding", admin, handleGetOnboarding(db, opts.Onboarding))
		router.POST("/boards/:board_id/onboarding/start", admin, handleStartOnboarding(db, opts.Onboarding))
		router.POST("/boards/:board_id/onboarding/answer", admin, handleAnswerOnboarding(db, opts.Onboarding))
		router.POST("/boards/:board_id/onboarding/confirm", admin, handleConfirmOnboarding(db, opts.Onboarding))
	}
}
