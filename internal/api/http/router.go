package http

import (
	"github.com/AlexRider935/catalyst-server/internal/agents"
	"github.com/AlexRider935/catalyst-server/internal/api/http/handler"
	"github.com/AlexRider935/catalyst-server/internal/api/http/middleware"
	"github.com/AlexRider935/catalyst-server/internal/ingestion"
	"github.com/AlexRider935/catalyst-server/internal/monitor"
	"github.com/gin-gonic/gin"
)

type Services struct {
	Agents   *agents.Service
	Ingestor *ingestion.Service
	Monitor  *monitor.Monitor
}

func SetupRoute(engine *gin.Engine, srvs *Services) {
	engine.Use(middleware.RequestLogger())

	healthHandler := handler.NewHealthHandler()
	engine.GET("/health", healthHandler.Check)

	agentsHandler := handler.NewAgentsHandler(srvs.Agents)
	ingestionHandler := handler.NewIngestionHandler(srvs.Ingestor)
	monitorHandler := handler.NewMonitorHandler(srvs.Monitor, srvs.Monitor.InstantThreshold())

	agentRoutes := engine.Group("/agents")
	{
		agentRoutes.POST("/token", agentsHandler.GenerateToken)
		agentRoutes.POST("/register", agentsHandler.Register)
		agentRoutes.POST("/heartbeat", middleware.BearerCredential(), agentsHandler.Heartbeat)
		agentRoutes.POST("/check-status", monitorHandler.CheckStatus)
		agentRoutes.GET("/config", middleware.BearerCredential(), agentsHandler.GetConfig)

		agentRoutes.GET("", agentsHandler.List)
		agentRoutes.GET("/:id", agentsHandler.Get)
		agentRoutes.DELETE("/:id", agentsHandler.Delete)
		agentRoutes.PUT("/:id/config", agentsHandler.UpdateConfig)
		agentRoutes.GET("/:id/events", agentsHandler.Events)
	}

	engine.POST("/ingestion/logs", middleware.BearerCredential(), ingestionHandler.IngestLogs)
}
