package handler

import (
	"github.com/SergeiKhy/shortify/internal/metrics"
	"github.com/SergeiKhy/shortify/internal/middleware"
	"github.com/SergeiKhy/shortify/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouterDeps всё, что нужно роутеру
type RouterDeps struct {
	Links     service.LinkService
	Analytics service.AnalyticsService
	Recorder  service.ClickRecorder
	Auth      *middleware.APIKeyAuth
	Health    map[string]Pinger
	BaseURL   string
	Logger    *zap.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	auth := deps.Auth
	if auth == nil {
		auth = middleware.NewAPIKeyAuth(nil, logger)
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(logger),
		middleware.Metrics(),
	)

	linkHandler := NewLinkHandler(deps.Links, deps.Recorder, deps.BaseURL, logger)
	analyticsHandler := NewAnalyticsHandler(deps.Analytics, logger)
	healthHandler := NewHealthHandler(deps.Health, deps.Recorder, logger)

	router.GET("/metrics", metrics.Handler())

	// API v.1
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthHandler.HealthCheck)
		v1.POST("/links", linkHandler.CreateLink)

		// Административные эндпоинты под API ключом
		admin := v1.Group("", auth.Middleware())
		admin.GET("/links", linkHandler.ListLinks)
		admin.GET("/links/:code", linkHandler.GetLink)
		admin.DELETE("/links/:code", linkHandler.DeleteLink)
		admin.GET("/links/:code/clicks", analyticsHandler.ListClicks)
		admin.GET("/links/:code/stats", analyticsHandler.GetStats)
		admin.GET("/links/:code/stats/daily", analyticsHandler.GetDailyStats)
		admin.GET("/dashboard", analyticsHandler.Dashboard)
	}

	// Редирект (корневой путь) - без API key проверки
	router.GET("/:code", linkHandler.Redirect)

	return router
}
