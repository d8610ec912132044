package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/SergeiKhy/shortify/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	serviceName        = "shortify"
	healthCheckTimeout = 2 * time.Second
)

// Pinger зависимость, доступность которой проверяет health check (Postgres, Redis)
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	deps     map[string]Pinger
	recorder service.ClickRecorder
	logger   *zap.Logger
}

func NewHealthHandler(deps map[string]Pinger, recorder service.ClickRecorder, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		deps:     deps,
		recorder: recorder,
		logger:   logger,
	}
}

type HealthResponse struct {
	Status     string              `json:"status"`
	Service    string              `json:"service"`
	Checks     map[string]string   `json:"checks,omitempty"`
	ClickQueue *service.QueueStats `json:"click_queue,omitempty"`
}

// HealthCheck godoc
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /api/v1/health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:  "ok",
		Service: serviceName,
	}

	if len(h.deps) > 0 {
		resp.Checks = make(map[string]string, len(h.deps))
	}
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			h.logger.Warn("Health check failed", zap.String("dependency", name), zap.Error(err))
			resp.Checks[name] = "unavailable"
			resp.Status = "degraded"
			continue
		}
		resp.Checks[name] = "ok"
	}

	if h.recorder != nil {
		stats := h.recorder.QueueStats()
		resp.ClickQueue = &stats
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}
