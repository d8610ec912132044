package handler

import (
	"net/http"

	"github.com/SergeiKhy/shortify/internal/models"
	"github.com/SergeiKhy/shortify/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AnalyticsHandler struct {
	analytics service.AnalyticsService
	logger    *zap.Logger
}

func NewAnalyticsHandler(analytics service.AnalyticsService, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		analytics: analytics,
		logger:    logger,
	}
}

// ListClicks godoc
// @Summary List recent clicks of a short link
// @Tags analytics
// @Produce json
// @Param code path string true "Short code"
// @Param clicked_from query string false "RFC3339 timestamp or YYYY-MM-DD"
// @Param clicked_to query string false "RFC3339 timestamp or YYYY-MM-DD"
// @Param param_key query string false "Query parameter name, e.g. utm_source"
// @Param param_value query string false "Query parameter value"
// @Param limit query int false "Max clicks" default(20)
// @Success 200 {array} models.Click
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/links/{code}/clicks [get]
func (h *AnalyticsHandler) ListClicks(c *gin.Context) {
	code := c.Param("code")

	q := newQueryParser(c)
	filter := models.ClickFilter{
		ClickedFrom: q.timeParam("clicked_from", false),
		ClickedTo:   q.timeParam("clicked_to", true),
		ParamKey:    c.Query("param_key"),
		ParamValue:  c.Query("param_value"),
		Limit:       q.intOr("limit", models.DefaultPageSize),
	}
	if q.failed(c) {
		return
	}

	clicks, err := h.analytics.Clicks(c.Request.Context(), code, filter)
	if err != nil {
		respondLookupError(c, h.logger, code, err)
		return
	}

	c.JSON(http.StatusOK, clicks)
}

// GetStats godoc
// @Summary Get click statistics for a short link
// @Description Get total and unique click counts for a shortened URL
// @Tags analytics
// @Produce json
// @Param code path string true "Short code"
// @Success 200 {object} models.ClickStats
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/links/{code}/stats [get]
func (h *AnalyticsHandler) GetStats(c *gin.Context) {
	code := c.Param("code")

	stats, err := h.analytics.Stats(c.Request.Context(), code)
	if err != nil {
		respondLookupError(c, h.logger, code, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetDailyStats godoc
// @Summary Get daily click statistics
// @Description Get daily click counts for a shortened URL
// @Tags analytics
// @Produce json
// @Param code path string true "Short code"
// @Param days query int false "Number of days (1-90)" default(7)
// @Success 200 {array} models.DailyClickStats
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/links/{code}/stats/daily [get]
func (h *AnalyticsHandler) GetDailyStats(c *gin.Context) {
	code := c.Param("code")

	q := newQueryParser(c)
	days := q.intOr("days", service.DefaultStatsDays)
	if q.failed(c) {
		return
	}

	stats, err := h.analytics.DailyStats(c.Request.Context(), code, days)
	if err != nil {
		respondLookupError(c, h.logger, code, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// Dashboard godoc
// @Summary Overall link and click statistics
// @Tags analytics
// @Produce json
// @Param clicked_from query string false "RFC3339 timestamp or YYYY-MM-DD"
// @Param clicked_to query string false "RFC3339 timestamp or YYYY-MM-DD"
// @Param param_key query string false "Query parameter name"
// @Param param_value query string false "Query parameter value"
// @Param min_clicks query int false "Minimum clicks for top links"
// @Success 200 {object} models.DashboardStats
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/dashboard [get]
func (h *AnalyticsHandler) Dashboard(c *gin.Context) {
	q := newQueryParser(c)
	filter := models.DashboardFilter{
		ClickedFrom: q.timeParam("clicked_from", false),
		ClickedTo:   q.timeParam("clicked_to", true),
		ParamKey:    c.Query("param_key"),
		ParamValue:  c.Query("param_value"),
		MinClicks:   q.int64Param("min_clicks"),
	}
	if q.failed(c) {
		return
	}

	stats, err := h.analytics.Dashboard(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to build dashboard", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to build dashboard",
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}
