package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/SergeiKhy/shortify/internal/metrics"
	"github.com/SergeiKhy/shortify/internal/middleware"
	"github.com/SergeiKhy/shortify/internal/models"
	"github.com/SergeiKhy/shortify/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type LinkHandler struct {
	links    service.LinkService
	recorder service.ClickRecorder
	baseURL  string
	logger   *zap.Logger
}

func NewLinkHandler(links service.LinkService, recorder service.ClickRecorder, baseURL string, logger *zap.Logger) *LinkHandler {
	return &LinkHandler{
		links:    links,
		recorder: recorder,
		baseURL:  baseURL,
		logger:   logger,
	}
}

type CreateLinkRequest struct {
	OriginalURL string `json:"original_url" form:"original_url"`
}

type LinkResponse struct {
	ID          int64     `json:"id"`
	ShortCode   string    `json:"short_code"`
	ShortURL    string    `json:"short_url"`
	OriginalURL string    `json:"original_url"`
	CreatedAt   time.Time `json:"created_at"`
	ClicksCount int64     `json:"clicks_count"`
}

type LinkListResponse struct {
	Links    []LinkResponse `json:"links"`
	Total    int64          `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (h *LinkHandler) toResponse(c *gin.Context, link *models.Link) LinkResponse {
	return LinkResponse{
		ID:          link.ID,
		ShortCode:   link.ShortCode,
		ShortURL:    shortURL(c, h.baseURL, link.ShortCode),
		OriginalURL: link.OriginalURL,
		CreatedAt:   link.CreatedAt,
		ClicksCount: link.ClicksCount,
	}
}

// CreateLink godoc
// @Summary Create a short link
// @Description Returns the existing short link when the URL was already shortened
// @Tags links
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Param request body CreateLinkRequest true "Link creation request"
// @Success 200 {object} LinkResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/links [post]
func (h *LinkHandler) CreateLink(c *gin.Context) {
	var req CreateLinkRequest
	if err := c.ShouldBind(&req); err != nil {
		h.logger.Warn("Invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Request body must contain original_url",
		})
		return
	}

	link, err := h.links.CreateOrGet(c.Request.Context(), req.OriginalURL)
	if err != nil {
		var vErr *service.ValidationError
		switch {
		case errors.As(err, &vErr):
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_url",
				Message: vErr.Reason,
			})
		case errors.Is(err, service.ErrAllocationExhausted):
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "allocation_exhausted",
				Message: "Could not allocate a short code, try again later",
			})
		default:
			h.logger.Error("Failed to create link", zap.Error(err))
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "internal_error",
				Message: "Failed to create link",
			})
		}
		return
	}

	c.JSON(http.StatusOK, h.toResponse(c, link))
}

// Redirect godoc
// @Summary Redirect to original URL
// @Description Redirect to the original URL by short code; the click is recorded in the background
// @Tags links
// @Param code path string true "Short code"
// @Success 302
// @Failure 404 {object} ErrorResponse
// @Router /{code} [get]
func (h *LinkHandler) Redirect(c *gin.Context) {
	code := c.Param("code")

	link, err := h.links.Resolve(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, service.ErrLinkNotFound) {
			metrics.Redirects.WithLabelValues("not_found").Inc()
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Link not found",
			})
			return
		}

		metrics.Redirects.WithLabelValues("error").Inc()
		h.logger.Error("Failed to resolve link", zap.String("short_code", code), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to resolve link",
		})
		return
	}

	// Запись клика уходит в worker pool, редирект её не ждёт
	h.recorder.Enqueue(link, service.MetadataFromRequest(c.Request))

	metrics.Redirects.WithLabelValues("found").Inc()
	c.Redirect(http.StatusFound, link.OriginalURL)
}

// GetLink godoc
// @Summary Get a short link
// @Tags admin
// @Produce json
// @Param code path string true "Short code"
// @Success 200 {object} LinkResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/links/{code} [get]
func (h *LinkHandler) GetLink(c *gin.Context) {
	code := c.Param("code")

	link, err := h.links.Resolve(c.Request.Context(), code)
	if err != nil {
		respondLookupError(c, h.logger, code, err)
		return
	}

	c.JSON(http.StatusOK, h.toResponse(c, link))
}

// DeleteLink godoc
// @Summary Delete a short link
// @Description Delete a shortened URL together with its clicks
// @Tags admin
// @Produce json
// @Param code path string true "Short code"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/links/{code} [delete]
func (h *LinkHandler) DeleteLink(c *gin.Context) {
	code := c.Param("code")

	if err := h.links.DeleteLink(c.Request.Context(), code); err != nil {
		respondLookupError(c, h.logger, code, err)
		return
	}

	h.logger.Info("Link deleted by admin",
		zap.String("short_code", code),
		zap.String("api_key_name", middleware.APIKeyName(c)),
	)
	c.JSON(http.StatusOK, gin.H{"message": "Link deleted successfully"})
}

// ListLinks godoc
// @Summary List short links
// @Tags admin
// @Produce json
// @Param search query string false "Substring of original URL or short code"
// @Param created_from query string false "RFC3339 timestamp or YYYY-MM-DD"
// @Param created_to query string false "RFC3339 timestamp or YYYY-MM-DD"
// @Param min_clicks query int false "Minimum clicks"
// @Param sort query string false "-created_at, created_at, -clicks_count, clicks_count"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(20)
// @Success 200 {object} LinkListResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/links [get]
func (h *LinkHandler) ListLinks(c *gin.Context) {
	q := newQueryParser(c)
	filter := models.LinkFilter{
		Search:      c.Query("search"),
		CreatedFrom: q.timeParam("created_from", false),
		CreatedTo:   q.timeParam("created_to", true),
		MinClicks:   q.int64Param("min_clicks"),
		Sort:        c.Query("sort"),
	}
	page := q.intOr("page", 1)
	pageSize := q.intOr("page_size", models.DefaultPageSize)
	if q.failed(c) {
		return
	}

	result, err := h.links.ListLinks(c.Request.Context(), filter, page, pageSize)
	if err != nil {
		h.logger.Error("Failed to list links", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to list links",
		})
		return
	}

	resp := LinkListResponse{
		Links:    make([]LinkResponse, 0, len(result.Links)),
		Total:    result.Total,
		Page:     result.Page,
		PageSize: result.PageSize,
	}
	for i := range result.Links {
		resp.Links = append(resp.Links, h.toResponse(c, &result.Links[i]))
	}

	c.JSON(http.StatusOK, resp)
}

// respondLookupError отвечает 404 для неизвестного кода и 500 для остального
func respondLookupError(c *gin.Context, logger *zap.Logger, code string, err error) {
	if errors.Is(err, service.ErrLinkNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Link not found",
		})
		return
	}

	logger.Error("Link lookup failed", zap.String("short_code", code), zap.Error(err))
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "Internal server error",
	})
}
