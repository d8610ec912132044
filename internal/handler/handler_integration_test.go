package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/SergeiKhy/shortify/internal/handler"
	"github.com/SergeiKhy/shortify/internal/middleware"
	"github.com/SergeiKhy/shortify/internal/models"
	"github.com/SergeiKhy/shortify/internal/repository"
	"github.com/SergeiKhy/shortify/internal/service"
	"github.com/SergeiKhy/shortify/internal/testutils"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// TestIntegration_ShortenRedirectAnalytics полный путь через Postgres и Redis
func TestIntegration_ShortenRedirectAnalytics(t *testing.T) {
	env := testutils.SetupTestEnvironment(t)
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t)

	linkRepo := repository.NewLinkRepository(env.DB)
	clickRepo := repository.NewClickRepository(env.DB)

	recorder := service.NewClickRecorder(clickRepo, service.ClickRecorderConfig{Workers: 4, BufferSize: 100}, logger)
	recorder.Start()
	t.Cleanup(recorder.Stop)

	router := handler.NewRouter(handler.RouterDeps{
		Links:     service.NewLinkService(linkRepo, repository.NewCacheRepository(env.Redis), logger),
		Analytics: service.NewAnalyticsService(linkRepo, clickRepo, logger),
		Recorder:  recorder,
		Auth:      middleware.NewAPIKeyAuth(map[string]string{testAPIKey: "tests"}, logger),
		Health:    map[string]handler.Pinger{"postgres": env.DB, "redis": env.Redis},
		BaseURL:   "https://sho.rt",
		Logger:    logger,
	})
	do := func(req *http.Request) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	// Параллельное сокращение одного URL даёт одну строку и один код
	const parallel = 10
	codes := make([]string, parallel)
	var wg sync.WaitGroup
	for i := 0; i < parallel; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w := do(jsonRequest("https://example.com/launch"))
			if assert.Equal(t, http.StatusOK, w.Code) {
				var resp handler.LinkResponse
				assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				codes[i] = resp.ShortCode
			}
		}(i)
	}
	wg.Wait()

	code := codes[0]
	for _, c := range codes {
		assert.Equal(t, code, c)
	}
	var rows int64
	require.NoError(t, env.DB.Pool.QueryRow(context.Background(), `SELECT COUNT(*) FROM links`).Scan(&rows))
	assert.Equal(t, int64(1), rows)

	// Редирект и запись клика
	req := httptest.NewRequest("GET", "/"+code+"?utm_source=newsletter", nil)
	req.Header.Set("Referer", "https://news.example.org/")
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	w := do(req)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://example.com/launch", w.Header().Get("Location"))

	w = do(httptest.NewRequest("GET", "/zzzzzz", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	recorder.Stop()

	adminGet := func(target string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", target, nil)
		req.Header.Set("Authorization", "Bearer "+testAPIKey)
		return do(req)
	}

	w = adminGet("/api/v1/links/" + code + "/clicks")
	require.Equal(t, http.StatusOK, w.Code)
	var clicks []models.Click
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &clicks))
	require.Len(t, clicks, 1)
	assert.Equal(t, "newsletter", clicks[0].QueryParams["utm_source"])
	assert.Equal(t, "https://news.example.org/", clicks[0].Referrer)
	assert.Equal(t, "203.0.113.7", clicks[0].IPAddress)

	w = adminGet("/api/v1/links/" + code)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(httptest.NewRequest("GET", "/api/v1/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	// Удаление каскадно убирает клики и инвалидирует кэш
	req = httptest.NewRequest("DELETE", "/api/v1/links/"+code, nil)
	req.Header.Set(middleware.APIKeyHeader, testAPIKey)
	assert.Equal(t, http.StatusOK, do(req).Code)

	assert.Equal(t, http.StatusNotFound, do(httptest.NewRequest("GET", "/"+code, nil)).Code)
	require.NoError(t, env.DB.Pool.QueryRow(context.Background(), `SELECT COUNT(*) FROM clicks`).Scan(&rows))
	assert.Zero(t, rows)
}
