package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// queryParser разбирает query параметры и запоминает первую ошибку
type queryParser struct {
	c   *gin.Context
	err error
}

func newQueryParser(c *gin.Context) *queryParser {
	return &queryParser{c: c}
}

func (q *queryParser) fail(name, value string) {
	if q.err == nil {
		q.err = fmt.Errorf("invalid value %q for parameter %s", value, name)
	}
}

// timeParam принимает RFC3339 или YYYY-MM-DD; для верхней границы дата без времени включает весь день
func (q *queryParser) timeParam(name string, endOfDay bool) *time.Time {
	value := q.c.Query(name)
	if value == "" {
		return nil
	}

	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t
	}

	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		q.fail(name, value)
		return nil
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t
}

func (q *queryParser) int64Param(name string) *int64 {
	value := q.c.Query(name)
	if value == "" {
		return nil
	}

	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n < 0 {
		q.fail(name, value)
		return nil
	}
	return &n
}

func (q *queryParser) intOr(name string, fallback int) int {
	value := q.c.Query(name)
	if value == "" {
		return fallback
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		q.fail(name, value)
		return fallback
	}
	return n
}

// failed отвечает 400, если какой-то параметр не разобрался
func (q *queryParser) failed(c *gin.Context) bool {
	if q.err == nil {
		return false
	}
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid_query",
		Message: q.err.Error(),
	})
	return true
}

// shortURL строит публичную короткую ссылку: из APP_BASE_URL или из адреса запроса
func shortURL(c *gin.Context, baseURL, code string) string {
	if baseURL != "" {
		return baseURL + "/" + code
	}

	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}
	return scheme + "://" + c.Request.Host + "/" + code
}
