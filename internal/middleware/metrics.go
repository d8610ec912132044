package middleware

import (
	"strconv"
	"time"

	"github.com/SergeiKhy/shortify/internal/metrics"
	"github.com/gin-gonic/gin"
)

// Metrics снимает латентность запросов; метка route содержит шаблон маршрута, а не сырой путь
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		metrics.HTTPRequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
