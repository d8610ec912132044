package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	LinksCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shortify_links_created_total",
		Help: "Short links created.",
	})
	LinksDeduplicated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shortify_links_deduplicated_total",
		Help: "Create requests answered with an existing link.",
	})
	CodeCollisions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shortify_code_collisions_total",
		Help: "Generated short codes that were already taken.",
	})
	AllocationExhausted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shortify_allocation_exhausted_total",
		Help: "Create requests that ran out of code allocation attempts.",
	})
	Redirects = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shortify_redirects_total",
		Help: "Redirect requests by result.",
	}, []string{"result"})
	CacheRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shortify_cache_requests_total",
		Help: "Link cache lookups by result.",
	}, []string{"result"})
	ClicksRecorded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shortify_clicks_recorded_total",
		Help: "Clicks persisted.",
	})
	ClicksFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shortify_clicks_failed_total",
		Help: "Clicks that failed to persist.",
	})
	ClicksDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shortify_clicks_dropped_total",
		Help: "Clicks dropped due to full buffer or stopped recorder.",
	})
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shortify_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

func init() {
	prometheus.MustRegister(
		LinksCreated,
		LinksDeduplicated,
		CodeCollisions,
		AllocationExhausted,
		Redirects,
		CacheRequests,
		ClicksRecorded,
		ClicksFailed,
		ClicksDropped,
		HTTPRequestDuration,
	)
}

// Handler отдаёт метрики в формате Prometheus
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
