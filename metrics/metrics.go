package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "glebamap_requests_total",
		Help: "Total number of API requests by route and status",
	}, []string{"route", "method", "status"})
	RequestDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "glebamap_request_duration_ms",
		Help:    "Request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
	}, []string{"route"})
	GlebaChangesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "glebamap_gleba_changes_total",
		Help: "Persisted gleba changes by operation",
	}, []string{"op"})
	ImportedFeaturesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "glebamap_imported_features_total",
		Help: "Features imported by source format",
	}, []string{"format"})
	ExportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "glebamap_exports_total",
		Help: "Exports served by format",
	}, []string{"format"})
	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "glebamap_cache_hits_total",
		Help: "Feature collection cache hits",
	})
	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "glebamap_cache_misses_total",
		Help: "Feature collection cache misses",
	})
	SyncCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "glebamap_sync_calls_total",
		Help: "Outbound sync client calls by operation and result",
	}, []string{"op", "result"})
	SyncDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "glebamap_sync_duration_ms",
		Help:    "Outbound sync client call duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
	}, []string{"op"})
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDurationMs)
	prometheus.MustRegister(GlebaChangesTotal)
	prometheus.MustRegister(ImportedFeaturesTotal)
	prometheus.MustRegister(ExportsTotal)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(SyncCallsTotal)
	prometheus.MustRegister(SyncDurationMs)
}

// Handler 暴露 /metrics
func Handler() http.Handler { return promhttp.Handler() }

// Middleware 按路由模板统计请求数与耗时
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		RequestsTotal.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		RequestDurationMs.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
	}
}
