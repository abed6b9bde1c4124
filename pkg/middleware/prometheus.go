package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/docvault/pkg/metrics"
)

// PrometheusMiddleware 按方法与路径累计请求数和耗时直方图.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		metrics.RequestCounter.WithLabelValues(method, path).Inc()

		duration := time.Since(start).Seconds()
		metrics.RequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}
