package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/almufid-api/internal/service"
)

// Metrics returns middleware that records request latency and counts.
// Scrapes of the metrics endpoint itself are not recorded.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil || c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, status, duration)
	}
}
