package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sero-sim/scene-engine/internal/observability"
)

// Logger logs HTTP requests and counts them per route template
func Logger(metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveHTTP(route, statusCode)

		// The SSE stream is long-lived; its latency is not meaningful
		if route == "/api/v1/context/stream" {
			return
		}
		if raw != "" {
			path = path + "?" + raw
		}

		log.Printf("[%s] %s %s %d %v %s",
			c.Request.Method,
			path,
			c.ClientIP(),
			statusCode,
			latency,
			c.Errors.String(),
		)
	}
}
