package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/integrity-spine/spine/pkg/metrics"
)

// Metrics records every request's method, route, status, and latency.
// c.FullPath() is used over c.Request.URL.Path so templated routes
// (/cubes/:cube_id) don't blow up the route label cardinality per distinct id.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
