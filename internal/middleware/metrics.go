package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/juan-barragan/oraccio/internal/service"
)

// unmatchedRoute labels requests no route matched, so scanners cannot blow
// up the path label set.
const unmatchedRoute = "unmatched"

// Metrics observes every request under its route template. A nil service
// disables it.
func Metrics(metrics *service.MetricsService) gin.HandlerFunc {
	if metrics == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		metrics.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
