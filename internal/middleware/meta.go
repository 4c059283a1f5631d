package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/juan-barragan/oraccio/pkg/middleware/requestid"
)

const requestStartKey = "request_start"

// WithResponseMeta stamps each request with its start time for ExtractMeta.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(requestStartKey, time.Now())
		c.Next()
	}
}

// ExtractMeta returns the response meta for the current request, or nil when
// WithResponseMeta did not run.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	value, exists := c.Get(requestStartKey)
	if !exists {
		return nil
	}
	start, ok := value.(time.Time)
	if !ok {
		return nil
	}
	meta := map[string]interface{}{
		"processing_time_ms": time.Since(start).Milliseconds(),
	}
	if id := requestid.Value(c); id != "" {
		meta["request_id"] = id
	}
	return meta
}
