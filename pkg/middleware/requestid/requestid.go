// Package requestid correlates log lines and responses of one request.
package requestid

import (
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Header carries the request ID in both directions.
const Header = "X-Request-ID"

const contextKey = "request_id"

// Proxies in front of the API forward their own trace IDs; anything outside
// this shape is replaced.
var validID = regexp.MustCompile(`^[A-Za-z0-9._:-]{8,64}$`)

// Middleware keeps a well-formed caller X-Request-ID or assigns a UUID, and
// echoes it back.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(Header)
		if !validID.MatchString(reqID) {
			reqID = uuid.NewString()
		}

		c.Set(contextKey, reqID)
		c.Writer.Header().Set(Header, reqID)

		c.Next()
	}
}

// Value returns the request ID stored in the gin context.
func Value(c *gin.Context) string {
	return c.GetString(contextKey)
}
