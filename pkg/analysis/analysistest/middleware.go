package analysistest

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader carries the client's request id.
const RequestIDHeader = "X-Request-ID"

// requestID echoes the client's request id, or assigns one, so submissions can be
// correlated with client logs.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}

		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)

		c.Next()
	}
}
