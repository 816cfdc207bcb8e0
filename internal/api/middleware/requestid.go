package middleware

import (
	"math/rand"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
)

// RequestID attaches a ULID request id to the context and response headers.
// An incoming X-Request-ID is honored so ids survive proxy hops.
func RequestID() gin.HandlerFunc {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}
