package ginserver

import (
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"listingchat/internal/infra/obs"
)

const (
	callerKey            = "caller_id"
	headerIdempotencyKey = "Idempotency-Key"
)

// RequireCaller reads the caller id set by the upstream auth gateway. No
// authentication happens here.
func RequireCaller() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(obs.HeaderUserID))
		if id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + obs.HeaderUserID + " header"})
			return
		}
		c.Set(callerKey, id)
		c.Next()
	}
}

func caller(c *gin.Context) string {
	return c.GetString(callerKey)
}
