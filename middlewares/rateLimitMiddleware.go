package middlewares

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/homerly/rental_backend/config"
)

// RateLimitMiddleware allows limit requests per client IP per minute using a
// fixed redis window. Without redis, or with limit <= 0, every request passes.
func RateLimitMiddleware(limit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit <= 0 {
			c.Next()
			return
		}
		window := time.Now().UTC().Truncate(time.Minute).Unix()
		key := "RateLimit:" + c.ClientIP() + ":" + time.Unix(window, 0).UTC().Format("200601021504")
		n, err := config.IncrRedisWindow(c.Request.Context(), key, time.Minute)
		if err != nil {
			config.GetLogger().WithField("client_ip", c.ClientIP()).Warn("rate limiter unavailable: ", err)
			c.Next()
			return
		}
		if n > int64(limit) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
