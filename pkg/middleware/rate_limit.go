package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/gogotex/gonotes/pkg/metrics"
)

// limiterKey prefers the authenticated editor (NAT-friendly per-user limits)
// and falls back to the client IP.
func limiterKey(c *gin.Context) string {
	if ed := Editor(c); ed != "" {
		return "editor:" + ed
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}

// RateLimitMiddleware returns a Gin middleware enforcing an in-memory
// token-bucket per key. rps = allowed events per second, burst = maximum
// tokens in bucket. Each middleware instance has its own buckets.
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	var limiters sync.Map // map[string]*rate.Limiter
	return func(c *gin.Context) {
		v, _ := limiters.LoadOrStore(limiterKey(c), rate.NewLimiter(rate.Limit(rps), burst))
		if !v.(*rate.Limiter).Allow() {
			c.Header("Retry-After", "1")
			metrics.RateLimitRejected.WithLabelValues("memory").Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("memory").Inc()
		c.Next()
	}
}
