package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	mu       sync.Mutex
	lastSeen time.Time
}

// RateLimit provides token-bucket rate limiting per client: the authenticated
// operator when Auth ran first, otherwise the client IP. r is requests per
// second, b the burst. Stale buckets are swept until ctx is done.
func RateLimit(ctx context.Context, r rate.Limit, b int) gin.HandlerFunc {
	limiters := &sync.Map{}

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				cutoff := now.Add(-10 * time.Minute)
				limiters.Range(func(k, v interface{}) bool {
					cl := v.(*clientLimiter)
					cl.mu.Lock()
					stale := cl.lastSeen.Before(cutoff)
					cl.mu.Unlock()
					if stale {
						limiters.Delete(k)
					}
					return true
				})
			}
		}
	}()

	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if id := GetOperatorID(c); id != 0 {
			key = "op:" + strconv.FormatInt(id, 10)
		}
		v, _ := limiters.LoadOrStore(key, &clientLimiter{limiter: rate.NewLimiter(r, b)})
		cl := v.(*clientLimiter)
		cl.mu.Lock()
		cl.lastSeen = time.Now()
		cl.mu.Unlock()

		if !cl.limiter.Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
