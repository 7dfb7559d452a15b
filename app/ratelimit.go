package app

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"
)

// limiterIdle is how long a client's limiter is kept after its last request.
const limiterIdle = 3 * time.Minute

// RateLimit allows each client IP rps requests per second with the given burst.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	clients := ttlcache.New[string, *rate.Limiter](
		ttlcache.WithTTL[string, *rate.Limiter](limiterIdle),
	)
	go clients.Start()

	var mu sync.Mutex
	limiterFor := func(ip string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		if item := clients.Get(ip); item != nil {
			return item.Value()
		}
		l := rate.NewLimiter(rate.Limit(rps), burst)
		clients.Set(ip, l, ttlcache.DefaultTTL)
		return l
	}

	return func(c *gin.Context) {
		if !limiterFor(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
