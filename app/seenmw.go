// app/seenmw.go
package app

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type SeenToucher interface {
	TouchUserSeen(ctx context.Context, userID string) error
}

// TouchLastSeen records activity at most once per throttle window per user.
func TouchLastSeen(users SeenToucher, rdb *redis.Client, throttle time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := CurrentUserID(c)
		if uid == "" {
			c.Next()
			return
		}

		key := "ts:user:lastseen:" + uid
		if ok, _ := rdb.SetNX(c.Request.Context(), key, "1", throttle).Result(); ok {
			_ = users.TouchUserSeen(c.Request.Context(), uid) // 忽略错误，不阻塞请求
		}
		c.Next()
	}
}
