package app

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"toolsharer/jsonlog"

	"github.com/gin-gonic/gin"
)

// RequestLogger writes one INFO entry per request once the handler chain is done.
func RequestLogger(logger *jsonlog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		props := map[string]string{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   strconv.Itoa(c.Writer.Status()),
			"duration": time.Since(start).String(),
			"ip":       c.ClientIP(),
		}
		if uid := c.GetString(userIDKey); uid != "" {
			props["user_id"] = uid
		}
		if len(c.Errors) > 0 {
			props["errors"] = c.Errors.String()
		}
		logger.PrintInfo("request", props)
	}
}

func recoverWith(logger *jsonlog.Logger) gin.RecoveryFunc {
	return func(c *gin.Context, rec any) {
		logger.PrintError(fmt.Errorf("panic: %v", rec), map[string]string{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		})
		c.Header("Connection", "close")
		c.AbortWithStatusJSON(http.StatusInternalServerError, H{"error": "internal server error"})
	}
}
