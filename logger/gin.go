package logger

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// GinAccess 访问日志中间件：方法、路径、状态、耗时、远端地址
func GinAccess(l *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		l.Debug("http_access",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"bytes", c.Writer.Size(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.ClientIP(),
		)
	}
}
