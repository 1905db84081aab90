package middleware

import (
	"errors"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SilentLogger logs requests but ignores "broken pipe" errors caused by client disconnects.
// Time sample posts are logged at debug level since hosts send them many times per second.
func SilentLogger(quietPaths ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		for _, e := range c.Errors {
			if isDisconnect(e.Err) {
				return
			}
		}

		if query != "" {
			path = path + "?" + query
		}

		level := slog.LevelInfo
		for _, q := range quietPaths {
			if strings.HasSuffix(c.FullPath(), q) {
				level = slog.LevelDebug
				break
			}
		}

		slog.Log(c.Request.Context(), level, "http",
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"ip", c.ClientIP(),
			"method", c.Request.Method,
			"path", path,
		)
	}
}

func isDisconnect(err error) bool {
	var ne *net.OpError
	if !errors.As(err, &ne) {
		return false
	}
	var se *os.SyscallError
	if !errors.As(ne.Err, &se) {
		return false
	}
	msg := strings.ToLower(se.Error())
	return strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer")
}
