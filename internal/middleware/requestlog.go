package middleware

import (
  "time"

  "github.com/gin-gonic/gin"
  "github.com/yungbote/storygen-backend/internal/pkg/logger"
)

// RequestLogger logs one line per completed request. Generation endpoints
// hold their connection open for the whole run, so duration there reflects
// stream length rather than handler overhead.
func RequestLogger(baseLog *logger.Logger) gin.HandlerFunc {
  log := baseLog.With("component", "http")
  return func(c *gin.Context) {
    start := time.Now()
    c.Next()

    fields := []any{
      "method", c.Request.Method,
      "path", c.FullPath(),
      "status", c.Writer.Status(),
      "duration", time.Since(start),
    }
    if len(c.Errors) > 0 {
      fields = append(fields, "errors", c.Errors.String())
    }
    if c.Writer.Status() >= 500 {
      log.Error("request failed", fields...)
      return
    }
    log.Info("request complete", fields...)
  }
}
