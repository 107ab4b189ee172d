package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Riboost-Studio/restorank-print-bridge/internal/model"
	"github.com/Riboost-Studio/restorank-print-bridge/internal/observability"
)

const requestIDHeader = "X-Request-ID"

// RequestID tags each request with a correlation id, reusing the caller's
// X-Request-ID when present.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = observability.NewCorrelationID()
		}
		c.Set(string(model.ContextRequestID), id)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), model.ContextRequestID, id))
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// AccessLog writes one structured line per request.
func AccessLog(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := logger.Info()
		if status >= 500 {
			event = logger.Error()
		} else if status >= 400 {
			event = logger.Warn()
		}
		event.
			Str("request_id", model.StringFromContext(c.Request.Context(), model.ContextRequestID)).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("Request handled")
	}
}
