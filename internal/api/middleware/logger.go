package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Context keys handlers set so the request log can name the notification.
const (
	IngestionIDKey = "ingestion_id"
	FilesKey       = "files"
)

// Logger writes one line per request. Client and server errors are logged
// at warn level with the ingestion id and files the handler saw.
func Logger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		event := logger.Info()
		if status >= http.StatusBadRequest {
			event = logger.Warn()
		}

		event = event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start))

		if id := c.GetString(IngestionIDKey); id != "" {
			event = event.Str("ingestion_id", id)
		}
		if files := c.GetStringSlice(FilesKey); len(files) == 1 {
			event = event.Str("key", files[0])
		} else if len(files) > 1 {
			event = event.Strs("files", files)
		}
		if len(c.Errors) > 0 {
			event = event.Str("error", c.Errors.String())
		}

		event.Msg("request")
	}
}

// Recovery turns a handler panic into a 500 and logs it.
func Recovery(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error().
					Interface("panic", rec).
					Str("path", c.Request.URL.Path).
					Msg("handler panicked")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
		}()
		c.Next()
	}
}
