// Package middleware содержит gin middleware для логирования запросов.
package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestIDHeader заголовок, в котором возвращается идентификатор запроса
const RequestIDHeader = "X-Request-ID"

// Logging логирует входящие запросы с контекстом
func Logging(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = fmt.Sprintf("%d", start.UnixNano())
		}
		c.Header(RequestIDHeader, requestID)

		c.Next()

		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		}

		if len(c.Errors) > 0 {
			logger.Error("Request completed with error", append(fields, zap.String("errors", c.Errors.String()))...)
			return
		}

		// Пробы опрашиваются часто, держим их на debug
		if c.Request.URL.Path == "/health" || c.Request.URL.Path == "/live" || c.Request.URL.Path == "/ready" {
			logger.Debug("Probe served", fields...)
			return
		}
		logger.Info("Request completed", fields...)
	}
}
