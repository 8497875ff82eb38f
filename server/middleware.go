package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"xpostr-proxy/config"
	"xpostr-proxy/core"
	"xpostr-proxy/models"
)

const (
	requestIDHeader = "X-Request-ID"

	ctxRequestID      = "request_id"
	ctxDispatchResult = "dispatch_result"
	ctxErrorMessage   = "error_message"
)

// requestIDMiddleware 透传调用方的 X-Request-ID，没有则生成一个
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// corsMiddleware CORS中间件，预检请求直接返回 200
func corsMiddleware(cfg config.ServerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.AllowCredential {
			c.Header("Access-Control-Allow-Credentials", "true")
		}
		c.Header("Access-Control-Allow-Origin", cfg.AllowOrigin)
		c.Header("Access-Control-Allow-Methods", cfg.AllowMethods)
		c.Header("Access-Control-Allow-Headers", cfg.AllowHeaders)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}

		c.Next()
	}
}

// requestLoggerMiddleware 请求日志中间件 - 只详细记录错误请求
// 不记录请求体：prompt 属于用户内容
func requestLoggerMiddleware(log *logrus.Logger, asyncLogger *core.AsyncRequestLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		fields := logrus.Fields{
			"request_id": c.GetString(ctxRequestID),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     statusCode,
			"latency":    latency,
			"client_ip":  c.ClientIP(),
		}

		entry := &models.RequestLog{
			CreatedAt:  start,
			RequestID:  c.GetString(ctxRequestID),
			Method:     c.Request.Method,
			Path:       c.Request.URL.Path,
			StatusCode: statusCode,
			Duration:   latency.Milliseconds(),
			IP:         c.ClientIP(),
			ErrorMsg:   c.GetString(ctxErrorMessage),
		}

		if v, ok := c.Get(ctxDispatchResult); ok {
			if result, ok := v.(*core.DispatchResult); ok && result != nil {
				fields["model"] = result.Model
				fields["attempts"] = len(result.Attempts)
				entry.Model = result.Model
				entry.Attempts = len(result.Attempts)
				entry.CredentialSuffix = result.LastCredentialSuffix()
			}
		}
		if entry.ErrorMsg != "" {
			fields["error"] = entry.ErrorMsg
		}

		switch {
		case statusCode >= 500:
			log.WithFields(fields).Error("Server error")
		case statusCode >= 400:
			log.WithFields(fields).Warn("Client error")
		default:
			log.WithFields(fields).Debug("Request processed")
		}

		// OPTIONS 预检和健康检查不入库
		if asyncLogger != nil && c.Request.Method != "OPTIONS" && c.Request.URL.Path != "/health" {
			asyncLogger.Log(entry)
		}
	}
}

// rateLimitMiddleware IP 限流中间件
func rateLimitMiddleware(limiter *IPRateLimiter, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		l := limiter.GetLimiter(clientIP)

		if !l.Allow() {
			log.Warnf("Rate limit exceeded for IP: %s", clientIP)
			c.Header("Retry-After", "1")
			c.Set(ctxErrorMessage, "Too Many Requests")
			c.AbortWithStatusJSON(429, models.NewErrorResponse("Too Many Requests"))
			return
		}

		c.Next()
	}
}
