package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"xpostr-proxy/config"
	"xpostr-proxy/core"
	"xpostr-proxy/models"
)

// handleGenerate 生成接口：POST {prompt, modelId?} -> {content}
func handleGenerate(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			abortWithError(c, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		var req models.GenerateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, http.StatusBadRequest, bindErrorMessage(err))
			return
		}
		if strings.TrimSpace(req.Prompt) == "" {
			abortWithError(c, http.StatusBadRequest, "Prompt is required")
			return
		}

		ctx := c.Request.Context()
		if timeout := deps.Config.Dispatch.Timeout; timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		result, err := deps.Dispatcher.Dispatch(ctx, core.GenerationRequest{
			Prompt:  req.Prompt,
			ModelID: strings.TrimSpace(req.ModelID),
		}, deps.Config.Credentials)
		c.Set(ctxDispatchResult, result)

		if err != nil {
			abortWithError(c, http.StatusInternalServerError, err.Error())
			return
		}

		c.JSON(http.StatusOK, models.GenerateResponse{Content: result.Content})
	}
}

// handleHealth 处理健康检查
func handleHealth(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "healthy"
		if cfg.Credentials.Empty() {
			status = "degraded"
		}
		c.JSON(http.StatusOK, models.HealthResponse{
			Status:      status,
			Profile:     string(cfg.Profile),
			Credentials: cfg.Credentials.Len(),
			Timestamp:   time.Now().Unix(),
		})
	}
}

func abortWithError(c *gin.Context, status int, message string) {
	c.Set(ctxErrorMessage, message)
	c.AbortWithStatusJSON(status, models.NewErrorResponse(message))
}

// bindErrorMessage 把绑定错误翻译成面向客户端的简短信息
func bindErrorMessage(err error) string {
	var ve validator.ValidationErrors
	switch {
	case errors.Is(err, io.EOF):
		return "Request body is required"
	case errors.As(err, &ve):
		return "Prompt is required"
	default:
		return "Invalid JSON body"
	}
}
