package server

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"xpostr-proxy/config"
	"xpostr-proxy/core"
)

// Generator 由 *core.Dispatcher 实现，测试里可以替换
type Generator interface {
	Dispatch(ctx context.Context, req core.GenerationRequest, pool core.CredentialPool) (*core.DispatchResult, error)
}

// Dependencies 引擎依赖；RequestLog 和 Registry 可以为 nil
type Dependencies struct {
	Config     *config.Config
	Dispatcher Generator
	Logger     *logrus.Logger
	RequestLog *core.AsyncRequestLogger
	Registry   *prometheus.Registry
}

// NewEngine 创建 gin 引擎
// 除 /health 和 metrics 外，所有路径都进入生成接口
func NewEngine(deps Dependencies) *gin.Engine {
	engine := gin.New()
	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false

	engine.Use(gin.RecoveryWithWriter(deps.Logger.Writer()))
	engine.Use(requestIDMiddleware())
	engine.Use(corsMiddleware(deps.Config.Server))
	engine.Use(requestLoggerMiddleware(deps.Logger, deps.RequestLog))

	if deps.Config.Limit.RPS > 0 {
		limiter := NewIPRateLimiter(rate.Limit(deps.Config.Limit.RPS), deps.Config.Limit.Burst)
		engine.Use(rateLimitMiddleware(limiter, deps.Logger))
	}

	engine.GET("/health", handleHealth(deps.Config))
	if deps.Registry != nil && deps.Config.Metrics.Path != "" {
		engine.GET(deps.Config.Metrics.Path, gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
	}

	engine.NoRoute(handleGenerate(deps))
	return engine
}
