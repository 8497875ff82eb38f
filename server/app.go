package server

import (
	"fmt"
	"io"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"xpostr-proxy/config"
	"xpostr-proxy/core"
	"xpostr-proxy/core/adapter"
	"xpostr-proxy/models"
)

// App 组装好的应用：引擎 + 需要在退出时关闭的资源
type App struct {
	Config     *config.Config
	Engine     *gin.Engine
	Logger     *logrus.Logger
	Dispatcher *core.Dispatcher

	requestLog *core.AsyncRequestLogger
	closers    []io.Closer
}

// New 根据配置组装所有依赖
func New(cfg *config.Config) (*App, error) {
	log, logCloser, err := NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, Logger: log}
	if logCloser != nil {
		app.closers = append(app.closers, logCloser)
	}

	var registry *prometheus.Registry
	var metrics *core.Metrics
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = core.NewMetrics(registry)
	}

	upstream := adapter.NewOpenRouterClient(adapter.OpenRouterConfig{
		Endpoint: cfg.Upstream.Endpoint,
		Referer:  cfg.Upstream.Referer,
		Title:    cfg.Upstream.Title,
	}, core.NewHTTPClient())

	app.Dispatcher = core.NewDispatcher(upstream, log, core.DispatcherOptions{
		DefaultModel:             cfg.Upstream.DefaultModel,
		SystemPrompt:             cfg.Upstream.SystemPrompt,
		AttemptTimeout:           cfg.Dispatch.AttemptTimeout,
		Strategy:                 core.StrategyByName(cfg.Dispatch.Strategy),
		FailFastOnInvalidRequest: cfg.Dispatch.FailFastOnInvalidRequest,
		Metrics:                  metrics,
	})

	if cfg.Log.RequestLogDB != "" {
		db, err := openRequestLogDB(cfg.Log.RequestLogDB)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.requestLog = core.NewAsyncRequestLogger(db, log, cfg.Log.RetainRows)
		log.Infof("Request log enabled: %s (retain %d)", cfg.Log.RequestLogDB, cfg.Log.RetainRows)
	}

	if cfg.Credentials.Empty() {
		log.Warn("No OpenRouter credentials configured; set OPENROUTER_KEYS or OPENROUTER_KEY")
	} else {
		log.Infof("Loaded %d credentials (profile: %s, key order: %s)", cfg.Credentials.Len(), cfg.Profile, cfg.Dispatch.Strategy)
	}

	app.Engine = NewEngine(Dependencies{
		Config:     cfg,
		Dispatcher: app.Dispatcher,
		Logger:     log,
		RequestLog: app.requestLog,
		Registry:   registry,
	})
	return app, nil
}

// Close 刷新请求日志并关闭日志文件
func (a *App) Close() {
	if a.requestLog != nil {
		a.requestLog.Close()
	}
	for _, c := range a.closers {
		c.Close()
	}
}

// NewLogger 按配置创建 logrus 日志器；配置了 LOG_FILE 时同时写 stdout 和轮转文件
func NewLogger(cfg config.LogConfig) (*logrus.Logger, io.Closer, error) {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Format == "text" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	if cfg.File == "" {
		log.SetOutput(os.Stdout)
		return log, nil, nil
	}

	rotator, err := core.NewLogRotator(cfg.File, cfg.MaxSizeMB)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rotator))
	return log, rotator, nil
}

// openRequestLogDB 打开请求日志库 - 只记录错误，不打印 SQL 语句
func openRequestLogDB(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect request log database: %w", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate request log database: %w", err)
	}
	return db, nil
}
