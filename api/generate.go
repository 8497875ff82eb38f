// Package handler 是 Serverless 入口（Vercel Go runtime 要求导出 Handler）
package handler

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"xpostr-proxy/config"
	"xpostr-proxy/models"
	"xpostr-proxy/server"
)

var (
	once    sync.Once
	app     *server.App
	initErr error
)

// Handler 每个冷启动只组装一次应用，之后复用同一个引擎
func Handler(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		app, initErr = build(config.Load)
	})
	serve(w, r, app, initErr)
}

func build(load func() (*config.Config, error)) (*server.App, error) {
	gin.SetMode(gin.ReleaseMode)

	cfg, err := load()
	if err != nil {
		return nil, err
	}
	// 函数实例随时可能被冻结，异步请求日志来不及落盘
	cfg.Log.RequestLogDB = ""
	cfg.Log.File = ""

	return server.New(cfg)
}

func serve(w http.ResponseWriter, r *http.Request, a *server.App, err error) {
	if err != nil {
		writeConfigError(w, r, err)
		return
	}
	a.Engine.ServeHTTP(w, r)
}

// writeConfigError 配置加载失败时仍然带上 CORS 头，浏览器才能读到错误
func writeConfigError(w http.ResponseWriter, r *http.Request, err error) {
	defaults := config.Defaults(config.ProfileVercel).Server
	w.Header().Set("Access-Control-Allow-Origin", defaults.AllowOrigin)
	w.Header().Set("Access-Control-Allow-Methods", defaults.AllowMethods)
	w.Header().Set("Access-Control-Allow-Headers", defaults.AllowHeaders)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(models.NewErrorResponse("Server configuration error: " + err.Error()))
}
