package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"xpostr-proxy/config"
	"xpostr-proxy/core/security"
	"xpostr-proxy/server"
)

func main() {
	// 工具子命令：xpostr-proxy encrypt <key>，输出可写入 OPENROUTER_KEYS 的 enc: 值
	if len(os.Args) > 1 && os.Args[1] == "encrypt" {
		os.Exit(runEncrypt(os.Args[2:]))
	}

	// 🔇 关闭 Gin Debug 模式输出
	gin.SetMode(gin.ReleaseMode)

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatal("Failed to load config: ", err)
	}

	app, err := server.New(cfg)
	if err != nil {
		logrus.Fatal("Failed to initialize app: ", err)
	}
	defer app.Close()
	log := app.Logger

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      app.Engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	go func() {
		log.Infof("Starting xPostr proxy on port %d (profile: %s)", cfg.Server.Port, cfg.Profile)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server: ", err)
		}
	}()

	// 等待中断信号以优雅地关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown: ", err)
		return
	}

	log.Info("Server exited")
}

func runEncrypt(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: xpostr-proxy encrypt <api-key>")
		return 2
	}
	_ = godotenv.Load(".env")

	sp, err := security.NewAESSecretProvider(os.Getenv("CREDENTIAL_SECRET"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "CREDENTIAL_SECRET:", err)
		return 1
	}
	value, err := sp.Encrypt(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println(value)
	return 0
}
