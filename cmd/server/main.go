// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/manchai/scene-director/internal/api"
	"github.com/manchai/scene-director/internal/app"
	"github.com/manchai/scene-director/internal/config"
	"github.com/manchai/scene-director/internal/utils"
)

func main() {
	log.Println("starting scene-director server...")

	// 1. 初始化配置系统
	if err := config.InitConfig(); err != nil {
		log.Fatalf("failed to initialize config: %v", err)
	}
	cfg := config.GetCurrentConfig()
	log.Printf("config loaded, port: %s", cfg.Port)

	// 2. 初始化日志
	if err := utils.InitLogger(filepath.Join(cfg.LogDir, "scene-director.log")); err != nil {
		log.Printf("warning: failed to initialize log file: %v", err)
	}

	// 3. 初始化所有服务（按依赖顺序）
	if err := app.InitServices(); err != nil {
		log.Fatalf("failed to initialize services: %v", err)
	}
	log.Println("all services initialized")

	// 4. 设置路由（只获取服务，不创建）
	router, err := api.SetupRouter()
	if err != nil {
		log.Fatalf("failed to set up router: %v", err)
	}

	// 5. 启动服务器
	log.Printf("server listening on http://localhost:%s", cfg.Port)
	setupGracefulShutdown(router, cfg.Port)
}

// setupGracefulShutdown 优雅关闭
func setupGracefulShutdown(router *gin.Engine, port string) {
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// 在新的 goroutine 中启动服务器
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	// 等待中断信号以进行优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}

	log.Println("server stopped cleanly")
}
