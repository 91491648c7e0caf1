// internal/api/router.go
package api

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/manchai/scene-director/internal/config"
	"github.com/manchai/scene-director/internal/di"
	"github.com/manchai/scene-director/internal/services"
)

// SetupRouter 配置HTTP路由
// 只从容器获取服务，不再创建新实例
func SetupRouter() (*gin.Engine, error) {
	cfg := config.GetCurrentConfig()

	container := di.GetContainer()

	turnService, ok := container.Get("turn").(*services.TurnService)
	if !ok {
		return nil, fmt.Errorf("turn service not initialized")
	}

	memoryService, ok := container.Get("memory").(*services.MemoryService)
	if !ok {
		return nil, fmt.Errorf("memory service not initialized")
	}

	llmService, ok := container.Get("llm").(*services.LLMService)
	if !ok {
		return nil, fmt.Errorf("llm service not initialized")
	}

	hub, ok := container.Get("hub").(*SessionHub)
	if !ok {
		return nil, fmt.Errorf("session hub not initialized")
	}

	handler := NewHandler(turnService, memoryService, llmService, hub)

	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	// 启用CORS
	r.Use(corsMiddleware())

	// 合成的音频片段
	r.Static("/audio", filepath.Join(cfg.DataDir, "audio"))

	// 状态页
	r.GET("/", handler.Status)

	// WebSocket 支持
	r.GET("/ws/scene/:session_id", handler.SceneWebSocket)

	api := r.Group("/api")
	{
		// ===============================
		// 场景轮次相关路由
		// ===============================
		sceneGroup := api.Group("/scene")
		{
			sceneGroup.POST("/turn", handler.DirectorTurn)
			sceneGroup.DELETE("/session/:session_id", handler.ClearSession)
			sceneGroup.GET("/session/:session_id/context", handler.GetSessionContext)
		}

		// ===============================
		// LLM状态路由
		// ===============================
		api.GET("/llm/status", handler.GetLLMStatus)

		// 调试路由
		api.GET("/ws/status", handler.GetWebSocketStatus)
	}

	return r, nil
}

// corsMiddleware 实现跨域资源共享
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
