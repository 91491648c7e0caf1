// internal/api/handlers.go
package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	apperrors "github.com/manchai/scene-director/internal/errors"
	"github.com/manchai/scene-director/internal/models"
	"github.com/manchai/scene-director/internal/services"
	"github.com/manchai/scene-director/internal/utils"
)

// Handler 处理API请求
type Handler struct {
	TurnService   *services.TurnService
	MemoryService *services.MemoryService
	LLMService    *services.LLMService
	Hub           *SessionHub
	Response      *ResponseHelper
}

// NewHandler 创建API处理器
func NewHandler(turnService *services.TurnService, memoryService *services.MemoryService, llmService *services.LLMService, hub *SessionHub) *Handler {
	return &Handler{
		TurnService:   turnService,
		MemoryService: memoryService,
		LLMService:    llmService,
		Hub:           hub,
		Response:      NewResponseHelper(),
	}
}

// TurnRequest 一轮请求体
// sceneState缺省表示新场景；sessionId缺省落到default会话
type TurnRequest struct {
	SceneState  *models.SceneState `json:"sceneState"`
	UserCommand string             `json:"userCommand"`
	SessionID   string             `json:"sessionId"`
}

// Status 服务在线状态
func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "Scene Director is Online"})
}

// DirectorTurn 前端调用的主端点：指令进，更新后的场景状态出
// 响应同时带上本轮新生成的行，方便前端增量渲染
func (h *Handler) DirectorTurn(c *gin.Context) {
	var request TurnRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.Response.BadRequest(c, "invalid request body")
		return
	}

	previousCount := 0
	if request.SceneState != nil {
		previousCount = len(request.SceneState.Lines)
	}

	updated, err := h.TurnService.ProcessTurn(c.Request.Context(), request.SceneState, request.UserCommand, request.SessionID)
	if err != nil {
		if apperrors.IsValidationError(err) {
			h.Response.BadRequest(c, err.Error())
			return
		}
		// 不可恢复的轮次失败：对外只给一个笼统错误
		utils.GetLogger().Errorf("turn failed: %v", err)
		h.Response.InternalError(c, "turn processing failed")
		return
	}

	newLines := updated.Lines[previousCount:]

	c.JSON(http.StatusOK, gin.H{
		"sceneState": updated,
		"newLines":   newLines,
	})
}

// ClearSession 清除会话记忆，幂等
func (h *Handler) ClearSession(c *gin.Context) {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		h.Response.BadRequest(c, "session_id is required")
		return
	}

	h.MemoryService.Clear(sessionID)
	h.Response.Success(c, gin.H{"session_id": sessionID}, "session cleared")
}

// GetSessionContext 查看会话的有界上下文窗口（调试和前端恢复用）
func (h *Handler) GetSessionContext(c *gin.Context) {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		h.Response.BadRequest(c, "session_id is required")
		return
	}

	numLines := 5
	if raw := c.Query("lines"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			numLines = parsed
		}
	}

	h.Response.Success(c, gin.H{
		"metadata":    h.MemoryService.Metadata(sessionID),
		"actors":      h.MemoryService.ActorContext(sessionID),
		"recentLines": h.MemoryService.RecentContext(sessionID, numLines),
	})
}

// GetLLMStatus 获取LLM服务的就绪状态
func (h *Handler) GetLLMStatus(c *gin.Context) {
	h.Response.Success(c, gin.H{
		"ready":    h.LLMService.IsReady(),
		"state":    h.LLMService.GetReadyState(),
		"provider": h.LLMService.GetProviderName(),
	})
}

// SceneWebSocket 处理场景 WebSocket 连接
func (h *Handler) SceneWebSocket(c *gin.Context) {
	h.Hub.HandleSceneSocket(c)
}

// GetWebSocketStatus 获取 WebSocket 连接状态（调试用）
func (h *Handler) GetWebSocketStatus(c *gin.Context) {
	h.Response.Success(c, h.Hub.Status())
}
