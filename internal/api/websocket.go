// internal/api/websocket.go
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/manchai/scene-director/internal/models"
	"github.com/manchai/scene-director/internal/utils"
)

// WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 在生产环境中应该进行更严格的检查
		return true
	},
}

// SessionClient 表示一个订阅会话更新的 WebSocket 客户端
type SessionClient struct {
	conn      *websocket.Conn
	sessionID string
	send      chan []byte
	closed    int32 // 原子操作标志，0=开启，1=关闭
}

// Close 安全关闭客户端：关闭send通道让写循环退出，再断开连接
// 只能在hub的写锁内调用，保证不与持读锁的广播并发
func (client *SessionClient) Close() {
	if atomic.CompareAndSwapInt32(&client.closed, 0, 1) {
		close(client.send)
		client.conn.Close()
	}
}

// IsClosed 检查连接是否已关闭
func (client *SessionClient) IsClosed() bool {
	return atomic.LoadInt32(&client.closed) == 1
}

// SessionHub 管理按会话分组的 WebSocket 连接，
// 实现 services.TurnObserver：每轮完成后向该会话的订阅者推送结果
type SessionHub struct {
	mutex   sync.RWMutex
	clients map[string]map[*SessionClient]bool // sessionID -> clients
}

// NewSessionHub 创建会话推送中心
func NewSessionHub() *SessionHub {
	return &SessionHub{
		clients: make(map[string]map[*SessionClient]bool),
	}
}

// OnTurnCompleted 实现 services.TurnObserver
// 发送是非阻塞的：发不进去的慢客户端直接断开，不拖累轮次。
// 发送在读锁内进行，注销时在写锁内关闭通道，二者互斥
func (h *SessionHub) OnTurnCompleted(sessionID string, state *models.SceneState, newLines []models.Line) {
	message, err := json.Marshal(gin.H{
		"type":       "turn",
		"sceneState": state,
		"newLines":   newLines,
	})
	if err != nil {
		return
	}

	var stale []*SessionClient

	h.mutex.RLock()
	for client := range h.clients[sessionID] {
		if client.IsClosed() {
			continue
		}
		select {
		case client.send <- message:
		default:
			stale = append(stale, client)
		}
	}
	h.mutex.RUnlock()

	for _, client := range stale {
		h.unregister(client)
	}
}

// HandleSceneSocket 升级连接并订阅指定会话
func (h *SessionHub) HandleSceneSocket(c *gin.Context) {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.GetLogger().Errorf("websocket upgrade failed: %v", err)
		return
	}

	client := &SessionClient{
		conn:      conn,
		sessionID: sessionID,
		send:      make(chan []byte, 32),
	}

	h.register(client)

	go h.writeLoop(client)
	go h.readLoop(client)
}

// Status 连接统计（调试用）
func (h *SessionHub) Status() map[string]int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	status := make(map[string]int, len(h.clients))
	for sessionID, clients := range h.clients {
		status[sessionID] = len(clients)
	}
	return status
}

func (h *SessionHub) register(client *SessionClient) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.clients[client.sessionID] == nil {
		h.clients[client.sessionID] = make(map[*SessionClient]bool)
	}
	h.clients[client.sessionID][client] = true
}

// unregister 把客户端移出分组并关闭它，可重复调用
func (h *SessionHub) unregister(client *SessionClient) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if clients, exists := h.clients[client.sessionID]; exists {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.clients, client.sessionID)
		}
	}
	client.Close()
}

// writeLoop 把推送消息写到连接上
// send通道被注销方关闭时循环结束，goroutine随之退出
func (h *SessionHub) writeLoop(client *SessionClient) {
	defer h.unregister(client)

	for message := range client.send {
		if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	client.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readLoop 只用来感知客户端断开，入站消息一律丢弃
func (h *SessionHub) readLoop(client *SessionClient) {
	defer h.unregister(client)

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}
