// internal/services/memory_service.go
package services

import (
	"sync"
	"time"

	"github.com/jinzhu/copier"
	"github.com/manchai/scene-director/internal/models"
	"github.com/manchai/scene-director/internal/utils"
)

// MemoryService 按会话保存最近一次的场景状态和台词历史，
// 为规划提供有界的上下文窗口。
// 这里只是未来轮次的上下文缓存，进行中的那一轮以协调器手里的状态为准。
// 只有 Store 会写入；所有读取都返回副本，不会改动存储内容。
type MemoryService struct {
	mu              sync.RWMutex
	sceneStates     map[string]*models.SceneState // sessionID -> 最近状态
	dialogueHistory map[string][]models.Line      // sessionID -> 台词历史的反规范化副本
}

// InteractionRecord 一轮交互的观测记录，只用于日志
type InteractionRecord struct {
	PlanID       string `json:"plan_id"`
	ActionsCount int    `json:"actions_count"`
	Success      bool   `json:"success"`
}

// NewMemoryService 创建会话内存服务
func NewMemoryService() *MemoryService {
	return &MemoryService{
		sceneStates:     make(map[string]*models.SceneState),
		dialogueHistory: make(map[string][]models.Line),
	}
}

// Store 覆盖式记录会话的场景状态，并重建台词历史缓存
// 没有合并语义：后写的完全替换先写的
func (s *MemoryService) Store(sessionID string, state *models.SceneState) error {
	if state == nil {
		return nil
	}

	// 深拷贝，隔离调用方后续对状态的修改
	stored := &models.SceneState{}
	if err := copier.CopyWithOption(stored, state, copier.Option{DeepCopy: true}); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sceneStates[sessionID] = stored
	s.dialogueHistory[sessionID] = append([]models.Line(nil), stored.Lines...)
	return nil
}

// RecentContext 返回会话最近的n条台词（不足n条时返回全部），时间顺序
// 上下文长度由n限定，与场景总长度无关
func (s *MemoryService) RecentContext(sessionID string, n int) []models.Line {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.dialogueHistory[sessionID]
	if n <= 0 || len(history) == 0 {
		return []models.Line{}
	}

	if len(history) > n {
		history = history[len(history)-n:]
	}
	return append([]models.Line(nil), history...)
}

// ActorContext 返回会话最近记录的演员列表，未知会话返回空列表
func (s *MemoryService) ActorContext(sessionID string) []models.Actor {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, exists := s.sceneStates[sessionID]
	if !exists {
		return []models.Actor{}
	}
	return append([]models.Actor(nil), state.Actors...)
}

// Metadata 返回会话的元数据快照
// 未知会话返回固定默认值（Untitled/Drama/Unknown/0），调用方依赖这组默认值
func (s *MemoryService) Metadata(sessionID string) models.SceneMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, exists := s.sceneStates[sessionID]
	if !exists {
		return models.DefaultSceneMetadata()
	}
	return state.Metadata()
}

// RetrieveState 返回会话最近状态的深拷贝，未知会话返回nil
func (s *MemoryService) RetrieveState(sessionID string) *models.SceneState {
	s.mu.RLock()
	state, exists := s.sceneStates[sessionID]
	s.mu.RUnlock()

	if !exists {
		return nil
	}

	snapshot := &models.SceneState{}
	if err := copier.CopyWithOption(snapshot, state, copier.Option{DeepCopy: true}); err != nil {
		return nil
	}
	return snapshot
}

// Clear 清除会话的全部记录，幂等：会话不存在时静默返回
func (s *MemoryService) Clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sceneStates, sessionID)
	delete(s.dialogueHistory, sessionID)
}

// LogInteraction 记录一轮交互，仅用于可观测性，不影响返回数据
func (s *MemoryService) LogInteraction(sessionID, userCommand string, record InteractionRecord) {
	utils.GetLogger().Info("interaction", map[string]interface{}{
		"session_id":    sessionID,
		"command":       userCommand,
		"plan_id":       record.PlanID,
		"actions_count": record.ActionsCount,
		"success":       record.Success,
		"logged_at":     time.Now().Format(time.RFC3339),
	})
}
