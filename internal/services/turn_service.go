// internal/services/turn_service.go
package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/manchai/scene-director/internal/errors"
	"github.com/manchai/scene-director/internal/models"
)

// TurnObserver 在一轮成功完成后收到通知（WebSocket推送等）
// 回调在轮次的会话锁内执行，实现方不要阻塞
type TurnObserver interface {
	OnTurnCompleted(sessionID string, state *models.SceneState, newLines []models.Line)
}

// TurnService 单轮编排的唯一入口
// 状态机：Planning -> Executing -> Materializing -> Persisted，
// 成功或不可恢复错误时终止；后者作为单个错误抛给调用方
type TurnService struct {
	Planner  *PlannerService
	Executor *ExecutorService
	Memory   *MemoryService
	Locks    *LockManager

	observers []TurnObserver
}

// NewTurnService 创建轮次协调服务
func NewTurnService(planner *PlannerService, executor *ExecutorService, memory *MemoryService, locks *LockManager) *TurnService {
	return &TurnService{
		Planner:  planner,
		Executor: executor,
		Memory:   memory,
		Locks:    locks,
	}
}

// AddObserver 注册轮次完成的观察者
func (s *TurnService) AddObserver(observer TurnObserver) {
	s.observers = append(s.observers, observer)
}

// ProcessTurn 处理一轮：指令进，更新后的场景状态出
// 两个不变量是所有调用方可以依赖的：
// currentBeat每轮恰好加一（零行也算），lines只追加、历史条目原样保留。
// 同一会话的轮次在会话锁下串行，不同会话并发互不影响
func (s *TurnService) ProcessTurn(ctx context.Context, state *models.SceneState, userCommand, sessionID string) (*models.SceneState, error) {
	if strings.TrimSpace(userCommand) == "" {
		return nil, apperrors.NewValidationError("user command must not be empty", nil)
	}
	if sessionID == "" {
		sessionID = "default"
	}

	var final *models.SceneState
	err := s.Locks.ExecuteWithSessionLock(sessionID, func() error {
		// Planning
		plan, err := s.Planner.PlanTurn(ctx, state, userCommand, sessionID)
		if err != nil {
			return apperrors.NewProcessingError("turn planning failed", err)
		}

		// Executing
		execution := s.Executor.ExecutePlan(ctx, plan, state)

		// Materializing
		updated, newLines := s.materialize(ctx, state, execution)

		// Persisted
		if err := s.Memory.Store(sessionID, updated); err != nil {
			return apperrors.NewProcessingError("failed to persist scene state", err)
		}
		s.Memory.LogInteraction(sessionID, userCommand, InteractionRecord{
			PlanID:       plan.PlanID,
			ActionsCount: len(plan.Actions),
			Success:      execution.Success,
		})

		final = updated
		s.notifyObservers(sessionID, updated, newLines)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return final, nil
}

// materialize 把执行结果折叠进场景状态
// 传入状态存在时始终沿用它，即便推理要求过初始化——
// 只有全新会话才采用initialize_scene的产物，老会话的历史不允许被静默丢弃
func (s *TurnService) materialize(ctx context.Context, state *models.SceneState, execution *ExecutionResult) (*models.SceneState, []models.Line) {
	if state == nil {
		if init := findOutcome(execution, models.ActionInitializeScene); init != nil && init.Scene != nil {
			state = init.Scene
		} else {
			// 初始化动作也失败时就地合成同样的默认值，绝不让状态悬空
			state = models.DefaultScene()
		}
	}

	var drafts []models.LineDraft
	if dialogue := findOutcome(execution, models.ActionGenerateDialogue); dialogue != nil {
		drafts = dialogue.Drafts
	}

	beatIndex := state.CurrentBeat + 1
	newLines := make([]models.Line, 0, len(drafts))

	for _, draft := range drafts {
		// 逐行同步合成音频；失败的行audioUrl留空字符串，同轮其他行不受影响
		audioURL := ""
		outcome, err := s.Executor.ExecuteAction(ctx, models.Action{
			Type:    models.ActionGenerateAudio,
			Text:    draft.Text,
			VoiceID: s.resolveVoiceID(state, draft.ActorID),
		}, state)
		if err != nil {
			execution.Success = false
			execution.Errors = append(execution.Errors, ActionError{
				Action: models.ActionGenerateAudio,
				Error:  err.Error(),
			})
		} else {
			execution.ActionsTaken = append(execution.ActionsTaken, outcome)
			audioURL = outcome.AudioURL
		}

		newLines = append(newLines, models.Line{
			ID:        uuid.NewString(),
			ActorID:   draft.ActorID,
			Text:      draft.Text,
			Timestamp: time.Now().UnixMilli(),
			BeatIndex: beatIndex,
			AudioURL:  audioURL,
		})
	}

	state.Lines = append(state.Lines, newLines...)
	// 无论产出几行，节拍恰好推进一
	state.CurrentBeat++

	return state, newLines
}

// resolveVoiceID 按演员配置解析voice，未知演员用默认voice
func (s *TurnService) resolveVoiceID(state *models.SceneState, actorID string) string {
	if actor := state.ActorByID(actorID); actor != nil && actor.VoiceID != "" {
		return actor.VoiceID
	}
	return "default_voice"
}

func (s *TurnService) notifyObservers(sessionID string, state *models.SceneState, newLines []models.Line) {
	for _, observer := range s.observers {
		observer.OnTurnCompleted(sessionID, state, newLines)
	}
}

// findOutcome 找到计划里某类动作的成功结果，没有则返回nil
func findOutcome(execution *ExecutionResult, actionType models.ActionType) *ActionOutcome {
	for i := range execution.ActionsTaken {
		if execution.ActionsTaken[i].Action == actionType && execution.ActionsTaken[i].Success {
			return &execution.ActionsTaken[i]
		}
	}
	return nil
}
