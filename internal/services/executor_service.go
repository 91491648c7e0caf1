// internal/services/executor_service.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/manchai/scene-director/internal/models"
	"github.com/manchai/scene-director/internal/tts"
	"github.com/manchai/scene-director/internal/utils"
)

// 协作方调用的超时上限，超时按该动作失败处理
const (
	dialogueTimeout = 45 * time.Second
	audioTimeout    = 15 * time.Second
)

// ActionOutcome 单个动作的执行结果，按动作类型携带不同载荷
type ActionOutcome struct {
	Action  models.ActionType `json:"action"`
	Success bool              `json:"success"`

	Scene    *models.SceneState  `json:"scene,omitempty"`     // initialize_scene
	Drafts   []models.LineDraft  `json:"drafts,omitempty"`    // generate_dialogue
	AudioURL string              `json:"audio_url,omitempty"` // generate_audio
}

// ActionError 单个动作的失败记录
type ActionError struct {
	Action models.ActionType `json:"action"`
	Error  string            `json:"error"`
}

// ExecutionResult 整个计划的执行结果
// Success为false只表示有动作失败过，调用方仍要消费成功的那部分
type ExecutionResult struct {
	Success      bool            `json:"success"`
	ActionsTaken []ActionOutcome `json:"actions_taken"`
	Errors       []ActionError   `json:"errors"`
}

// ExecutorService 顺序执行计划中的动作
// 单个动作失败只记录不中断：一个子任务的失败降级本轮输出，但本轮照常完成
type ExecutorService struct {
	Dialogue DialogueGenerator
	Audio    tts.Synthesizer
}

// NewExecutorService 创建执行器
func NewExecutorService(dialogue DialogueGenerator, audio tts.Synthesizer) *ExecutorService {
	return &ExecutorService{
		Dialogue: dialogue,
		Audio:    audio,
	}
}

// ExecutePlan 按计划顺序执行动作
// 顺序有讲究：initialize_scene（若有）必须先完成，
// 因为对话生成要读到新初始化的演员列表
func (s *ExecutorService) ExecutePlan(ctx context.Context, plan *models.Plan, state *models.SceneState) *ExecutionResult {
	result := &ExecutionResult{
		Success:      true,
		ActionsTaken: []ActionOutcome{},
		Errors:       []ActionError{},
	}

	// 工作状态：传入状态为nil且初始化成功时，后续动作读初始化结果；
	// 执行器不把它赋回调用方的状态，那是协调器的事
	working := state

	for _, action := range plan.Actions {
		outcome, err := s.ExecuteAction(ctx, action, working)
		if err != nil {
			result.Success = false
			result.Errors = append(result.Errors, ActionError{
				Action: action.Type,
				Error:  err.Error(),
			})
			utils.GetLogger().Errorf("executor: action %s failed: %v", action.Type, err)
			continue
		}

		result.ActionsTaken = append(result.ActionsTaken, outcome)

		if action.Type == models.ActionInitializeScene && working == nil {
			working = outcome.Scene
		}
	}

	return result
}

// ExecuteAction 执行单个动作
// 未知动作类型属于编程级的不变量破坏，对该动作致命但不会让整轮崩掉
func (s *ExecutorService) ExecuteAction(ctx context.Context, action models.Action, state *models.SceneState) (ActionOutcome, error) {
	switch action.Type {
	case models.ActionInitializeScene:
		// 只返回默认场景，不产生任何副作用
		return ActionOutcome{
			Action:  models.ActionInitializeScene,
			Success: true,
			Scene:   models.DefaultScene(),
		}, nil

	case models.ActionGenerateDialogue:
		genCtx, cancel := context.WithTimeout(ctx, dialogueTimeout)
		defer cancel()

		if state == nil {
			state = models.DefaultScene()
		}

		drafts, err := s.Dialogue.GenerateLines(genCtx, state, action.UserCommand)
		if err != nil {
			return ActionOutcome{}, fmt.Errorf("dialogue generation failed: %w", err)
		}
		return ActionOutcome{
			Action:  models.ActionGenerateDialogue,
			Success: true,
			Drafts:  drafts,
		}, nil

	case models.ActionGenerateAudio:
		audioCtx, cancel := context.WithTimeout(ctx, audioTimeout)
		defer cancel()

		voiceID := action.VoiceID
		if voiceID == "" {
			voiceID = "default_voice"
		}

		audioURL, err := s.Audio.Synthesize(audioCtx, action.Text, voiceID)
		if err != nil {
			return ActionOutcome{}, fmt.Errorf("audio synthesis failed: %w", err)
		}
		return ActionOutcome{
			Action:   models.ActionGenerateAudio,
			Success:  true,
			AudioURL: audioURL,
		}, nil

	default:
		return ActionOutcome{}, fmt.Errorf("unknown action type: %s", action.Type)
	}
}
