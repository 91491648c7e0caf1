// internal/services/planner_service.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/manchai/scene-director/internal/models"
	"github.com/manchai/scene-director/internal/utils"
)

// 推理调用的超时上限，超时按推理失败回退处理
const reasoningTimeout = 30 * time.Second

// PlannerService 把一条导演指令分解成有序的子任务计划
// 简化版ReAct：先检索上下文，再推理分类，最后拼装计划
type PlannerService struct {
	Memory   *MemoryService
	Dialogue DialogueGenerator

	// 喂给推理的历史台词窗口大小
	contextWindow int
}

// NewPlannerService 创建规划服务
func NewPlannerService(memory *MemoryService, dialogue DialogueGenerator) *PlannerService {
	return &PlannerService{
		Memory:        memory,
		Dialogue:      dialogue,
		contextWindow: 5,
	}
}

// PlanTurn 主规划入口：指令 -> 执行计划
// state为nil表示新场景
func (s *PlannerService) PlanTurn(ctx context.Context, state *models.SceneState, userCommand, sessionID string) (*models.Plan, error) {
	logger := utils.GetLogger()
	logger.Debugf("planner: analyzing command %q for session %s", userCommand, sessionID)

	// 步骤1：检索上下文
	planningCtx, err := s.retrieveContext(state, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to build planning context: %w", err)
	}

	// 步骤2：推理分类（失败时确定性回退，绝不让规划挂掉）
	reasoning := s.reasonAboutCommand(ctx, userCommand, planningCtx)

	// 步骤3：拼装计划
	plan := s.createExecutionPlan(userCommand, planningCtx, reasoning)
	logger.Debugf("planner: created plan %s with %d sub-tasks", plan.PlanID, len(plan.Actions))
	return plan, nil
}

// retrieveContext 构建规划上下文
// 有传入状态时先写进内存，让上下文在本轮完成前就反映最新输入；
// 没有状态时用空上下文和默认元数据，不碰内存
func (s *PlannerService) retrieveContext(state *models.SceneState, sessionID string) (PlanningContext, error) {
	if state == nil {
		return PlanningContext{
			SessionID:   sessionID,
			HasState:    false,
			RecentLines: []models.Line{},
			Actors:      []models.Actor{},
			Metadata:    models.DefaultSceneMetadata(),
		}, nil
	}

	if err := s.Memory.Store(sessionID, state); err != nil {
		return PlanningContext{}, err
	}

	return PlanningContext{
		SessionID:   sessionID,
		HasState:    true,
		RecentLines: s.Memory.RecentContext(sessionID, s.contextWindow),
		Actors:      s.Memory.ActorContext(sessionID),
		Metadata:    s.Memory.Metadata(sessionID),
	}, nil
}

// reasonAboutCommand 推理步骤
// 调用失败或输出无法解析时落到确定性回退，该路径不返回错误
func (s *PlannerService) reasonAboutCommand(ctx context.Context, userCommand string, planningCtx PlanningContext) models.TurnReasoning {
	reasonCtx, cancel := context.WithTimeout(ctx, reasoningTimeout)
	defer cancel()

	reasoning, err := s.Dialogue.Reason(reasonCtx, userCommand, planningCtx)
	if err != nil || reasoning == nil {
		utils.GetLogger().Warnf("planner: reasoning failed, using defaults: %v", err)
		return fallbackReasoning(planningCtx)
	}

	return normalizeReasoning(*reasoning)
}

// fallbackReasoning 推理失败时的确定性回退
func fallbackReasoning(planningCtx PlanningContext) models.TurnReasoning {
	involved := make([]string, 0, 2)
	for _, actor := range planningCtx.Actors {
		involved = append(involved, actor.ID)
		if len(involved) == 2 {
			break
		}
	}

	return models.TurnReasoning{
		NeedsInitialization: !planningCtx.HasState,
		DialogueType:        models.DialogueTypeDialogue,
		InvolvedActors:      involved,
		NumLines:            2,
		Reasoning:           "Default reasoning due to reasoning failure",
	}
}

// normalizeReasoning 把模型输出的边缘值拉回合法范围
// 行数缺省按2处理，上限3；未知的内容类型一律归到dialogue
func normalizeReasoning(reasoning models.TurnReasoning) models.TurnReasoning {
	if reasoning.NumLines <= 0 {
		reasoning.NumLines = 2
	}
	if reasoning.NumLines > 3 {
		reasoning.NumLines = 3
	}

	switch reasoning.DialogueType {
	case models.DialogueTypeDialogue, models.DialogueTypeAction, models.DialogueTypeBoth:
	default:
		reasoning.DialogueType = models.DialogueTypeDialogue
	}

	if reasoning.InvolvedActors == nil {
		reasoning.InvolvedActors = []string{}
	}
	return reasoning
}

// createExecutionPlan 按推理结果拼装动作序列
// 永远恰好一个generate_dialogue；需要初始化时在前面补一个initialize_scene。
// 音频动作不进静态计划：行数要等对话生成后才知道，由协调器按行派生
func (s *PlannerService) createExecutionPlan(userCommand string, planningCtx PlanningContext, reasoning models.TurnReasoning) *models.Plan {
	actions := make([]models.Action, 0, 2)

	if reasoning.NeedsInitialization || !planningCtx.HasState {
		actions = append(actions, models.Action{
			Type:        models.ActionInitializeScene,
			Description: "Initialize a new scene with default actors and setting",
		})
	}

	actions = append(actions, models.Action{
		Type:           models.ActionGenerateDialogue,
		Description:    fmt.Sprintf("Generate %d lines of %s", reasoning.NumLines, reasoning.DialogueType),
		UserCommand:    userCommand,
		DialogueType:   reasoning.DialogueType,
		NumLines:       reasoning.NumLines,
		InvolvedActors: reasoning.InvolvedActors,
	})

	return &models.Plan{
		PlanID:      uuid.NewString(),
		UserCommand: userCommand,
		Reasoning:   reasoning,
		Actions:     actions,
		Context: models.PlanContext{
			SessionID:   planningCtx.SessionID,
			CurrentBeat: planningCtx.Metadata.CurrentBeat,
		},
	}
}
