// internal/services/dialogue_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/manchai/scene-director/internal/models"
)

// PlanningContext 规划阶段可见的会话上下文
type PlanningContext struct {
	SessionID   string
	HasState    bool
	RecentLines []models.Line
	Actors      []models.Actor
	Metadata    models.SceneMetadata
}

// DialogueGenerator 对话生成协作方的边界接口
// 调用可能失败或返回畸形数据，核心按单动作失败处理
type DialogueGenerator interface {
	// Reason 对指令做一次推理分类，产出结构化判断
	Reason(ctx context.Context, userCommand string, planningCtx PlanningContext) (*models.TurnReasoning, error)

	// GenerateLines 针对指令生成一小批台词/动作草稿
	GenerateLines(ctx context.Context, state *models.SceneState, userCommand string) ([]models.LineDraft, error)
}

// DialogueService 基于LLM服务实现DialogueGenerator
type DialogueService struct {
	LLM *LLMService

	// 喂给模型的历史台词上限，保证上下文与场景总长无关
	maxContextLines int
}

// 推理输出的JSON模式，嵌入提示词让模型按结构返回
var reasoningSchemaJSON = func() string {
	reflector := jsonschema.Reflector{DoNotReference: true}
	schema := reflector.Reflect(&models.TurnReasoning{})
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}()

// NewDialogueService 创建对话生成服务
func NewDialogueService(llmService *LLMService) *DialogueService {
	return &DialogueService{
		LLM:             llmService,
		maxContextLines: 5,
	}
}

// Reason 让模型分析导演指令，判断本轮要做什么
func (s *DialogueService) Reason(ctx context.Context, userCommand string, planningCtx PlanningContext) (*models.TurnReasoning, error) {
	prompt := buildReasoningPrompt(userCommand, planningCtx)

	reasoning := &models.TurnReasoning{}
	err := s.LLM.CreateStructuredCompletion(ctx, prompt,
		"You are a film director's AI assistant. Analyze the director's instruction and determine what actions need to be taken.",
		reasoning)
	if err != nil {
		return nil, err
	}

	return reasoning, nil
}

// GenerateLines 生成新的台词/动作草稿
func (s *DialogueService) GenerateLines(ctx context.Context, state *models.SceneState, userCommand string) ([]models.LineDraft, error) {
	prompt := s.buildDialoguePrompt(state, userCommand)

	var result struct {
		NewLines []models.LineDraft `json:"newLines"`
	}
	err := s.LLM.CreateStructuredCompletion(ctx, prompt,
		"You are a professional scriptwriter for a movie. Generate dialogue and action lines based on the director's instruction.",
		&result)
	if err != nil {
		return nil, err
	}

	return sanitizeLineDrafts(result.NewLines), nil
}

// sanitizeLineDrafts 在协作方边界做形状校验：
// 空文本的草稿直接丢弃，缺失actorId的草稿归到unknown；
// 引用未知演员的actorId原样放行（有意为之，见测试）
func sanitizeLineDrafts(drafts []models.LineDraft) []models.LineDraft {
	cleaned := make([]models.LineDraft, 0, len(drafts))
	for _, draft := range drafts {
		draft.Text = strings.TrimSpace(draft.Text)
		if draft.Text == "" {
			continue
		}
		if strings.TrimSpace(draft.ActorID) == "" {
			draft.ActorID = "unknown"
		}
		cleaned = append(cleaned, draft)
	}
	return cleaned
}

func buildReasoningPrompt(userCommand string, planningCtx PlanningContext) string {
	recentDialogue := "No previous dialogue."
	if len(planningCtx.RecentLines) > 0 {
		var sb strings.Builder
		for _, line := range planningCtx.RecentLines {
			sb.WriteString(fmt.Sprintf("%s: %s\n", line.ActorID, line.Text))
		}
		recentDialogue = strings.TrimRight(sb.String(), "\n")
	}

	actorsInfo := "No actors defined."
	if len(planningCtx.Actors) > 0 {
		parts := make([]string, 0, len(planningCtx.Actors))
		for _, actor := range planningCtx.Actors {
			parts = append(parts, fmt.Sprintf("%s (%s, id: %s)", actor.Name, actor.Role, actor.ID))
		}
		actorsInfo = strings.Join(parts, ", ")
	}

	return fmt.Sprintf(`CURRENT SCENE CONTEXT:
- Setting: %s
- Genre: %s
- Actors: %s
- Recent Dialogue:
%s

DIRECTOR'S INSTRUCTION: "%s"

TASK: Analyze this instruction and determine:
1. Does this require initializing a new scene? (needs_initialization)
2. What type of content should be generated? (dialogue, action, both)
3. Which actors should be involved? (list actor IDs)
4. How many lines should be generated? (1-3)

Respond with JSON matching this schema:
%s`,
		planningCtx.Metadata.Setting,
		planningCtx.Metadata.Genre,
		actorsInfo,
		recentDialogue,
		userCommand,
		reasoningSchemaJSON)
}

func (s *DialogueService) buildDialoguePrompt(state *models.SceneState, userCommand string) string {
	recentLines := state.Lines
	if len(recentLines) > s.maxContextLines {
		recentLines = recentLines[len(recentLines)-s.maxContextLines:]
	}

	historyText := "(Scene just started - no previous dialogue)"
	if len(recentLines) > 0 {
		var sb strings.Builder
		for _, line := range recentLines {
			sb.WriteString(fmt.Sprintf("%s: %s\n", line.ActorID, line.Text))
		}
		historyText = strings.TrimRight(sb.String(), "\n")
	}

	actorNames := make([]string, 0, len(state.Actors))
	actorIDs := make([]string, 0, len(state.Actors))
	for _, actor := range state.Actors {
		actorNames = append(actorNames, actor.Name)
		actorIDs = append(actorIDs, fmt.Sprintf("%s (id: %s)", actor.Name, actor.ID))
	}

	return fmt.Sprintf(`SCENE CONTEXT:
- Setting: %s
- Characters: %s
- Character IDs: %s
- Recent Dialogue:
%s

DIRECTOR'S INSTRUCTION: "%s"

IMPORTANT: The director's instruction is the PRIMARY directive. Generate dialogue that DIRECTLY responds to and fulfills this instruction.

TASK:
Generate 2-3 lines of dialogue or action that directly address the director's instruction.

Return ONLY raw JSON (no markdown, no explanations). Format:
{
    "newLines": [
        { "actorId": "hero", "text": "Dialogue that fulfills the director's instruction..." },
        { "actorId": "ai", "text": "Response that continues the scene..." }
    ]
}

Use the exact actor IDs from the character list above.`,
		state.Setting,
		strings.Join(actorNames, ", "),
		strings.Join(actorIDs, ", "),
		historyText,
		userCommand)
}
