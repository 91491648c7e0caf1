// internal/models/plan.go
package models

// ActionType 计划内子任务的类型标签
type ActionType string

const (
	ActionInitializeScene  ActionType = "initialize_scene"
	ActionGenerateDialogue ActionType = "generate_dialogue"
	ActionGenerateAudio    ActionType = "generate_audio"
)

// DialogueType 生成内容的类型
const (
	DialogueTypeDialogue = "dialogue"
	DialogueTypeAction   = "action"
	DialogueTypeBoth     = "both"
)

// Action 计划中的单个子任务，按类型携带不同参数
// 由执行器消费一次后丢弃
type Action struct {
	Type        ActionType `json:"type"`
	Description string     `json:"description,omitempty"`

	// generate_dialogue 参数
	UserCommand    string   `json:"user_command,omitempty"`
	DialogueType   string   `json:"dialogue_type,omitempty"`
	NumLines       int      `json:"num_lines,omitempty"`
	InvolvedActors []string `json:"involved_actors,omitempty"`

	// generate_audio 参数
	Text    string `json:"text,omitempty"`
	VoiceID string `json:"voice_id,omitempty"`
}

// TurnReasoning 推理步骤的结构化判断结果
// 字段名与LLM返回的JSON保持一致
type TurnReasoning struct {
	NeedsInitialization bool     `json:"needs_initialization"`
	DialogueType        string   `json:"dialogue_type"`
	InvolvedActors      []string `json:"involved_actors"`
	NumLines            int      `json:"num_lines"`
	Reasoning           string   `json:"reasoning"`
}

// PlanContext 计划生成时的会话快照
type PlanContext struct {
	SessionID   string `json:"session_id"`
	CurrentBeat int    `json:"current_beat"`
}

// Plan 单轮的执行计划，只在本轮内存活，不做持久化
type Plan struct {
	PlanID      string        `json:"plan_id"`
	UserCommand string        `json:"user_command"`
	Reasoning   TurnReasoning `json:"reasoning"`
	Actions     []Action      `json:"actions"`
	Context     PlanContext   `json:"context"`
}

// DialogueAction 返回计划中的 generate_dialogue 动作，不存在时返回nil
func (p *Plan) DialogueAction() *Action {
	for i := range p.Actions {
		if p.Actions[i].Type == ActionGenerateDialogue {
			return &p.Actions[i]
		}
	}
	return nil
}
