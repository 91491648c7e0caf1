// internal/services/dialogue_service_test.go
package services

import (
	"context"
	"testing"

	"github.com/manchai/scene-director/internal/llm"
	"github.com/manchai/scene-director/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeLineDrafts(t *testing.T) {
	drafts := []models.LineDraft{
		{ActorID: "hero", Text: "  Keep moving.  "},
		{ActorID: "ai", Text: "   "},
		{ActorID: "", Text: "Someone whispers."},
		{ActorID: "ghost", Text: "Boo."},
	}

	cleaned := sanitizeLineDrafts(drafts)

	require.Len(t, cleaned, 3)
	assert.Equal(t, "Keep moving.", cleaned[0].Text)
	// 缺失actorId归到unknown，未知演员id原样放行
	assert.Equal(t, "unknown", cleaned[1].ActorID)
	assert.Equal(t, "ghost", cleaned[2].ActorID)
}

func TestGenerateLinesParsesFencedJSON(t *testing.T) {
	provider := &fakeProvider{
		completeFn: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return &llm.CompletionResponse{Text: "```json\n{\"newLines\": [{\"actorId\": \"guard\", \"text\": \"Freeze!\"}, {\"actorId\": \"\", \"text\": \"A shadow moves.\"}]}\n```"}, nil
		},
	}
	service := NewDialogueService(NewLLMServiceWithProvider("fake", provider))

	drafts, err := service.GenerateLines(context.Background(), existingScene(), "raise the tension")
	require.NoError(t, err)

	require.Len(t, drafts, 2)
	assert.Equal(t, "guard", drafts[0].ActorID)
	assert.Equal(t, "Freeze!", drafts[0].Text)
	assert.Equal(t, "unknown", drafts[1].ActorID)
}

func TestGenerateLinesPromptContent(t *testing.T) {
	var prompt string
	provider := &fakeProvider{
		completeFn: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			prompt = req.Prompt
			return &llm.CompletionResponse{Text: `{"newLines": []}`}, nil
		},
	}
	service := NewDialogueService(NewLLMServiceWithProvider("fake", provider))

	_, err := service.GenerateLines(context.Background(), existingScene(), "raise the tension")
	require.NoError(t, err)

	assert.Contains(t, prompt, "An abandoned metro station.")
	assert.Contains(t, prompt, "Mira (id: guard)")
	assert.Contains(t, prompt, "Last warning.")
	assert.Contains(t, prompt, `"raise the tension"`)
}

func TestGenerateLinesContextWindow(t *testing.T) {
	var prompt string
	provider := &fakeProvider{
		completeFn: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			prompt = req.Prompt
			return &llm.CompletionResponse{Text: `{"newLines": []}`}, nil
		},
	}
	service := NewDialogueService(NewLLMServiceWithProvider("fake", provider))

	state := existingScene()
	for i := 0; i < 10; i++ {
		state.Lines = append(state.Lines, models.Line{
			ID: "extra", ActorID: "guard", Text: "Filler line.", BeatIndex: 3,
		})
	}

	_, err := service.GenerateLines(context.Background(), state, "go")
	require.NoError(t, err)

	// 历史超过窗口时，早期台词不进提示
	assert.NotContains(t, prompt, "Who's there?")
	assert.Contains(t, prompt, "Filler line.")
}

func TestReasonParsesStructuredResponse(t *testing.T) {
	var prompt string
	provider := &fakeProvider{
		completeFn: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			prompt = req.Prompt
			return &llm.CompletionResponse{Text: `{"needs_initialization": false, "dialogue_type": "action", "involved_actors": ["guard"], "num_lines": 1, "reasoning": "single beat of movement"}`}, nil
		},
	}
	service := NewDialogueService(NewLLMServiceWithProvider("fake", provider))

	scene := existingScene()
	reasoning, err := service.Reason(context.Background(), "have Mira duck behind a pillar", PlanningContext{
		SessionID:   "s1",
		HasState:    true,
		RecentLines: scene.Lines,
		Actors:      scene.Actors,
		Metadata:    scene.Metadata(),
	})
	require.NoError(t, err)

	assert.False(t, reasoning.NeedsInitialization)
	assert.Equal(t, models.DialogueTypeAction, reasoning.DialogueType)
	assert.Equal(t, []string{"guard"}, reasoning.InvolvedActors)
	assert.Equal(t, 1, reasoning.NumLines)

	// 推理提示要包含场景上下文和输出模式
	assert.Contains(t, prompt, "DIRECTOR'S INSTRUCTION")
	assert.Contains(t, prompt, "needs_initialization")
}

func TestReasonFailsWhenLLMNotReady(t *testing.T) {
	service := NewDialogueService(NewEmptyLLMService())

	_, err := service.Reason(context.Background(), "go", PlanningContext{})
	require.Error(t, err)
}
