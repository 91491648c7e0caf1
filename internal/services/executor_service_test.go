// internal/services/executor_service_test.go
package services

import (
	"context"
	"errors"
	"testing"

	"github.com/manchai/scene-director/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteInitializeScene(t *testing.T) {
	executor := NewExecutorService(&stubDialogue{}, &stubSynth{})

	outcome, err := executor.ExecuteAction(context.Background(), models.Action{Type: models.ActionInitializeScene}, nil)
	require.NoError(t, err)

	require.NotNil(t, outcome.Scene)
	assert.Len(t, outcome.Scene.Actors, 2)
	assert.Equal(t, 0, outcome.Scene.CurrentBeat)
	assert.Empty(t, outcome.Scene.Lines)
}

func TestExecutePlanPartialFailure(t *testing.T) {
	executor := NewExecutorService(&stubDialogue{
		generateFn: func(ctx context.Context, state *models.SceneState, userCommand string) ([]models.LineDraft, error) {
			return nil, errors.New("model exploded")
		},
	}, &stubSynth{})

	plan := &models.Plan{
		PlanID: "p1",
		Actions: []models.Action{
			{Type: models.ActionInitializeScene},
			{Type: models.ActionGenerateDialogue, UserCommand: "go"},
		},
	}

	result := executor.ExecutePlan(context.Background(), plan, nil)

	// 单个动作失败不应中断其余动作
	assert.False(t, result.Success)
	require.Len(t, result.ActionsTaken, 1)
	assert.Equal(t, models.ActionInitializeScene, result.ActionsTaken[0].Action)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, models.ActionGenerateDialogue, result.Errors[0].Action)
}

func TestExecutePlanThreadsInitializedState(t *testing.T) {
	var seenActors []string
	executor := NewExecutorService(&stubDialogue{
		generateFn: func(ctx context.Context, state *models.SceneState, userCommand string) ([]models.LineDraft, error) {
			for _, actor := range state.Actors {
				seenActors = append(seenActors, actor.ID)
			}
			return []models.LineDraft{{ActorID: "hero", Text: "ok"}}, nil
		},
	}, &stubSynth{})

	plan := &models.Plan{
		PlanID: "p1",
		Actions: []models.Action{
			{Type: models.ActionInitializeScene},
			{Type: models.ActionGenerateDialogue, UserCommand: "go"},
		},
	}

	result := executor.ExecutePlan(context.Background(), plan, nil)

	// 对话生成要读到刚初始化的演员列表
	require.True(t, result.Success)
	assert.Equal(t, []string{"hero", "ai"}, seenActors)
}

func TestExecuteUnknownActionType(t *testing.T) {
	executor := NewExecutorService(&stubDialogue{}, &stubSynth{})

	plan := &models.Plan{
		PlanID: "p1",
		Actions: []models.Action{
			{Type: models.ActionType("teleport_actor")},
			{Type: models.ActionGenerateDialogue, UserCommand: "go"},
		},
	}

	result := executor.ExecutePlan(context.Background(), plan, models.DefaultScene())

	// 未知动作只对该动作致命，整轮照常推进
	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Error, "unknown action type")
	require.Len(t, result.ActionsTaken, 1)
	assert.Equal(t, models.ActionGenerateDialogue, result.ActionsTaken[0].Action)
}

func TestExecuteGenerateAudio(t *testing.T) {
	executor := NewExecutorService(&stubDialogue{}, &stubSynth{
		synthesizeFn: func(ctx context.Context, text, voiceID string) (string, error) {
			assert.Equal(t, "default_voice", voiceID)
			return "https://audio.local/ref.mp3", nil
		},
	})

	outcome, err := executor.ExecuteAction(context.Background(), models.Action{
		Type: models.ActionGenerateAudio,
		Text: "hello",
	}, models.DefaultScene())
	require.NoError(t, err)
	assert.Equal(t, "https://audio.local/ref.mp3", outcome.AudioURL)
}
