// internal/services/turn_service_test.go
package services

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/manchai/scene-director/internal/errors"
	"github.com/manchai/scene-director/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTurnService(dialogue DialogueGenerator, audio *stubSynth) *TurnService {
	memory := NewMemoryService()
	planner := NewPlannerService(memory, dialogue)
	executor := NewExecutorService(dialogue, audio)
	return NewTurnService(planner, executor, memory, NewLockManager())
}

func TestProcessTurnNewSession(t *testing.T) {
	service := newTurnService(&stubDialogue{}, &stubSynth{})

	updated, err := service.ProcessTurn(context.Background(), nil, "start the scene", "s1")
	require.NoError(t, err)
	require.NotNil(t, updated)

	// 全新会话采用初始化产出的默认场景
	assert.Len(t, updated.Actors, 2)
	assert.Equal(t, "hero", updated.Actors[0].ID)
	assert.Equal(t, "ai", updated.Actors[1].ID)
	assert.Equal(t, 1, updated.CurrentBeat)

	require.Len(t, updated.Lines, 2)
	for _, line := range updated.Lines {
		assert.NotEmpty(t, line.ID)
		assert.NotZero(t, line.Timestamp)
		assert.Equal(t, 1, line.BeatIndex)
		assert.NotEmpty(t, line.AudioURL)
	}
	assert.Equal(t, "hero", updated.Lines[0].ActorID)
	assert.Equal(t, "ai", updated.Lines[1].ActorID)
}

func TestProcessTurnAppendsToExistingState(t *testing.T) {
	service := newTurnService(&stubDialogue{}, &stubSynth{})
	state := existingScene()

	updated, err := service.ProcessTurn(context.Background(), state, "keep going", "s1")
	require.NoError(t, err)

	// 历史行原样保留，新行全部挂在下一个节拍上
	assert.Equal(t, 4, updated.CurrentBeat)
	require.Len(t, updated.Lines, 6)
	for i, id := range []string{"l1", "l2", "l3", "l4"} {
		assert.Equal(t, id, updated.Lines[i].ID)
	}
	assert.Equal(t, 4, updated.Lines[4].BeatIndex)
	assert.Equal(t, 4, updated.Lines[5].BeatIndex)
}

func TestProcessTurnDialogueFailureStillAdvancesBeat(t *testing.T) {
	service := newTurnService(&stubDialogue{
		generateFn: func(ctx context.Context, state *models.SceneState, userCommand string) ([]models.LineDraft, error) {
			return nil, errors.New("model down")
		},
	}, &stubSynth{})
	state := existingScene()

	updated, err := service.ProcessTurn(context.Background(), state, "keep going", "s1")
	require.NoError(t, err)

	// 对话失败 -> 零新行，但节拍照常加一
	assert.Equal(t, 4, updated.CurrentBeat)
	assert.Len(t, updated.Lines, 4)
}

func TestProcessTurnAudioFailureLeavesURLEmpty(t *testing.T) {
	calls := 0
	service := newTurnService(&stubDialogue{}, &stubSynth{
		synthesizeFn: func(ctx context.Context, text, voiceID string) (string, error) {
			calls++
			if calls == 1 {
				return "", errors.New("tts unavailable")
			}
			return "https://audio.local/clip.mp3", nil
		},
	})

	updated, err := service.ProcessTurn(context.Background(), nil, "start", "s1")
	require.NoError(t, err)

	// 单行音频失败不影响兄弟行，也不影响行本身入列
	require.Len(t, updated.Lines, 2)
	assert.Empty(t, updated.Lines[0].AudioURL)
	assert.Equal(t, "https://audio.local/clip.mp3", updated.Lines[1].AudioURL)
}

func TestProcessTurnLineIDsUnique(t *testing.T) {
	service := newTurnService(&stubDialogue{}, &stubSynth{})

	state, err := service.ProcessTurn(context.Background(), nil, "start", "s1")
	require.NoError(t, err)
	state, err = service.ProcessTurn(context.Background(), state, "more", "s1")
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, line := range state.Lines {
		assert.False(t, seen[line.ID], "duplicate line id %s", line.ID)
		seen[line.ID] = true
	}
	assert.Equal(t, 2, state.CurrentBeat)
}

func TestProcessTurnEmptyCommand(t *testing.T) {
	service := newTurnService(&stubDialogue{}, &stubSynth{})

	_, err := service.ProcessTurn(context.Background(), nil, "   ", "s1")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidationError(err))
}

func TestProcessTurnIncomingStateWins(t *testing.T) {
	// 推理声称需要初始化，但传入状态存在：老会话历史不允许被静默丢弃
	service := newTurnService(&stubDialogue{
		reasonFn: func(ctx context.Context, userCommand string, planningCtx PlanningContext) (*models.TurnReasoning, error) {
			return &models.TurnReasoning{
				NeedsInitialization: true,
				DialogueType:        models.DialogueTypeDialogue,
				InvolvedActors:      []string{"guard"},
				NumLines:            1,
			}, nil
		},
	}, &stubSynth{})
	state := existingScene()

	updated, err := service.ProcessTurn(context.Background(), state, "restart everything", "s1")
	require.NoError(t, err)

	assert.Equal(t, "Night Shift", updated.Title)
	assert.Equal(t, 4, updated.CurrentBeat)
	require.Len(t, updated.Lines, 6)
	assert.Equal(t, "l1", updated.Lines[0].ID)
}

type recordingObserver struct {
	sessionID string
	lineCount int
	beat      int
	calls     int
}

func (r *recordingObserver) OnTurnCompleted(sessionID string, state *models.SceneState, newLines []models.Line) {
	r.calls++
	r.sessionID = sessionID
	r.lineCount = len(newLines)
	r.beat = state.CurrentBeat
}

func TestProcessTurnNotifiesObservers(t *testing.T) {
	service := newTurnService(&stubDialogue{}, &stubSynth{})
	observer := &recordingObserver{}
	service.AddObserver(observer)

	_, err := service.ProcessTurn(context.Background(), nil, "start", "room-9")
	require.NoError(t, err)

	assert.Equal(t, 1, observer.calls)
	assert.Equal(t, "room-9", observer.sessionID)
	assert.Equal(t, 2, observer.lineCount)
	assert.Equal(t, 1, observer.beat)
}

func TestProcessTurnDefaultsSessionID(t *testing.T) {
	service := newTurnService(&stubDialogue{}, &stubSynth{})

	updated, err := service.ProcessTurn(context.Background(), nil, "start", "")
	require.NoError(t, err)
	require.NotNil(t, updated)

	// 空sessionID落到default会话
	stored := service.Memory.RetrieveState("default")
	require.NotNil(t, stored)
	assert.Equal(t, updated.CurrentBeat, stored.CurrentBeat)
}

func TestProcessTurnResolvesActorVoice(t *testing.T) {
	var voices []string
	service := newTurnService(&stubDialogue{
		generateFn: func(ctx context.Context, state *models.SceneState, userCommand string) ([]models.LineDraft, error) {
			return []models.LineDraft{
				{ActorID: "guard", Text: "Stay back."},
				{ActorID: "stranger", Text: "Easy now."},
			}, nil
		},
	}, &stubSynth{
		synthesizeFn: func(ctx context.Context, text, voiceID string) (string, error) {
			voices = append(voices, voiceID)
			return "https://audio.local/clip.mp3", nil
		},
	})

	_, err := service.ProcessTurn(context.Background(), existingScene(), "go", "s1")
	require.NoError(t, err)

	// 已知演员用其配置voice，未知演员退回默认voice
	assert.Equal(t, []string{"v7", "default_voice"}, voices)
}
