// internal/services/helpers_test.go
package services

import (
	"context"
	"errors"

	"github.com/manchai/scene-director/internal/models"
)

// stubDialogue 可配置的对话生成器替身
type stubDialogue struct {
	reasonFn   func(ctx context.Context, userCommand string, planningCtx PlanningContext) (*models.TurnReasoning, error)
	generateFn func(ctx context.Context, state *models.SceneState, userCommand string) ([]models.LineDraft, error)
}

func (s *stubDialogue) Reason(ctx context.Context, userCommand string, planningCtx PlanningContext) (*models.TurnReasoning, error) {
	if s.reasonFn != nil {
		return s.reasonFn(ctx, userCommand, planningCtx)
	}
	return nil, errors.New("reasoning unavailable")
}

func (s *stubDialogue) GenerateLines(ctx context.Context, state *models.SceneState, userCommand string) ([]models.LineDraft, error) {
	if s.generateFn != nil {
		return s.generateFn(ctx, state, userCommand)
	}
	return []models.LineDraft{
		{ActorID: "hero", Text: "We have to move. Now."},
		{ActorID: "ai", Text: "Calculating escape routes."},
	}, nil
}

// stubSynth 可配置的音频合成替身
type stubSynth struct {
	synthesizeFn func(ctx context.Context, text, voiceID string) (string, error)
}

func (s *stubSynth) GetName() string { return "stub" }

func (s *stubSynth) Synthesize(ctx context.Context, text, voiceID string) (string, error) {
	if s.synthesizeFn != nil {
		return s.synthesizeFn(ctx, text, voiceID)
	}
	return "https://audio.local/" + voiceID + "/clip.mp3", nil
}

// existingScene 构造一个进行中的场景用于测试
func existingScene() *models.SceneState {
	return &models.SceneState{
		Title:   "Night Shift",
		Genre:   "Thriller",
		Setting: "An abandoned metro station.",
		Actors: []models.Actor{
			{ID: "guard", Name: "Mira", Role: models.RoleProtagonist, Language: "en-US", VoiceID: "v7", Style: "Calm"},
		},
		Lines: []models.Line{
			{ID: "l1", ActorID: "guard", Text: "Who's there?", Timestamp: 1000, BeatIndex: 1, AudioURL: "a1"},
			{ID: "l2", ActorID: "guard", Text: "Show yourself.", Timestamp: 2000, BeatIndex: 2, AudioURL: "a2"},
			{ID: "l3", ActorID: "guard", Text: "Last warning.", Timestamp: 3000, BeatIndex: 3, AudioURL: "a3"},
			{ID: "l4", ActorID: "guard", Text: "...", Timestamp: 4000, BeatIndex: 3, AudioURL: ""},
		},
		CurrentBeat: 3,
	}
}
