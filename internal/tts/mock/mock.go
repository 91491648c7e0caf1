// internal/tts/mock/mock.go
package mock

import (
	"context"
	"net/url"
)

// Synthesizer 是TTS的替身实现：不做真实合成，
// 对相同输入返回稳定的占位引用，调用方可以放心缓存
type Synthesizer struct{}

// NewSynthesizer 创建占位合成器
func NewSynthesizer() *Synthesizer {
	return &Synthesizer{}
}

func (s *Synthesizer) GetName() string {
	return "mock"
}

// Synthesize 返回由voiceID和文本前缀推导的稳定占位URL
func (s *Synthesizer) Synthesize(ctx context.Context, text string, voiceID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if voiceID == "" {
		voiceID = "default_voice"
	}

	snippet := text
	if len(snippet) > 20 {
		snippet = snippet[:20]
	}

	return "https://mock-audio.local/" + url.PathEscape(voiceID) + "/" + url.PathEscape(snippet) + ".mp3", nil
}
