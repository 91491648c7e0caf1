// internal/tts/mock/mock_test.go
package mock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesizeStableOutput(t *testing.T) {
	synth := NewSynthesizer()

	first, err := synth.Synthesize(context.Background(), "We have to move.", "v1")
	require.NoError(t, err)
	second, err := synth.Synthesize(context.Background(), "We have to move.", "v1")
	require.NoError(t, err)

	// 相同输入必须得到相同引用，调用方依赖这点做缓存
	assert.Equal(t, first, second)
	assert.Contains(t, first, "v1")
}

func TestSynthesizeDefaultsVoice(t *testing.T) {
	synth := NewSynthesizer()

	url, err := synth.Synthesize(context.Background(), "hello", "")
	require.NoError(t, err)
	assert.Contains(t, url, "default_voice")
}

func TestSynthesizeTruncatesSnippet(t *testing.T) {
	synth := NewSynthesizer()

	long := "This is a very long line of dialogue that keeps going."
	url, err := synth.Synthesize(context.Background(), long, "v1")
	require.NoError(t, err)
	assert.Contains(t, url, "This%20is%20a%20very%20lon")
}

func TestSynthesizeEscapesURL(t *testing.T) {
	synth := NewSynthesizer()

	url, err := synth.Synthesize(context.Background(), "a/b c", "voice/1")
	require.NoError(t, err)
	assert.NotContains(t, url[len("https://"):], " ")
	assert.Contains(t, url, "voice%2F1")
}

func TestSynthesizeHonorsCancelledContext(t *testing.T) {
	synth := NewSynthesizer()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := synth.Synthesize(ctx, "hello", "v1")
	assert.Error(t, err)
}
