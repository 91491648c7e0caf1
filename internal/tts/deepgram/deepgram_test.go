// internal/tts/deepgram/deepgram_test.go
package deepgram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/manchai/scene-director/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSynthesizer(t *testing.T, handler http.HandlerFunc) (*Synthesizer, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store, err := storage.NewAudioStore(t.TempDir())
	require.NoError(t, err)

	synth, err := NewSynthesizer("test-key", "", store)
	require.NoError(t, err)
	synth.SetBaseURL(server.URL)
	return synth, server
}

func TestSynthesizeSavesClip(t *testing.T) {
	var gotAuth, gotModel string
	synth, _ := newTestSynthesizer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotModel = r.URL.Query().Get("model")
		w.Write([]byte("RIFF-fake-wav"))
	})

	ref, err := synth.Synthesize(context.Background(), "Hello there.", "v1")
	require.NoError(t, err)

	assert.Equal(t, "Token test-key", gotAuth)
	// 场景内的voiceId不是Deepgram模型名，落到默认voice
	assert.Equal(t, "aura-2-thalia-en", gotModel)
	assert.True(t, strings.HasPrefix(ref, "/audio/clips/"))
	assert.True(t, strings.HasSuffix(ref, ".wav"))
}

func TestSynthesizePassesAuraVoice(t *testing.T) {
	var gotModel string
	synth, _ := newTestSynthesizer(t, func(w http.ResponseWriter, r *http.Request) {
		gotModel = r.URL.Query().Get("model")
		w.Write([]byte("bytes"))
	})

	_, err := synth.Synthesize(context.Background(), "Hello.", "aura-orion-en")
	require.NoError(t, err)
	assert.Equal(t, "aura-orion-en", gotModel)
}

func TestSynthesizeAPIError(t *testing.T) {
	synth, _ := newTestSynthesizer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"err_msg":"invalid model"}`, http.StatusBadRequest)
	})

	_, err := synth.Synthesize(context.Background(), "Hello.", "v1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deepgram speak error(400)")
}

func TestSynthesizeRejectsEmptyText(t *testing.T) {
	synth, _ := newTestSynthesizer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for empty text")
	})

	_, err := synth.Synthesize(context.Background(), "   ", "v1")
	require.Error(t, err)
}

func TestNewSynthesizerValidation(t *testing.T) {
	store, err := storage.NewAudioStore(t.TempDir())
	require.NoError(t, err)

	_, err = NewSynthesizer("", "", store)
	assert.Error(t, err)

	_, err = NewSynthesizer("key", "", nil)
	assert.Error(t, err)
}
