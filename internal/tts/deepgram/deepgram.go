// internal/tts/deepgram/deepgram.go
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/manchai/scene-director/internal/storage"
)

const defaultBaseURL = "https://api.deepgram.com"

// Synthesizer 调用Deepgram Speak REST接口合成语音，
// 音频落盘到AudioStore并返回其相对引用路径
type Synthesizer struct {
	apiKey       string
	baseURL      string
	defaultVoice string
	client       *http.Client
	store        *storage.AudioStore
}

// NewSynthesizer 创建Deepgram合成器
func NewSynthesizer(apiKey, defaultVoice string, store *storage.AudioStore) (*Synthesizer, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram api key not provided")
	}
	if store == nil {
		return nil, errors.New("audio store not provided")
	}
	if defaultVoice == "" {
		defaultVoice = "aura-2-thalia-en"
	}

	return &Synthesizer{
		apiKey:       apiKey,
		baseURL:      defaultBaseURL,
		defaultVoice: defaultVoice,
		client:       &http.Client{},
		store:        store,
	}, nil
}

func (s *Synthesizer) GetName() string {
	return "deepgram"
}

// SetBaseURL 覆盖接口地址（测试用）
func (s *Synthesizer) SetBaseURL(baseURL string) {
	s.baseURL = baseURL
}

// Synthesize 合成一段文本并返回片段引用
// 场景演员的voiceId（v1/v2等）不是Deepgram的voice模型，统一落到默认voice；
// 传入aura-*形式的ID则按原样使用
func (s *Synthesizer) Synthesize(ctx context.Context, text string, voiceID string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errors.New("empty text for synthesis")
	}

	voice := s.defaultVoice
	if strings.HasPrefix(voiceID, "aura-") {
		voice = voiceID
	}

	requestBody, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", err
	}

	urlValues := url.Values{}
	urlValues.Set("model", voice)
	urlValues.Set("encoding", "linear16")
	urlValues.Set("container", "wav")

	apiURL := s.baseURL + "/v1/speak?" + urlValues.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, "POST", apiURL, bytes.NewBuffer(requestBody))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Token "+s.apiKey)

	httpResp, err := s.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		return "", fmt.Errorf("deepgram speak error(%d): %s", httpResp.StatusCode, string(body))
	}

	audio, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read deepgram audio: %w", err)
	}

	ref, err := s.store.SaveClip("clips", uuid.NewString()+".wav", audio)
	if err != nil {
		return "", err
	}

	return "/" + ref, nil
}
