// internal/services/llm_service.go
package services

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/manchai/scene-director/internal/config"
	"github.com/manchai/scene-director/internal/llm"
)

var ErrLLMNotReady = errors.New("llm service not ready")

// 各提供者的默认模型
var providerDefaultModels = map[string]string{
	"google":    "gemini-2.0-flash",
	"anthropic": "claude-haiku-4-5",
}

// LLMService 提供统一的大语言模型调用接口
type LLMService struct {
	providerMutex sync.RWMutex
	provider      llm.Provider
	providerName  string
	cache         *llmCache
	isReady       bool
	readyState    string
	defaultModel  string
}

type llmCache struct {
	mutex      sync.RWMutex
	entries    map[string]*cacheEntry
	expiration time.Duration
}

type cacheEntry struct {
	text      string
	createdAt time.Time
}

// NewLLMService 根据当前配置创建LLM服务
// 配置缺失时服务照常返回，保持未就绪状态，调用时报 ErrLLMNotReady
func NewLLMService() (*LLMService, error) {
	service := newBaseLLMService()

	cfg := config.GetCurrentConfig()
	if cfg == nil {
		service.readyState = "failed to retrieve configuration"
		return service, nil
	}

	if cfg.LLMProvider == "" || cfg.LLMConfig == nil || cfg.LLMConfig["api_key"] == "" {
		service.readyState = "API key not configured"
		return service, nil
	}

	provider, err := llm.GetProvider(cfg.LLMProvider, cfg.LLMConfig)
	if err != nil {
		service.readyState = fmt.Sprintf("provider init failed: %v", err)
		return service, nil
	}

	service.provider = provider
	service.providerName = cfg.LLMProvider
	service.defaultModel = cfg.LLMConfig["default_model"]
	if service.defaultModel == "" {
		service.defaultModel = providerDefaultModels[cfg.LLMProvider]
	}
	service.isReady = true
	service.readyState = "ready"
	return service, nil
}

// NewEmptyLLMService 创建未配置的LLM服务（测试和冷启动用）
func NewEmptyLLMService() *LLMService {
	return newBaseLLMService()
}

// NewLLMServiceWithProvider 用现成的提供者创建服务（测试用）
func NewLLMServiceWithProvider(name string, provider llm.Provider) *LLMService {
	service := newBaseLLMService()
	service.provider = provider
	service.providerName = name
	service.isReady = true
	service.readyState = "ready"
	return service
}

func newBaseLLMService() *LLMService {
	return &LLMService{
		readyState: "not configured",
		cache: &llmCache{
			entries:    make(map[string]*cacheEntry),
			expiration: 10 * time.Minute,
		},
	}
}

// IsReady 服务是否已就绪
func (s *LLMService) IsReady() bool {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.isReady
}

// GetReadyState 获取就绪状态描述
func (s *LLMService) GetReadyState() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.readyState
}

// GetProviderName 获取当前提供者名称
func (s *LLMService) GetProviderName() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.providerName
}

// CreateCompletion 执行一次补全调用
// 不做任何重试：每个外部调用都是一次性的尽力而为
func (s *LLMService) CreateCompletion(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.providerMutex.RLock()
	if !s.isReady || s.provider == nil {
		state := s.readyState
		s.providerMutex.RUnlock()
		return nil, fmt.Errorf("%w: %s", ErrLLMNotReady, state)
	}
	provider := s.provider
	s.providerMutex.RUnlock()

	if req.Model == "" {
		req.Model = s.defaultModel
	}

	return provider.CompleteText(ctx, req)
}

// CreateStructuredCompletion 请求JSON格式输出并解析到outputSchema
func (s *LLMService) CreateStructuredCompletion(ctx context.Context, prompt, systemPrompt string, outputSchema interface{}) error {
	cacheKey := s.generateCacheKey(prompt, systemPrompt)
	if text, ok := s.cache.get(cacheKey); ok {
		if json.Unmarshal([]byte(text), outputSchema) == nil {
			return nil
		}
	}

	// 修改系统提示以请求特定格式
	structuredSystemPrompt := systemPrompt
	if structuredSystemPrompt != "" {
		structuredSystemPrompt += "\n\n"
	}
	structuredSystemPrompt += "Return your response in valid JSON format, following the provided output schema, without adding explanations or preambles."

	resp, err := s.CreateCompletion(ctx, llm.CompletionRequest{
		Prompt:       prompt,
		SystemPrompt: structuredSystemPrompt,
		Temperature:  0.3,
	})
	if err != nil {
		return err
	}

	text := cleanJSONString(resp.Text)
	if err := json.Unmarshal([]byte(text), outputSchema); err != nil {
		return fmt.Errorf("failed to parse AI response into structured data: %w\nAI return: %s", err, text)
	}

	s.cache.put(cacheKey, text)
	return nil
}

func (s *LLMService) generateCacheKey(prompt, systemPrompt string) string {
	s.providerMutex.RLock()
	model := s.defaultModel
	s.providerMutex.RUnlock()
	return fmt.Sprintf("%x", md5.Sum([]byte(prompt+"|"+systemPrompt+"|"+model)))
}

func (c *llmCache) get(key string) (string, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.entries[key]
	if !exists || time.Since(entry.createdAt) > c.expiration {
		return "", false
	}
	return entry.text, true
}

func (c *llmCache) put(key, text string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries[key] = &cacheEntry{text: text, createdAt: time.Now()}
}

// 清理JSON字符串，去除markdown围栏等前后噪音
var jsonNoiseReplacer = strings.NewReplacer(
	"```json", "",
	"```", "",
	"\ufeff", "",
	"\u00a0", " ",
)

func cleanJSONString(text string) string {
	text = strings.TrimSpace(jsonNoiseReplacer.Replace(text))

	// 截取首个JSON结构的起止范围，丢掉模型附带的解释文字
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return text
	}

	var end int
	if text[start] == '{' {
		end = strings.LastIndex(text, "}")
	} else {
		end = strings.LastIndex(text, "]")
	}
	if end <= start {
		return text[start:]
	}
	return text[start : end+1]
}
