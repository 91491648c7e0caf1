// internal/config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/joho/godotenv"
)

// 当前配置的单例实例
var (
	currentConfig *AppConfig
	configMutex   sync.RWMutex
)

// AppConfig 包含应用程序的所有配置
type AppConfig struct {
	// 基础配置
	Port      string `json:"port"`
	DataDir   string `json:"data_dir"`
	LogDir    string `json:"log_dir"`
	DebugMode bool   `json:"debug_mode"`

	// LLM相关配置
	LLMProvider string            `json:"llm_provider"`
	LLMConfig   map[string]string `json:"llm_config"`

	// TTS相关配置
	TTSProvider    string `json:"tts_provider"` // mock 或 deepgram
	DeepgramAPIKey string `json:"deepgram_api_key,omitempty"`
	DeepgramVoice  string `json:"deepgram_voice,omitempty"`
}

// Load 从环境变量加载配置
func Load() (*AppConfig, error) {
	// 尝试加载.env文件（可选）
	godotenv.Load()

	config := &AppConfig{
		Port:      getEnv("PORT", "8080"),
		DataDir:   getEnvPath("DATA_DIR", "data"),
		LogDir:    getEnvPath("LOG_DIR", "logs"),
		DebugMode: getEnvBool("DEBUG_MODE", true),

		LLMProvider: getEnv("LLM_PROVIDER", "google"),
		LLMConfig: map[string]string{
			"api_key":       resolveLLMAPIKey(),
			"default_model": getEnv("LLM_MODEL", ""),
		},

		TTSProvider:    getEnv("TTS_PROVIDER", "mock"),
		DeepgramAPIKey: getEnv("DEEPGRAM_API_KEY", ""),
		DeepgramVoice:  getEnv("DEEPGRAM_VOICE", "aura-2-thalia-en"),
	}

	if config.LLMConfig["api_key"] == "" {
		// 只记录警告，不返回错误：服务可以先起来，对话轮次会按动作失败处理
		log.Println("warning: no LLM api key configured, dialogue generation will fail until one is set")
	}

	return config, nil
}

// resolveLLMAPIKey 按提供者惯用的环境变量名解析API密钥
func resolveLLMAPIKey() string {
	for _, key := range []string{"LLM_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY", "ANTHROPIC_API_KEY"} {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvPath 获取环境变量表示的路径，如果不存在则返回默认值
func getEnvPath(key, defaultValue string) string {
	path := getEnv(key, defaultValue)

	// 确保目录存在
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0755); err != nil {
			fmt.Printf("warning: failed to create directory %s: %v\n", path, err)
		}
	}

	return path
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// InitConfig 初始化配置单例
func InitConfig() error {
	config, err := Load()
	if err != nil {
		return err
	}

	configMutex.Lock()
	defer configMutex.Unlock()
	currentConfig = config
	return nil
}

// GetCurrentConfig 返回当前配置的副本
func GetCurrentConfig() *AppConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if currentConfig == nil {
		// 紧急情况，返回一个基本配置
		baseConfig, _ := Load()
		return baseConfig
	}

	configCopy := *currentConfig
	return &configCopy
}

// SetCurrentConfig 替换配置单例（测试用）
func SetCurrentConfig(config *AppConfig) {
	configMutex.Lock()
	defer configMutex.Unlock()
	currentConfig = config
}
