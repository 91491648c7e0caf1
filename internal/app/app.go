// internal/app/app.go
package app

import (
	"fmt"
	"path/filepath"

	"github.com/manchai/scene-director/internal/api"
	"github.com/manchai/scene-director/internal/config"
	"github.com/manchai/scene-director/internal/di"
	"github.com/manchai/scene-director/internal/services"
	"github.com/manchai/scene-director/internal/storage"
	"github.com/manchai/scene-director/internal/tts"
	"github.com/manchai/scene-director/internal/tts/deepgram"
	"github.com/manchai/scene-director/internal/tts/mock"
	"github.com/manchai/scene-director/internal/utils"

	// 注册LLM提供者
	_ "github.com/manchai/scene-director/internal/llm/providers/anthropic"
	_ "github.com/manchai/scene-director/internal/llm/providers/google"
)

// InitServices 按依赖顺序初始化并注册所有服务
// 路由层只从容器取用，这里是唯一的装配点
func InitServices() error {
	cfg := config.GetCurrentConfig()
	container := di.GetContainer()
	logger := utils.GetLogger()

	// LLM服务：没有API key也照常注册，轮次会按动作失败降级
	llmService, err := services.NewLLMService()
	if err != nil {
		return fmt.Errorf("failed to create llm service: %w", err)
	}
	container.Register("llm", llmService)
	logger.Infof("llm service registered (ready=%v, provider=%s)", llmService.IsReady(), llmService.GetProviderName())

	// TTS合成器：默认占位实现，配置了deepgram时切换
	synthesizer, err := buildSynthesizer(cfg)
	if err != nil {
		logger.Warnf("falling back to mock tts: %v", err)
		synthesizer = mock.NewSynthesizer()
	}
	container.Register("tts", synthesizer)
	logger.Infof("tts synthesizer registered: %s", synthesizer.GetName())

	// 会话内存
	memoryService := services.NewMemoryService()
	container.Register("memory", memoryService)

	// 会话锁
	lockManager := services.NewLockManager()
	container.Register("locks", lockManager)

	// 对话生成
	dialogueService := services.NewDialogueService(llmService)
	container.Register("dialogue", dialogueService)

	// 执行器与规划器
	executorService := services.NewExecutorService(dialogueService, synthesizer)
	container.Register("executor", executorService)

	plannerService := services.NewPlannerService(memoryService, dialogueService)
	container.Register("planner", plannerService)

	// 轮次协调器
	turnService := services.NewTurnService(plannerService, executorService, memoryService, lockManager)
	container.Register("turn", turnService)

	// WebSocket推送中心，订阅轮次完成事件
	hub := api.NewSessionHub()
	turnService.AddObserver(hub)
	container.Register("hub", hub)

	return nil
}

// buildSynthesizer 按配置选择TTS实现
func buildSynthesizer(cfg *config.AppConfig) (tts.Synthesizer, error) {
	switch cfg.TTSProvider {
	case "deepgram":
		audioStore, err := storage.NewAudioStore(filepath.Join(cfg.DataDir, "audio"))
		if err != nil {
			return nil, err
		}
		return deepgram.NewSynthesizer(cfg.DeepgramAPIKey, cfg.DeepgramVoice, audioStore)
	case "", "mock":
		return mock.NewSynthesizer(), nil
	default:
		return nil, fmt.Errorf("unknown tts provider: %s", cfg.TTSProvider)
	}
}
