// internal/tts/tts.go
package tts

import (
	"context"
	"errors"
)

// 错误定义
var ErrUnknownSynthesizer = errors.New("unknown tts synthesizer")

// Synthesizer 把一段文本渲染成音频，返回可供客户端使用的引用
// 失败时返回错误，调用方按单个动作失败处理，不中断整轮
type Synthesizer interface {
	// 合成音频，返回引用字符串（URL或相对路径）
	Synthesize(ctx context.Context, text string, voiceID string) (string, error)

	// 获取合成器名称
	GetName() string
}
