// internal/storage/audio_store.go
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// AudioStore 保存合成的音频片段并给出可访问的引用路径
// 片段按会话分目录存放，写入是原子性的
type AudioStore struct {
	BaseDir string

	// 并发控制
	fileLocks sync.Map // 文件级别锁 path -> *sync.Mutex
}

// NewAudioStore 创建音频存储
func NewAudioStore(baseDir string) (*AudioStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audio directory: %w", err)
	}

	return &AudioStore{BaseDir: baseDir}, nil
}

// 获取文件锁
func (as *AudioStore) getFileLock(fullPath string) *sync.Mutex {
	value, _ := as.fileLocks.LoadOrStore(fullPath, &sync.Mutex{})
	return value.(*sync.Mutex)
}

// SaveClip 保存一段音频，返回相对引用路径（例如 audio/sess1/clip.wav）
func (as *AudioStore) SaveClip(sessionID, filename string, content []byte) (string, error) {
	sessionID = sanitizeSegment(sessionID)
	filename = sanitizeSegment(filename)

	fullDirPath := filepath.Join(as.BaseDir, sessionID)
	fullPath := filepath.Join(fullDirPath, filename)

	lock := as.getFileLock(fullPath)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(fullDirPath, 0755); err != nil {
		return "", fmt.Errorf("failed to create clip directory: %w", err)
	}

	// 原子性文件写入
	tempPath := fullPath + ".tmp"
	if err := os.WriteFile(tempPath, content, 0644); err != nil {
		return "", fmt.Errorf("failed to write temp clip: %w", err)
	}
	if err := os.Rename(tempPath, fullPath); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to save clip: %w", err)
	}

	return "audio/" + sessionID + "/" + filename, nil
}

// ClipPath 返回片段的磁盘路径
func (as *AudioStore) ClipPath(sessionID, filename string) string {
	return filepath.Join(as.BaseDir, sanitizeSegment(sessionID), sanitizeSegment(filename))
}

// sanitizeSegment 防止路径穿越
func sanitizeSegment(segment string) string {
	segment = strings.ReplaceAll(segment, "..", "")
	segment = strings.ReplaceAll(segment, "/", "_")
	segment = strings.ReplaceAll(segment, "\\", "_")
	if segment == "" {
		segment = "default"
	}
	return segment
}
