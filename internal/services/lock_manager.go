// internal/services/lock_manager.go
package services

import (
	"sync"
	"sync/atomic"
	"time"
)

// LockManager 按会话管理互斥锁
// 同一会话的轮次必须串行：两轮并发会在内存的读-改-写上互相覆盖。
// 锁只保护轮次编排本身，不同会话之间互不阻塞
type LockManager struct {
	sessionLocks map[string]*lockInfo
	globalLock   sync.RWMutex

	cleanupTicker *time.Ticker
}

// lockInfo 包装锁和引用信息
// lastUsed在读锁下也会被更新，必须是原子的
type lockInfo struct {
	mutex    *sync.Mutex
	lastUsed atomic.Int64 // unix纳秒
	refs     atomic.Int32 // 正在等待或持有锁的调用方数，非零时不可清理
}

func (info *lockInfo) touch() {
	info.lastUsed.Store(time.Now().UnixNano())
}

// NewLockManager 创建锁管理器
func NewLockManager() *LockManager {
	lm := &LockManager{
		sessionLocks: make(map[string]*lockInfo),
	}

	// 启动清理器
	lm.startCleanup()
	return lm
}

// GetSessionLock 获取会话锁（线程安全）
func (lm *LockManager) GetSessionLock(sessionID string) *sync.Mutex {
	return lm.sessionInfo(sessionID).mutex
}

// sessionInfo 查找或创建会话的锁记录
func (lm *LockManager) sessionInfo(sessionID string) *lockInfo {
	lm.globalLock.RLock()
	if info, exists := lm.sessionLocks[sessionID]; exists {
		lm.globalLock.RUnlock()
		info.touch()
		return info
	}
	lm.globalLock.RUnlock()

	// 升级为写锁
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()

	// 双重检查（在写锁保护下是安全的）
	if info, exists := lm.sessionLocks[sessionID]; exists {
		info.touch()
		return info
	}

	info := &lockInfo{mutex: &sync.Mutex{}}
	info.touch()
	lm.sessionLocks[sessionID] = info
	return info
}

// ExecuteWithSessionLock 在会话锁保护下执行操作
// 持有期间引用计数非零，清理器不会在操作进行中把锁回收掉
func (lm *LockManager) ExecuteWithSessionLock(sessionID string, fn func() error) error {
	info := lm.sessionInfo(sessionID)
	info.refs.Add(1)
	defer info.refs.Add(-1)

	info.mutex.Lock()
	defer info.mutex.Unlock()

	info.touch()
	return fn()
}

// 定期清理长期未使用的锁
func (lm *LockManager) startCleanup() {
	lm.cleanupTicker = time.NewTicker(5 * time.Minute)
	go func() {
		for range lm.cleanupTicker.C {
			lm.cleanupUnusedLocks()
		}
	}()
}

func (lm *LockManager) cleanupUnusedLocks() {
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()

	const maxLocks = 200
	const lockTimeout = 30 * time.Minute

	// 只有在锁数量过多时才清理
	if len(lm.sessionLocks) <= maxLocks {
		return
	}

	now := time.Now()
	for sessionID, info := range lm.sessionLocks {
		// 使用中的锁绝不回收，否则同会话的下一个调用方会拿到新mutex并发跑
		if info.refs.Load() > 0 {
			continue
		}
		if now.Sub(time.Unix(0, info.lastUsed.Load())) > lockTimeout {
			delete(lm.sessionLocks, sessionID)
		}
	}
}
