// Package cache 快取確定性 AI 補全結果。溫度為 0 的請求對相同輸入應得到相同輸出，
// 重複匯入同一份內容時不必再次呼叫模型。
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/pkg/common"

	"go.uber.org/zap"
)

// Completer 被快取的補全來源
type Completer interface {
	CompleteDeterministic(ctx context.Context, system, user string) (string, error)
}

// entry 快取條目
type entry struct {
	value       string
	expiresAt   time.Time
	lastAccess  time.Time
	accessCount int
}

// Stats 快取統計
type Stats struct {
	Size      int   `json:"size"`
	MaxSize   int   `json:"max_size"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

// CompletionCache 以 TTL 與 LRU 淘汰的補全快取
type CompletionCache struct {
	next    Completer
	maxSize int
	ttl     time.Duration
	now     func() time.Time

	mu    sync.Mutex
	store map[string]*entry
	stats Stats

	stop chan struct{}
	once sync.Once
}

// NewCompletionCache 包裝 next；cfg.CleanupInterval > 0 時啟動背景清理
func NewCompletionCache(next Completer, cfg config.CacheConfig) *CompletionCache {
	c := &CompletionCache{
		next:    next,
		maxSize: cfg.MaxSize,
		ttl:     cfg.TTL,
		now:     time.Now,
		store:   make(map[string]*entry),
		stop:    make(chan struct{}),
	}
	if cfg.CleanupInterval > 0 {
		go c.startCleanup(cfg.CleanupInterval)
	}

	common.LogInfo("補全快取已初始化",
		zap.Int("max_size", cfg.MaxSize),
		zap.Duration("ttl", cfg.TTL),
		zap.Duration("cleanup_interval", cfg.CleanupInterval),
	)
	return c
}

// CompleteDeterministic 命中時直接回傳；失敗的呼叫不寫入快取
func (c *CompletionCache) CompleteDeterministic(ctx context.Context, system, user string) (string, error) {
	key := generateKey(system, user)
	if value, ok := c.get(key); ok {
		common.LogDebug("補全快取命中", zap.String("key", key[:12]))
		return value, nil
	}

	value, err := c.next.CompleteDeterministic(ctx, system, user)
	if err != nil {
		return "", err
	}
	c.set(key, value)
	return value, nil
}

func (c *CompletionCache) get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.store[key]
	if !ok {
		c.stats.Misses++
		return "", false
	}
	now := c.now()
	if now.After(e.expiresAt) {
		delete(c.store, key)
		c.stats.Evictions++
		c.stats.Misses++
		return "", false
	}
	e.lastAccess = now
	e.accessCount++
	c.stats.Hits++
	return e.value, true
}

func (c *CompletionCache) set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxSize {
		c.cleanup()
		if len(c.store) >= c.maxSize {
			c.evictLRU()
		}
	}

	now := c.now()
	c.store[key] = &entry{
		value:      value,
		expiresAt:  now.Add(c.ttl),
		lastAccess: now,
	}
}

// generateKey system 與 user 之間以 NUL 分隔，避免串接後碰撞
func generateKey(system, user string) string {
	hash := sha256.Sum256([]byte(system + "\x00" + user))
	return hex.EncodeToString(hash[:])
}

func (c *CompletionCache) startCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			n := c.cleanup()
			size := len(c.store)
			c.mu.Unlock()
			if n > 0 {
				common.LogDebug("清理過期補全快取", zap.Int("count", n), zap.Int("remaining_size", size))
			}
		case <-c.stop:
			return
		}
	}
}

// cleanup 移除過期條目，呼叫端需持有鎖
func (c *CompletionCache) cleanup() int {
	now := c.now()
	count := 0
	for key, e := range c.store {
		if now.After(e.expiresAt) {
			delete(c.store, key)
			count++
		}
	}
	c.stats.Evictions += int64(count)
	return count
}

// evictLRU 淘汰存取次數最少者，同次數時淘汰最久未使用者
func (c *CompletionCache) evictLRU() {
	var (
		oldestKey string
		oldest    *entry
	)
	for key, e := range c.store {
		if oldest == nil ||
			e.accessCount < oldest.accessCount ||
			(e.accessCount == oldest.accessCount && e.lastAccess.Before(oldest.lastAccess)) {
			oldestKey, oldest = key, e
		}
	}
	if oldest != nil {
		delete(c.store, oldestKey)
		c.stats.Evictions++
	}
}

// Stats 目前的統計
func (c *CompletionCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = len(c.store)
	s.MaxSize = c.maxSize
	return s
}

// Close 停止背景清理並清空快取
func (c *CompletionCache) Close() error {
	c.once.Do(func() { close(c.stop) })

	c.mu.Lock()
	defer c.mu.Unlock()
	c.store = make(map[string]*entry)
	common.LogInfo("補全快取已關閉",
		zap.Int64("hits", c.stats.Hits),
		zap.Int64("misses", c.stats.Misses),
		zap.Int64("evictions", c.stats.Evictions),
	)
	return nil
}
