package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/pkg/common"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const redisOpTimeout = 2 * time.Second

// RedisRecorder 將 abstain 事件鏡像到 Redis list，讓多個實例共享診斷資料。
// Redis 失敗時退回本地 ring buffer。
type RedisRecorder struct {
	client   *redis.Client
	key      string
	capacity int
	local    *RingBuffer
}

// NewRedisRecorder 連線並建立 recorder
func NewRedisRecorder(ctx context.Context, cfg config.RedisConfig, capacity int) (*RedisRecorder, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// 測試連接
	pingCtx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisRecorderWithClient(client, cfg.Key, capacity), nil
}

// NewRedisRecorderWithClient 使用既有 client 建立 recorder（不做連線測試）
func NewRedisRecorderWithClient(client *redis.Client, key string, capacity int) *RedisRecorder {
	local := NewRingBuffer(capacity)
	if key == "" {
		key = "recipe-importer:abstains"
	}
	return &RedisRecorder{
		client:   client,
		key:      key,
		capacity: local.Capacity(),
		local:    local,
	}
}

// Record 寫入本地並推送到 Redis（LPUSH + LTRIM 維持容量）
func (r *RedisRecorder) Record(ctx context.Context, event AbstainEvent) {
	r.local.Record(ctx, event)

	data, err := json.Marshal(event)
	if err != nil {
		common.LogWarn("abstain 事件序列化失敗", zap.Error(err))
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	_, err = r.client.TxPipelined(opCtx, func(pipe redis.Pipeliner) error {
		pipe.LPush(opCtx, r.key, data)
		pipe.LTrim(opCtx, r.key, 0, int64(r.capacity-1))
		return nil
	})
	if err != nil {
		common.LogWarn("abstain 事件寫入 Redis 失敗", zap.String("key", r.key), zap.Error(err))
	}
}

// Recent 由舊到新讀取；Redis 不可用時回傳本地快照
func (r *RedisRecorder) Recent(ctx context.Context) []AbstainEvent {
	opCtx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	items, err := r.client.LRange(opCtx, r.key, 0, int64(r.capacity-1)).Result()
	if err != nil {
		common.LogWarn("讀取 Redis abstain 事件失敗，改用本地紀錄", zap.Error(err))
		return r.local.Recent(ctx)
	}

	// LPUSH 讓最新的在前面，反轉成由舊到新
	events := make([]AbstainEvent, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		var ev AbstainEvent
		if err := json.Unmarshal([]byte(items[i]), &ev); err != nil {
			common.LogWarn("略過無法解析的 abstain 事件", zap.Error(err))
			continue
		}
		events = append(events, ev)
	}
	return events
}

// Ping 就緒檢查
func (r *RedisRecorder) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close 關閉連線
func (r *RedisRecorder) Close() error {
	return r.client.Close()
}
