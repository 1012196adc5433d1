// Package app 依設定組裝匯入服務與其協作者，供 HTTP 服務與 CLI 共用。
package app

import (
	"context"

	"recipe-importer/internal/core/ai/cache"
	aiservice "recipe-importer/internal/core/ai/service"
	"recipe-importer/internal/core/image"
	"recipe-importer/internal/core/importer"
	"recipe-importer/internal/core/recipe"
	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/infrastructure/external"
	"recipe-importer/internal/pkg/common"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// App 組裝完成的服務
type App struct {
	Importer *importer.Service
	Metrics  *importer.Metrics
	// Features 啟用中的協作服務，顯示於 /health
	Features map[string]bool
	// Checks 就緒檢查
	Checks  map[string]func(ctx context.Context) error
	closers []func() error
}

// New 建立匯入服務；reg 為 nil 時不註冊指標
func New(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (*App, error) {
	policy, err := importer.ParsePolicy(cfg.Import.DefaultPolicy)
	if err != nil {
		return nil, err
	}

	a := &App{Checks: map[string]func(ctx context.Context) error{}}
	if reg != nil {
		a.Metrics = importer.NewMetrics(reg)
	}

	deps := importer.Dependencies{
		Fetcher:  external.NewHTMLFetcher(cfg.Services),
		Resolver: external.NewResolver(cfg.Services),
		Images:   image.NewService(cfg.Image, cfg.Services.HTTPTimeout),
		Metrics:  a.Metrics,
		Recorder: a.recorder(ctx, cfg),
	}
	if cfg.Services.ReaderProxyURL != "" {
		deps.Reader = external.NewReaderProxy(cfg.Services)
	}
	if cfg.Services.TranscribeURL != "" {
		deps.Transcriber = external.NewTranscriber(cfg.Services)
	}
	if cfg.Services.VideoExtractURL != "" {
		deps.VideoExtractor = external.NewVideoExtractor(cfg.Services)
	}

	if cfg.OpenRouter.Enabled && cfg.OpenRouter.APIKey != "" {
		ai := aiservice.NewService(cfg.OpenRouter, nil)
		deps.Completer = ai
		if cfg.Cache.Enabled {
			completions := cache.NewCompletionCache(ai, cfg.Cache)
			a.closers = append(a.closers, completions.Close)
			deps.Completer = completions
		}
		deps.Vision = recipe.NewVisionImporter(ai)
	} else {
		common.LogWarn("OpenRouter 未啟用，圖片匯入與 AI 校正將停用")
	}

	settings := importer.Settings{
		MinIngredientSupport: cfg.Import.MinIngredientSupport,
		MinStepSupport:       cfg.Import.MinStepSupport,
		DefaultPolicy:        policy,
		EnableReconcile:      cfg.Import.EnableReconcile,
		Language:             cfg.Import.Language,
		MinPageTextChars:     cfg.Import.MinPageTextChars,
		MinTranscriptChars:   cfg.Import.MinTranscriptChars,
		MinVideoTextChars:    cfg.Import.MinVideoTextChars,
		FrameIntervalSeconds: cfg.Import.FrameIntervalSeconds,
	}
	a.Importer = importer.NewService(deps, settings)
	a.Features = map[string]bool{
		"reader_proxy":  deps.Reader != nil,
		"transcription": deps.Transcriber != nil,
		"video_extract": deps.VideoExtractor != nil,
		"vision":        deps.Vision != nil,
		"reconcile":     settings.EnableReconcile && deps.Completer != nil,
	}

	common.LogInfo("匯入服務初始化完成",
		zap.String("default_policy", string(policy)),
		zap.Any("features", a.Features),
	)
	return a, nil
}

// recorder Redis 啟用且可連線時使用共享紀錄，否則使用本地 ring buffer
func (a *App) recorder(ctx context.Context, cfg *config.Config) importer.AbstainRecorder {
	capacity := cfg.Import.AbstainCapacity
	if capacity <= 0 {
		capacity = importer.DefaultAbstainCapacity
	}
	if !cfg.Redis.Enabled {
		return importer.NewRingBuffer(capacity)
	}

	rec, err := importer.NewRedisRecorder(ctx, cfg.Redis, capacity)
	if err != nil {
		common.LogWarn("Redis 無法連線，abstain 紀錄改用本地緩衝", zap.Error(err))
		return importer.NewRingBuffer(capacity)
	}
	a.closers = append(a.closers, rec.Close)
	a.Checks["redis"] = rec.Ping
	common.LogInfo("abstain 紀錄使用 Redis", zap.String("addr", cfg.Redis.Addr), zap.String("key", cfg.Redis.Key))
	return rec
}

// Close 釋放外部連線
func (a *App) Close() error {
	var firstErr error
	for _, c := range a.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
