package app

import (
	"context"
	"testing"
	"time"

	"recipe-importer/internal/core/importer"
	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/pkg/common"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseConfig() *config.Config {
	return &config.Config{
		Import: config.ImportConfig{
			MinIngredientSupport: 0.5,
			MinStepSupport:       0.5,
			DefaultPolicy:        "conservative",
			AbstainCapacity:      5,
			Language:             "en",
			MinPageTextChars:     50,
			MinTranscriptChars:   10,
			MinVideoTextChars:    20,
		},
	}
}

func TestNewImportsTextWithoutServices(t *testing.T) {
	a, err := New(context.Background(), baseConfig(), prometheus.NewRegistry())
	require.NoError(t, err)
	defer a.Close()

	res, err := a.Importer.SmartImport(context.Background(), importer.TextInput{Text: "Toast\nIngredients\n2 slices bread\nSteps\n1. Toast the bread"}, importer.Options{})
	require.NoError(t, err)
	assert.Equal(t, "Toast", res.Recipe.Name)
	assert.Equal(t, importer.PolicyConservative, res.Provenance.Policy)
}

func TestNewWithoutAIFailsImageImport(t *testing.T) {
	a, err := New(context.Background(), baseConfig(), nil)
	require.NoError(t, err)

	_, err = a.Importer.SmartImport(context.Background(), importer.FileInput{URI: "data:image/png;base64,AAAA", MIME: "image/png"}, importer.Options{})
	var ext *common.ExternalServiceError
	require.ErrorAs(t, err, &ext)
	assert.Equal(t, "image-importer", ext.Service)
}

func TestNewRejectsUnknownPolicy(t *testing.T) {
	cfg := baseConfig()
	cfg.Import.DefaultPolicy = "creative"
	_, err := New(context.Background(), cfg, nil)
	assert.True(t, common.IsValidationError(err))
}

func TestRedisUnavailableFallsBackToRingBuffer(t *testing.T) {
	cfg := baseConfig()
	cfg.Redis = config.RedisConfig{Enabled: true, Addr: "127.0.0.1:1"}

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Empty(t, a.closers)
	assert.Empty(t, a.Importer.RecentAbstains(context.Background()))
	assert.NoError(t, a.Close())
}

func TestNewWiresAIWithCompletionCache(t *testing.T) {
	cfg := baseConfig()
	cfg.Import.EnableReconcile = true
	cfg.OpenRouter = config.OpenRouterConfig{Enabled: true, APIKey: "sk-test", BaseURL: "http://127.0.0.1:0", Model: "m", VisionModel: "v"}
	cfg.Cache = config.CacheConfig{Enabled: true, MaxSize: 8, TTL: time.Minute}

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	assert.True(t, a.Features["vision"])
	assert.True(t, a.Features["reconcile"])
	assert.Len(t, a.closers, 1)
}
