package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 0.5, cfg.Import.MinIngredientSupport)
	assert.Equal(t, 0.5, cfg.Import.MinStepSupport)
	assert.Equal(t, "conservative", cfg.Import.DefaultPolicy)
	assert.Equal(t, 20, cfg.Import.AbstainCapacity)
	assert.True(t, cfg.Import.EnableReconcile)
	assert.Equal(t, "https://r.jina.ai", cfg.Services.ReaderProxyURL)
	assert.Equal(t, 30*time.Second, cfg.Services.HTTPTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Services.MediaTimeout)
	assert.Equal(t, int64(5<<20), cfg.Services.MaxHTMLBytes)
	assert.Equal(t, int64(40_000_000), cfg.Image.MaxPixels)
	assert.False(t, cfg.Redis.Enabled)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 256, cfg.Cache.MaxSize)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("APP_IMPORT_MIN_STEP_SUPPORT", "0.75")
	t.Setenv("APP_IMPORT_DEFAULT_POLICY", "enrich")
	t.Setenv("JINA_API_KEY", "jina-secret")

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 0.75, cfg.Import.MinStepSupport)
	assert.Equal(t, "enrich", cfg.Import.DefaultPolicy)
	assert.Equal(t, "jina-secret", cfg.Services.ReaderAPIKey)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "threshold out of range", mutate: func(c *Config) { c.Import.MinIngredientSupport = 1.5 }},
		{name: "unknown policy", mutate: func(c *Config) { c.Import.DefaultPolicy = "creative" }},
		{name: "zero capacity", mutate: func(c *Config) { c.Import.AbstainCapacity = 0 }},
		{name: "openrouter without key", mutate: func(c *Config) { c.OpenRouter.Enabled = true; c.OpenRouter.APIKey = "" }},
		{name: "cache without size", mutate: func(c *Config) { c.Cache.MaxSize = 0 }},
		{name: "html cap disabled", mutate: func(c *Config) { c.Services.MaxHTMLBytes = 0 }},
		{name: "pixel cap disabled", mutate: func(c *Config) { c.Image.MaxPixels = 0 }},
		{name: "missing port", mutate: func(c *Config) { c.Server.Port = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(viper.New())
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, validateConfig(cfg))
		})
	}
}

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "****", MaskAPIKey("short"))
	assert.Equal(t, "sk-o...cdef", MaskAPIKey("sk-or-1234567890abcdef"))
}
