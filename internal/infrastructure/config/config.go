package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 應用配置
type Config struct {
	App         AppConfig        `mapstructure:"app"`
	Server      ServerConfig     `mapstructure:"server"`
	OpenRouter  OpenRouterConfig `mapstructure:"openrouter"`
	Import      ImportConfig     `mapstructure:"import"`
	Services    ServicesConfig   `mapstructure:"services"`
	Redis       RedisConfig      `mapstructure:"redis"`
	RateLimit   RateLimitConfig  `mapstructure:"rate_limit"`
	Image       ImageConfig      `mapstructure:"image"`
	Cache       CacheConfig      `mapstructure:"cache"`
	DedupWindow time.Duration    `mapstructure:"dedup_window"`
	LogLevel    string           `mapstructure:"log_level"`
	LogDir      string           `mapstructure:"log_dir"`
}

// AppConfig 應用程式設定
type AppConfig struct {
	Env     string `mapstructure:"env"`
	Debug   bool   `mapstructure:"debug"`
	Version string `mapstructure:"version"`
	Name    string `mapstructure:"name"`
}

// ServerConfig 服務器配置
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	// ImportTimeout 單次匯入的上限（含所有 fallback）
	ImportTimeout time.Duration `mapstructure:"import_timeout"`
	UploadDir     string        `mapstructure:"upload_dir"`
}

// OpenRouterConfig OpenRouter 配置
type OpenRouterConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	VisionModel string        `mapstructure:"vision_model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
	// RequestsPerMinute 對外 AI 請求的速率上限
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
}

// ImportConfig 匯入管線的調整參數
type ImportConfig struct {
	MinIngredientSupport float64 `mapstructure:"min_ingredient_support"`
	MinStepSupport       float64 `mapstructure:"min_step_support"`
	DefaultPolicy        string  `mapstructure:"default_policy"`
	EnableReconcile      bool    `mapstructure:"enable_reconcile"`
	AbstainCapacity      int     `mapstructure:"abstain_capacity"`
	Language             string  `mapstructure:"language"`
	MinPageTextChars     int     `mapstructure:"min_page_text_chars"`
	MinTranscriptChars   int     `mapstructure:"min_transcript_chars"`
	MinVideoTextChars    int     `mapstructure:"min_video_text_chars"`
	FrameIntervalSeconds int     `mapstructure:"frame_interval_seconds"`
}

// ServicesConfig 外部服務端點
type ServicesConfig struct {
	ReaderProxyURL   string        `mapstructure:"reader_proxy_url"`
	ReaderAPIKey     string        `mapstructure:"reader_api_key"`
	TranscribeURL    string        `mapstructure:"transcribe_url"`
	TranscribeAPIKey string        `mapstructure:"transcribe_api_key"`
	VideoExtractURL  string        `mapstructure:"video_extract_url"`
	HTTPTimeout      time.Duration `mapstructure:"http_timeout"`
	MediaTimeout     time.Duration `mapstructure:"media_timeout"`
	UserAgent        string        `mapstructure:"user_agent"`
	MaxHTMLBytes     int64         `mapstructure:"max_html_bytes"`
}

// RedisConfig abstain 遙測鏡像（可選）
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
}

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
	Burst    int           `mapstructure:"burst"`
}

// ImageConfig 圖片配置
type ImageConfig struct {
	MaxSizeBytes int64 `mapstructure:"max_size_bytes"`
	MaxDimension int   `mapstructure:"max_dimension"`
	MaxPixels    int64 `mapstructure:"max_pixels"` // 解碼前以標頭尺寸檢查
}

// CacheConfig AI 補全快取
type CacheConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	MaxSize         int           `mapstructure:"max_size"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// LoadConfig 載入設定（全局 viper，.env 可選）
func LoadConfig() (*Config, error) {
	// .env 不存在時直接使用環境變數
	_ = godotenv.Load()
	return Load(viper.GetViper())
}

// Load 使用指定的 viper 實例載入設定，方便測試隔離
func Load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindings := map[string]string{
		"openrouter.api_key":          "OPENROUTER_API_KEY",
		"openrouter.model":            "OPENROUTER_MODEL",
		"openrouter.vision_model":     "OPENROUTER_VISION_MODEL",
		"openrouter.max_tokens":       "MODEL_MAX_TOKENS",
		"services.reader_api_key":     "JINA_API_KEY",
		"services.transcribe_api_key": "TRANSCRIBE_API_KEY",
		"redis.addr":                  "REDIS_ADDR",
		"redis.password":              "REDIS_PASSWORD",
		"rate_limit.enabled":          "RATE_LIMIT_ENABLED",
		"rate_limit.requests":         "RATE_LIMIT_REQUESTS",
		"rate_limit.window":           "RATE_LIMIT_WINDOW",
		"dedup_window":                "DEDUP_WINDOW",
		"log_level":                   "LOG_LEVEL",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", env, err)
		}
	}

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// MaskAPIKey 遮罩 API Key，只顯示前後各 4 個字符
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// setDefaults 設定預設值
func setDefaults(v *viper.Viper) {
	// 應用程式設定
	v.SetDefault("app.env", "development")
	v.SetDefault("app.debug", true)
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.name", "recipe-importer")

	// 伺服器設定
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "6m")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.import_timeout", "5m")
	v.SetDefault("server.upload_dir", "")

	// OpenRouter 設定
	v.SetDefault("openrouter.enabled", false)
	v.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openrouter.model", "qwen/qwen-2.5-72b-instruct:free")
	v.SetDefault("openrouter.vision_model", "qwen/qwen2.5-vl-72b-instruct:free")
	v.SetDefault("openrouter.max_tokens", 2000)
	v.SetDefault("openrouter.timeout", "60s")
	v.SetDefault("openrouter.requests_per_minute", 60)

	// 匯入管線
	v.SetDefault("import.min_ingredient_support", 0.5)
	v.SetDefault("import.min_step_support", 0.5)
	v.SetDefault("import.default_policy", "conservative")
	v.SetDefault("import.enable_reconcile", true)
	v.SetDefault("import.abstain_capacity", 20)
	v.SetDefault("import.language", "en")
	v.SetDefault("import.min_page_text_chars", 50)
	v.SetDefault("import.min_transcript_chars", 10)
	v.SetDefault("import.min_video_text_chars", 20)
	v.SetDefault("import.frame_interval_seconds", 2)

	// 外部服務
	v.SetDefault("services.reader_proxy_url", "https://r.jina.ai")
	v.SetDefault("services.transcribe_url", "")
	v.SetDefault("services.video_extract_url", "")
	v.SetDefault("services.http_timeout", "30s")
	v.SetDefault("services.media_timeout", "5m")
	v.SetDefault("services.user_agent", "Mozilla/5.0 (compatible; recipe-importer/1.0)")
	v.SetDefault("services.max_html_bytes", 5*1024*1024) // 5MB

	// Redis
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key", "recipe-importer:abstains")

	// 限流設定
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests", 100)
	v.SetDefault("rate_limit.window", "1m")
	v.SetDefault("rate_limit.burst", 20)

	// 圖片設定
	v.SetDefault("image.max_size_bytes", 10*1024*1024) // 10MB
	v.SetDefault("image.max_dimension", 1600)
	v.SetDefault("image.max_pixels", 40_000_000)

	// 快取設定
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.max_size", 256)
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("cache.cleanup_interval", "10m")

	v.SetDefault("dedup_window", "1s")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_dir", "logs")
}

// validateConfig 驗證設定
func validateConfig(config *Config) error {
	if config.Server.Port == 0 {
		return fmt.Errorf("server port is required")
	}

	imp := config.Import
	if imp.MinIngredientSupport < 0 || imp.MinIngredientSupport > 1 {
		return fmt.Errorf("import.min_ingredient_support must be within [0,1]")
	}
	if imp.MinStepSupport < 0 || imp.MinStepSupport > 1 {
		return fmt.Errorf("import.min_step_support must be within [0,1]")
	}
	switch imp.DefaultPolicy {
	case "verbatim", "conservative", "enrich":
	default:
		return fmt.Errorf("invalid import.default_policy %q", imp.DefaultPolicy)
	}
	if imp.AbstainCapacity <= 0 {
		return fmt.Errorf("invalid import.abstain_capacity")
	}

	if config.Services.HTTPTimeout <= 0 || config.Services.MediaTimeout <= 0 {
		return fmt.Errorf("service timeouts must be positive")
	}
	if config.Services.MaxHTMLBytes <= 0 {
		return fmt.Errorf("services max html bytes must be positive")
	}
	if config.Image.MaxPixels <= 0 {
		return fmt.Errorf("image max pixels must be positive")
	}

	if config.RateLimit.Enabled {
		if config.RateLimit.Requests <= 0 {
			return fmt.Errorf("invalid rate limit requests")
		}
		if config.RateLimit.Window <= 0 {
			return fmt.Errorf("invalid rate limit window")
		}
	}

	if config.OpenRouter.Enabled && config.OpenRouter.APIKey == "" {
		return fmt.Errorf("openrouter.api_key is required when openrouter is enabled")
	}

	if config.Cache.Enabled && (config.Cache.MaxSize <= 0 || config.Cache.TTL <= 0) {
		return fmt.Errorf("cache.max_size and cache.ttl must be positive when cache is enabled")
	}

	if config.Redis.Enabled && config.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}

	return nil
}
