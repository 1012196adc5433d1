package api

import (
	"time"

	"recipe-importer/internal/api/handlers/health"
	"recipe-importer/internal/api/handlers/imports"
	"recipe-importer/internal/api/middleware"
	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// 請求體大小限制 (25MB，影片上傳走 multipart)
const maxBodySize = 25 << 20

// Dependencies 路由依賴
type Dependencies struct {
	Importer imports.ImportService
	// Features、Checks 顯示於健康檢查
	Features map[string]bool
	Checks   map[string]health.Check
	Registry *prometheus.Registry
}

// SetupRouter 設置路由
func SetupRouter(cfg *config.Config, deps Dependencies) *gin.Engine {
	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	// 設置 gin 模式
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.NoRoute(func(c *gin.Context) {
		c.JSON(common.ErrNotFound.Status, common.ErrNotFound.Response())
	})
	router.NoMethod(func(c *gin.Context) {
		c.JSON(common.ErrMethodNotAllowed.Status, common.ErrMethodNotAllowed.Response())
	})

	// 註冊基礎中間件
	router.Use(middleware.Recovery())
	router.Use(requestid.New()) // 自動生成請求 ID
	router.Use(middleware.Logger())
	if deps.Registry != nil {
		router.Use(middleware.NewHTTPMetrics(deps.Registry).Handler())
	}

	// CORS 設置
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.Use(middleware.BodySizeLimit(maxBodySize))

	// 健康檢查路由
	healthHandler := health.NewHandler(cfg.App.Version, deps.Features, deps.Checks)
	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/ready", healthHandler.ReadinessCheck)
	router.GET("/live", healthHandler.LivenessCheck)

	if deps.Registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{Registry: deps.Registry})))
	}

	// API 路由組
	importHandler := imports.NewHandler(deps.Importer, cfg.Server.ImportTimeout, cfg.Server.UploadDir, cfg.App.Debug)
	api := router.Group("/api/v1")
	if cfg.RateLimit.Enabled {
		api.Use(middleware.RateLimit(middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, cfg.RateLimit.Burst)))
	}
	{
		importGroup := api.Group("/import")
		importGroup.POST("", middleware.Deduplication(cfg.DedupWindow), importHandler.HandleImport)
		importGroup.POST("/upload", importHandler.HandleUpload)
		importGroup.GET("/abstains", importHandler.HandleAbstains)
	}

	common.LogInfo("Router setup completed successfully",
		zap.Bool("metrics_enabled", deps.Registry != nil),
		zap.Bool("rate_limit_enabled", cfg.RateLimit.Enabled),
		zap.Duration("import_timeout", cfg.Server.ImportTimeout),
		zap.Int64("max_body_size", maxBodySize),
	)

	return router
}
