package api

import (
	"context"
	"net/http"
	"time"

	"recipe-autofind/internal/api/handlers/autofind"
	"recipe-autofind/internal/api/handlers/health"
	"recipe-autofind/internal/api/middleware"
	"recipe-autofind/internal/core/ai/cache"
	"recipe-autofind/internal/core/ai/queue"
	"recipe-autofind/internal/infrastructure/config"
	"recipe-autofind/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// 一般請求的處理時限，任務本身在背景執行
const timeoutDuration = 30 * time.Second

// JobDispatcher HTTP 層需要的任務能力
type JobDispatcher interface {
	autofind.JobService
	Status(ctx context.Context) *queue.Status
}

// Deps 路由依賴
type Deps struct {
	Jobs     JobDispatcher
	Cache    cache.Store
	Checks   map[string]health.Check
	Gatherer prometheus.Gatherer
}

// SetupRouter 設置路由
func SetupRouter(cfg *config.Config, deps Deps) *gin.Engine {
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.Recovery())
	router.Use(requestid.New())
	router.Use(middleware.Logger())
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}))
	router.Use(middleware.BodySizeLimit(cfg.Server.MaxBodySize))
	router.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeoutDuration)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	healthHandler := health.NewHandler(cfg.App.Version, deps.Jobs, deps.Checks)
	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/ready", healthHandler.ReadinessCheck)
	router.GET("/live", healthHandler.LivenessCheck)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := router.Group("/api/v1")
	if cfg.RateLimit.Enabled {
		api.Use(middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window))
	}
	api.Use(middleware.Deduplication(cfg.DedupWindow))

	autofindHandler := autofind.NewHandler(deps.Jobs, deps.Cache)
	autofindGroup := api.Group("/autofind")
	{
		autofindGroup.POST("", autofindHandler.Submit)
		autofindGroup.GET("/jobs/:id", autofindHandler.GetJob)
		autofindGroup.DELETE("/jobs/:id", autofindHandler.CancelJob)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, common.ErrNotFound.Response(false))
	})

	common.LogInfo("Router setup completed",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.Bool("cache_enabled", cfg.Cache.Enabled),
		zap.Bool("rate_limit_enabled", cfg.RateLimit.Enabled),
		zap.Int64("max_body_size", cfg.Server.MaxBodySize),
	)
	return router
}
