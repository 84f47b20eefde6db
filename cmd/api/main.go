package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"recipe-autofind/internal/api"
	"recipe-autofind/internal/api/handlers/health"
	"recipe-autofind/internal/core/ai/cache"
	"recipe-autofind/internal/core/ai/openrouter"
	"recipe-autofind/internal/core/ai/queue"
	"recipe-autofind/internal/core/autofind"
	"recipe-autofind/internal/core/dedupe"
	"recipe-autofind/internal/core/recipe"
	"recipe-autofind/internal/core/search"
	"recipe-autofind/internal/core/source"
	"recipe-autofind/internal/infrastructure/config"
	"recipe-autofind/internal/infrastructure/database"
	"recipe-autofind/internal/infrastructure/metrics"
	"recipe-autofind/internal/infrastructure/scheduler"
	"recipe-autofind/internal/pkg/common"
	"recipe-autofind/internal/storage"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	// 載入 .env
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化 logger（需在載入 config 後）
	if err := common.InitLogger(cfg.LogLevel, cfg.LogDir, cfg.LogMode); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	common.LogInfo("載入設定",
		zap.String("openrouter_model", cfg.OpenRouter.Model),
		zap.String("database_driver", cfg.Database.Driver),
		zap.String("queue_backend", cfg.Queue.Backend),
		zap.Int("workers", cfg.Queue.Workers),
	)

	// 資料庫
	db, err := database.Open(cfg.Database)
	if err != nil {
		common.LogFatal("Failed to open database", zap.Error(err))
	}
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db, storage.Models()...); err != nil {
			common.LogFatal("Failed to migrate database", zap.Error(err))
		}
	}
	repo := storage.NewRepository(db)

	// Redis 只在佇列或快取使用時建立
	var redisClient *redis.Client
	if cfg.Queue.Backend == "redis" || (cfg.Cache.Enabled && cfg.Cache.Backend == "redis") {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			common.LogFatal("Failed to connect redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	// 流程元件
	fetcher, err := source.NewFetcher(source.Config{
		Enabled:         source.ParseEnabled(cfg.Sources.Enabled),
		Timeout:         cfg.Sources.Timeout,
		MaxRetries:      cfg.Sources.MaxRetries,
		UserAgent:       cfg.Sources.UserAgent,
		RatePerSecond:   cfg.Sources.RatePerSecond,
		MaxKnown:        cfg.Sources.MaxKnown,
		MaxVague:        cfg.Sources.MaxVague,
		MaxExcerptChars: cfg.Sources.MaxExcerptChars,
		MaxSnapshotSize: cfg.Sources.MaxSnapshotSize,
	}, m)
	if err != nil {
		common.LogFatal("Failed to initialize source fetcher", zap.Error(err))
	}

	generator := recipe.NewGenerator(openrouter.NewClient(cfg.OpenRouter), recipe.Config{
		MaxSources:      cfg.Generation.MaxSources,
		MaxCitations:    cfg.Generation.MaxCitations,
		MaxExcerptChars: cfg.Generation.MaxExcerptChars,
		MaxTokens:       cfg.OpenRouter.MaxTokens,
		Temperature:     cfg.OpenRouter.Temperature,
	})

	checker := dedupe.NewChecker(repo, dedupe.Config{
		Threshold:      cfg.Dedupe.Threshold,
		CandidateLimit: cfg.Dedupe.CandidateLimit,
		Strategy:       cfg.Dedupe.Strategy,
		FailOpen:       cfg.Dedupe.FailOpen,
		Weights: search.ScoreWeights{
			TitleWeight:      cfg.Dedupe.TitleWeight,
			IngredientWeight: cfg.Dedupe.IngredientWeight,
			TitleDistanceCap: cfg.Dedupe.TitleDistanceCap,
		},
	})

	// 佇列
	var jobQueue queue.Queue
	if cfg.Queue.Backend == "redis" {
		jobQueue = queue.NewRedisQueue(redisClient, cfg.Queue.KeyPrefix, cfg.Queue.MaxSize, cfg.Queue.StateTTL)
	} else {
		jobQueue = queue.NewMemoryQueue(cfg.Queue.MaxSize, cfg.Queue.StateTTL)
	}

	orchestrator := autofind.NewOrchestrator(autofind.Deps{
		Fetcher:   fetcher,
		Generator: generator,
		Checker:   checker,
		Store:     repo,
		Reporter:  queue.NewStateReporter(jobQueue),
		Metrics:   m,
	}, autofind.Config{MinSpecificTokens: cfg.Query.MinSpecificTokens})

	dispatcher := queue.NewDispatcher(jobQueue, orchestrator, queue.DispatcherConfig{
		Backend:      cfg.Queue.Backend,
		Workers:      cfg.Queue.Workers,
		MaxQueueSize: cfg.Queue.MaxSize,
		MaxAttempts:  cfg.Queue.MaxAttempts,
		RetryDelay:   cfg.Queue.RetryDelay,
		JobTimeout:   cfg.Queue.JobTimeout,
	}, m)
	dispatcher.Start(context.Background())

	// 任務狀態快取
	stateCache, err := cache.New(cfg.Cache, redisClient, cfg.Queue.KeyPrefix)
	if err != nil {
		common.LogFatal("Failed to initialize cache", zap.Error(err))
	}

	retention := scheduler.NewRetention(repo, cfg.Retention, m)
	if err := retention.Start(); err != nil {
		common.LogFatal("Failed to start retention scheduler", zap.Error(err))
	}

	checks := map[string]health.Check{
		"database": repo.Ping,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	router := api.SetupRouter(cfg, api.Deps{
		Jobs:     dispatcher,
		Cache:    stateCache,
		Checks:   checks,
		Gatherer: prometheus.DefaultGatherer,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		common.LogInfo("啟動應用",
			zap.String("version", cfg.App.Version),
			zap.String("env", cfg.App.Env),
			zap.Int("port", cfg.Server.Port),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			common.LogFatal("Failed to start server", zap.Error(err))
		}
	}()

	// 等待中斷信號
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	common.LogInfo("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		common.LogError("Server forced to shutdown", zap.Error(err))
	}

	// 等待進行中的任務結束後再關閉依賴，逾時的任務會被中斷並排回佇列
	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.Queue.DrainTimeout)
	dispatcher.Shutdown(drainCtx)
	drainCancel()
	retention.Stop()
	if err := jobQueue.Close(); err != nil {
		common.LogWarn("Failed to close queue", zap.Error(err))
	}
	if err := stateCache.Close(); err != nil {
		common.LogWarn("Failed to close cache", zap.Error(err))
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			common.LogWarn("Failed to close redis", zap.Error(err))
		}
	}
	if err := database.Close(db); err != nil {
		common.LogWarn("Failed to close database", zap.Error(err))
	}

	common.LogInfo("Server exited")
}
