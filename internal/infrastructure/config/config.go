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
	Generation  GenerationConfig `mapstructure:"generation"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Redis       RedisConfig      `mapstructure:"redis"`
	Queue       QueueConfig      `mapstructure:"queue"`
	Sources     SourcesConfig    `mapstructure:"sources"`
	Query       QueryConfig      `mapstructure:"query"`
	Dedupe      DedupeConfig     `mapstructure:"dedupe"`
	Cache       CacheConfig      `mapstructure:"cache"`
	RateLimit   RateLimitConfig  `mapstructure:"rate_limit"`
	Retention   RetentionConfig  `mapstructure:"retention"`
	DedupWindow time.Duration    `mapstructure:"dedup_window"`
	LogLevel    string           `mapstructure:"log_level"`
	LogDir      string           `mapstructure:"log_dir"`
	LogMode     string           `mapstructure:"log_mode"`
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
	MaxBodySize  int64         `mapstructure:"max_body_size"`
}

// OpenRouterConfig OpenRouter 配置
type OpenRouterConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
}

// GenerationConfig 食譜生成設定
type GenerationConfig struct {
	MaxSources      int `mapstructure:"max_sources"`
	MaxCitations    int `mapstructure:"max_citations"`
	MaxExcerptChars int `mapstructure:"max_excerpt_chars"`
}

// DatabaseConfig 資料庫設定
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres | sqlite
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// RedisConfig Redis 連線設定
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// QueueConfig 任務佇列設定
type QueueConfig struct {
	Backend      string        `mapstructure:"backend"` // memory | redis
	Workers      int           `mapstructure:"workers"`
	MaxSize      int           `mapstructure:"max_size"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	RetryDelay   time.Duration `mapstructure:"retry_delay"`
	JobTimeout   time.Duration `mapstructure:"job_timeout"`
	DrainTimeout time.Duration `mapstructure:"drain_timeout"` // 關閉時等待執行中任務的上限
	StateTTL     time.Duration `mapstructure:"state_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// SourcesConfig 信任來源擷取設定
type SourcesConfig struct {
	Enabled         string        `mapstructure:"enabled"` // 逗號分隔的站點名稱
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	UserAgent       string        `mapstructure:"user_agent"`
	RatePerSecond   float64       `mapstructure:"rate_per_second"`
	MaxKnown        int           `mapstructure:"max_known"`
	MaxVague        int           `mapstructure:"max_vague"`
	MaxExcerptChars int           `mapstructure:"max_excerpt_chars"`
	MaxSnapshotSize int           `mapstructure:"max_snapshot_size"`
}

// QueryConfig 查詢分類設定
type QueryConfig struct {
	MinSpecificTokens int `mapstructure:"min_specific_tokens"`
}

// DedupeConfig 重複檢查設定
type DedupeConfig struct {
	Threshold        float64 `mapstructure:"threshold"`
	CandidateLimit   int     `mapstructure:"candidate_limit"`
	TitleDistanceCap float64 `mapstructure:"title_distance_cap"`
	TitleWeight      float64 `mapstructure:"title_weight"`
	IngredientWeight float64 `mapstructure:"ingredient_weight"`
	FailOpen         bool    `mapstructure:"fail_open"`
	Strategy         string  `mapstructure:"strategy"` // first | best
}

// CacheConfig 緩存配置
type CacheConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Backend         string        `mapstructure:"backend"` // memory | redis
	MaxSize         int           `mapstructure:"max_size"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// RetentionConfig 執行紀錄保存設定
type RetentionConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Schedule string        `mapstructure:"schedule"`
	MaxAge   time.Duration `mapstructure:"max_age"`
}

// LoadConfig 載入設定
func LoadConfig() (*Config, error) {
	// .env 不存在時改用環境變數與預設值
	_ = godotenv.Load()

	setDefaults()

	viper.SetEnvPrefix("APP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 綁定環境變量
	viper.BindEnv("openrouter.api_key", "OPENROUTER_API_KEY")
	viper.BindEnv("openrouter.model", "OPENROUTER_MODEL")
	viper.BindEnv("openrouter.max_tokens", "MODEL_MAX_TOKENS")
	viper.BindEnv("database.dsn", "DATABASE_URL")
	viper.BindEnv("redis.addr", "REDIS_ADDR")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("queue.backend", "QUEUE_BACKEND")
	viper.BindEnv("queue.workers", "AUTOFIND_WORKERS")
	viper.BindEnv("sources.enabled", "ENABLED_SOURCES")
	viper.BindEnv("dedupe.fail_open", "DEDUPE_FAIL_OPEN")
	viper.BindEnv("dedupe.strategy", "DEDUPE_STRATEGY")
	viper.BindEnv("cache.enabled", "CACHE_ENABLED")
	viper.BindEnv("rate_limit.enabled", "RATE_LIMIT_ENABLED")
	viper.BindEnv("rate_limit.requests", "RATE_LIMIT_REQUESTS")
	viper.BindEnv("rate_limit.window", "RATE_LIMIT_WINDOW")
	viper.BindEnv("dedup_window", "DEDUP_WINDOW")
	viper.BindEnv("log_level", "LOG_LEVEL")
	viper.BindEnv("log_mode", "LOG_MODE")

	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// logger 尚未初始化，改用 fmt.Println
	fmt.Println("Loading configuration", "openrouter_api_key:", maskAPIKey(viper.GetString("openrouter.api_key")), "openrouter_model:", viper.GetString("openrouter.model"))

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// maskAPIKey 遮罩 API Key，只顯示前後各 4 個字符
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// setDefaults 設定預設值
func setDefaults() {
	// 應用程式設定
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.debug", true)
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.name", "recipe-autofind")

	// 伺服器設定
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.max_body_size", 1<<20)

	// OpenRouter 設定
	viper.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	viper.SetDefault("openrouter.model", "qwen/qwen2.5-72b-instruct:free")
	viper.SetDefault("openrouter.max_tokens", 2048)
	viper.SetDefault("openrouter.temperature", 0.4)
	viper.SetDefault("openrouter.timeout", "90s")
	viper.SetDefault("openrouter.max_retries", 2)

	// 生成設定
	viper.SetDefault("generation.max_sources", 5)
	viper.SetDefault("generation.max_citations", 3)
	viper.SetDefault("generation.max_excerpt_chars", 1500)

	// 資料庫設定
	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("database.dsn", "host=localhost user=postgres password=postgres dbname=recipes port=5432 sslmode=disable")
	viper.SetDefault("database.max_open_conns", 10)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "30m")
	viper.SetDefault("database.auto_migrate", true)

	// Redis 設定
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)

	// 隊列設定，預設單一 worker 以限制外部 API 成本
	viper.SetDefault("queue.backend", "memory")
	viper.SetDefault("queue.workers", 1)
	viper.SetDefault("queue.max_size", 100)
	viper.SetDefault("queue.max_attempts", 3)
	viper.SetDefault("queue.retry_delay", "10s")
	viper.SetDefault("queue.job_timeout", "5m")
	viper.SetDefault("queue.drain_timeout", "30s")
	viper.SetDefault("queue.state_ttl", "24h")
	viper.SetDefault("queue.key_prefix", "autofind")

	// 來源設定
	viper.SetDefault("sources.enabled", "wikipedia,britannica,wikibooks")
	viper.SetDefault("sources.timeout", "15s")
	viper.SetDefault("sources.max_retries", 1)
	viper.SetDefault("sources.user_agent", "recipe-autofind/1.0 (+https://example.org/bot)")
	viper.SetDefault("sources.rate_per_second", 2.0)
	viper.SetDefault("sources.max_known", 1)
	viper.SetDefault("sources.max_vague", 3)
	viper.SetDefault("sources.max_excerpt_chars", 2000)
	viper.SetDefault("sources.max_snapshot_size", 20000)

	// 查詢分類
	viper.SetDefault("query.min_specific_tokens", 2)

	// 重複檢查
	viper.SetDefault("dedupe.threshold", 0.75)
	viper.SetDefault("dedupe.candidate_limit", 50)
	viper.SetDefault("dedupe.title_distance_cap", 10)
	viper.SetDefault("dedupe.title_weight", 0.4)
	viper.SetDefault("dedupe.ingredient_weight", 0.6)
	viper.SetDefault("dedupe.fail_open", true)
	viper.SetDefault("dedupe.strategy", "first")

	// 快取設定
	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.backend", "memory")
	viper.SetDefault("cache.max_size", 1000)
	viper.SetDefault("cache.ttl", "10m")
	viper.SetDefault("cache.cleanup_interval", "5m")

	// 限流設定
	viper.SetDefault("rate_limit.enabled", true)
	viper.SetDefault("rate_limit.requests", 30)
	viper.SetDefault("rate_limit.window", "1m")

	// 保存設定
	viper.SetDefault("retention.enabled", true)
	viper.SetDefault("retention.schedule", "0 3 * * *")
	viper.SetDefault("retention.max_age", "720h")

	viper.SetDefault("dedup_window", "1s")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_dir", "logs")
}

// validateConfig 驗證設定
func validateConfig(config *Config) error {
	if config.Server.Port == 0 {
		return fmt.Errorf("server port is required")
	}

	switch config.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver: %s", config.Database.Driver)
	}
	if config.Database.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}

	switch config.Queue.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported queue backend: %s", config.Queue.Backend)
	}
	if config.Queue.Workers <= 0 {
		return fmt.Errorf("invalid queue workers")
	}
	if config.Queue.MaxSize <= 0 {
		return fmt.Errorf("invalid queue max size")
	}
	if config.Queue.MaxAttempts <= 0 {
		return fmt.Errorf("invalid queue max attempts")
	}

	if config.Dedupe.Threshold <= 0 || config.Dedupe.Threshold > 1 {
		return fmt.Errorf("dedupe threshold must be in (0,1]")
	}
	if config.Dedupe.TitleDistanceCap <= 0 {
		return fmt.Errorf("dedupe title distance cap must be positive")
	}
	if config.Dedupe.CandidateLimit <= 0 {
		return fmt.Errorf("invalid dedupe candidate limit")
	}
	switch config.Dedupe.Strategy {
	case "first", "best":
	default:
		return fmt.Errorf("unsupported dedupe strategy: %s", config.Dedupe.Strategy)
	}

	if config.Cache.Enabled {
		if config.Cache.MaxSize <= 0 {
			return fmt.Errorf("invalid cache max size")
		}
		if config.Cache.TTL <= 0 {
			return fmt.Errorf("invalid cache ttl")
		}
		if config.Cache.CleanupInterval <= 0 {
			return fmt.Errorf("invalid cache cleanup interval")
		}
	}

	return nil
}
