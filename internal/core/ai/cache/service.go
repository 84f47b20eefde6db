package cache

import (
	"context"
	"errors"
	"fmt"

	"recipe-autofind/internal/infrastructure/config"
	"recipe-autofind/internal/pkg/common"

	"github.com/go-redis/redis/v8"
)

// Service Redis 快取，多個實例共用
type Service struct {
	client *redis.Client
	config config.CacheConfig
	prefix string
}

// NewService 建立 Redis 快取，client 由呼叫端管理
func NewService(client *redis.Client, cfg config.CacheConfig, prefix string) *Service {
	return &Service{
		client: client,
		config: cfg,
		prefix: prefix,
	}
}

// Get 取得快取
func (s *Service) Get(ctx context.Context, key string) (string, error) {
	if !s.config.Enabled || s.client == nil {
		return "", common.ErrCacheDisabled
	}

	val, err := s.client.Get(ctx, s.generateKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		common.LogCacheMiss("redis", key)
		return "", common.ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("failed to get cache: %w", err)
	}
	common.LogCacheHit("redis", key)
	return val, nil
}

// Set 設定快取
func (s *Service) Set(ctx context.Context, key, value string) error {
	if !s.config.Enabled || s.client == nil {
		return nil
	}
	if err := s.client.Set(ctx, s.generateKey(key), value, s.config.TTL).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

// Close client 由呼叫端關閉
func (s *Service) Close() error { return nil }

func (s *Service) generateKey(key string) string {
	return fmt.Sprintf("%s:cache:%s", s.prefix, key)
}

// New 依設定選擇快取後端
func New(cfg config.CacheConfig, client *redis.Client, prefix string) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewManager(cfg), nil
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("redis cache backend requires a redis client")
		}
		return NewService(client, cfg, prefix), nil
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Backend)
	}
}
