package scheduler

import (
	"context"
	"fmt"
	"time"

	"recipe-autofind/internal/infrastructure/config"
	"recipe-autofind/internal/infrastructure/metrics"
	"recipe-autofind/internal/pkg/common"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	defaultSchedule = "0 3 * * *"
	defaultMaxAge   = 30 * 24 * time.Hour
	pruneTimeout    = 5 * time.Minute
)

// Pruner 刪除早於指定時間的已結束執行紀錄
type Pruner interface {
	PruneExecutions(ctx context.Context, before time.Time) (int64, error)
}

// Retention 定期清除過期的執行紀錄
type Retention struct {
	pruner  Pruner
	cron    *cron.Cron
	config  config.RetentionConfig
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewRetention 建立保存排程
func NewRetention(pruner Pruner, cfg config.RetentionConfig, m *metrics.Metrics) *Retention {
	if cfg.Schedule == "" {
		cfg.Schedule = defaultSchedule
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = defaultMaxAge
	}
	return &Retention{
		pruner:  pruner,
		cron:    cron.New(),
		config:  cfg,
		metrics: m,
		now:     time.Now,
	}
}

// Start 註冊排程並啟動，未啟用時不做任何事
func (r *Retention) Start() error {
	if !r.config.Enabled {
		common.LogInfo("執行紀錄保存排程未啟用")
		return nil
	}

	_, err := r.cron.AddFunc(r.config.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
		defer cancel()
		if _, err := r.RunOnce(ctx); err != nil {
			common.LogError("執行紀錄清除失敗", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", r.config.Schedule, err)
	}

	r.cron.Start()
	common.LogInfo("執行紀錄保存排程已啟動",
		zap.String("schedule", r.config.Schedule),
		zap.Duration("max_age", r.config.MaxAge),
	)
	return nil
}

// Stop 停止排程並等待執行中的清除結束
func (r *Retention) Stop() {
	<-r.cron.Stop().Done()
}

// RunOnce 立即清除一次，回傳刪除筆數
func (r *Retention) RunOnce(ctx context.Context) (int64, error) {
	cutoff := r.now().Add(-r.config.MaxAge)
	n, err := r.pruner.PruneExecutions(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	r.metrics.LogsPruned(n)
	common.LogInfo("已清除過期執行紀錄",
		zap.Int64("deleted", n),
		zap.Time("cutoff", cutoff),
	)
	return n, nil
}
