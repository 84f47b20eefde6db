package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"recipe-autofind/internal/pkg/common"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const popTimeout = time.Second

// RedisQueue 以 Redis list 為佇列、字串鍵存放任務與狀態，可跨行程共用
type RedisQueue struct {
	client   *redis.Client
	prefix   string
	maxSize  int
	stateTTL time.Duration
	closed   int32
}

// NewRedisQueue 建立 Redis 佇列，client 由呼叫端管理生命週期
func NewRedisQueue(client *redis.Client, prefix string, maxSize int, stateTTL time.Duration) *RedisQueue {
	if prefix == "" {
		prefix = "autofind"
	}
	return &RedisQueue{
		client:   client,
		prefix:   prefix,
		maxSize:  maxSize,
		stateTTL: stateTTL,
	}
}

func (q *RedisQueue) pendingKey() string        { return q.prefix + ":pending" }
func (q *RedisQueue) jobKey(id string) string   { return q.prefix + ":job:" + id }
func (q *RedisQueue) stateKey(id string) string { return q.prefix + ":state:" + id }
func (q *RedisQueue) isClosed() bool            { return atomic.LoadInt32(&q.closed) == 1 }

// ttl 進行中的狀態不設過期
func (q *RedisQueue) ttl(status JobStatus) time.Duration {
	if status.IsTerminal() {
		return q.stateTTL
	}
	return 0
}

// Enqueue 寫入任務內容與狀態後推入 list
func (q *RedisQueue) Enqueue(ctx context.Context, job *Job) error {
	if q.isClosed() {
		return common.ErrQueueClosed
	}
	if q.maxSize > 0 {
		n, err := q.client.LLen(ctx, q.pendingKey()).Result()
		if err != nil {
			return fmt.Errorf("failed to read queue length: %w", err)
		}
		if int(n) >= q.maxSize {
			return common.ErrQueueFull
		}
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	state, err := q.GetState(ctx, job.ID)
	if errors.Is(err, common.ErrJobNotFound) {
		state = queuedState(job)
	} else if err != nil {
		return err
	}
	state.Status = StatusQueued
	state.UpdatedAt = time.Now()
	stateData, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal job state: %w", err)
	}

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, q.jobKey(job.ID), payload, 0)
		pipe.Set(ctx, q.stateKey(job.ID), stateData, 0)
		pipe.LPush(ctx, q.pendingKey(), job.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}

	common.LogDebug("任務已加入 Redis 佇列", zap.String("job_id", job.ID))
	return nil
}

// Dequeue 以 BRPOP 輪詢，每次逾時後檢查 ctx 與關閉狀態
func (q *RedisQueue) Dequeue(ctx context.Context) (*Job, error) {
	for {
		if q.isClosed() {
			return nil, common.ErrQueueClosed
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := q.client.BRPop(ctx, popTimeout, q.pendingKey()).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("failed to pop job: %w", err)
		}
		if len(res) < 2 {
			continue
		}

		id := res[1]
		data, err := q.client.Get(ctx, q.jobKey(id)).Bytes()
		if errors.Is(err, redis.Nil) {
			common.LogWarn("佇列中的任務內容已遺失", zap.String("job_id", id))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load job %s: %w", id, err)
		}

		var job Job
		if err := json.Unmarshal(data, &job); err != nil {
			return nil, fmt.Errorf("failed to unmarshal job %s: %w", id, err)
		}
		return &job, nil
	}
}

// Remove 從 list 移除尚未被取走的任務
func (q *RedisQueue) Remove(ctx context.Context, jobID string) error {
	removed, err := q.client.LRem(ctx, q.pendingKey(), 0, jobID).Result()
	if err != nil {
		return fmt.Errorf("failed to remove job: %w", err)
	}
	if removed == 0 {
		if _, err := q.GetState(ctx, jobID); err != nil {
			return err
		}
		return common.ErrJobAlreadyStarted
	}

	q.client.Del(ctx, q.jobKey(jobID))
	state, err := q.GetState(ctx, jobID)
	if err != nil {
		return nil
	}
	state.Status = StatusCancelled
	state.Stage = string(StatusCancelled)
	state.UpdatedAt = time.Now()
	return q.SaveState(ctx, state)
}

// Len 等待中的任務數
func (q *RedisQueue) Len(ctx context.Context) (int, error) {
	n, err := q.client.LLen(ctx, q.pendingKey()).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// SaveState 寫入任務狀態，終止狀態套用 TTL
func (q *RedisQueue) SaveState(ctx context.Context, state *JobState) error {
	if state == nil || state.JobID == "" {
		return fmt.Errorf("job state requires a job id")
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal job state: %w", err)
	}
	if err := q.client.Set(ctx, q.stateKey(state.JobID), data, q.ttl(state.Status)).Err(); err != nil {
		return fmt.Errorf("failed to save job state: %w", err)
	}
	if state.Status.IsTerminal() {
		q.client.Del(ctx, q.jobKey(state.JobID))
	}
	return nil
}

// GetState 讀取任務狀態
func (q *RedisQueue) GetState(ctx context.Context, jobID string) (*JobState, error) {
	data, err := q.client.Get(ctx, q.stateKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, common.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job state: %w", err)
	}

	var state JobState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job state: %w", err)
	}
	return &state, nil
}

// Close 停止取出任務，不關閉共用的 client
func (q *RedisQueue) Close() error {
	atomic.StoreInt32(&q.closed, 1)
	return nil
}

var _ Queue = (*RedisQueue)(nil)
