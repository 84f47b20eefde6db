package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"recipe-autofind/internal/pkg/common"

	"go.uber.org/zap"
)

// MemoryQueue 行程內佇列，單機部署與測試使用
type MemoryQueue struct {
	maxSize  int
	stateTTL time.Duration

	mu      sync.Mutex
	pending []*Job
	states  map[string]*JobState
	closed  bool

	notify chan struct{}
	done   chan struct{}
}

// NewMemoryQueue 建立記憶體佇列
func NewMemoryQueue(maxSize int, stateTTL time.Duration) *MemoryQueue {
	return &MemoryQueue{
		maxSize:  maxSize,
		stateTTL: stateTTL,
		states:   make(map[string]*JobState),
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

func (q *MemoryQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Enqueue 將任務加入佇列
func (q *MemoryQueue) Enqueue(ctx context.Context, job *Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return common.ErrQueueClosed
	}
	if q.maxSize > 0 && len(q.pending) >= q.maxSize {
		q.mu.Unlock()
		return common.ErrQueueFull
	}
	q.pending = append(q.pending, job)
	if _, ok := q.states[job.ID]; !ok {
		q.states[job.ID] = queuedState(job)
	} else {
		q.states[job.ID].Status = StatusQueued
		q.states[job.ID].UpdatedAt = time.Now()
	}
	length := len(q.pending)
	q.mu.Unlock()

	q.signal()
	common.LogDebug("任務已加入佇列",
		zap.String("job_id", job.ID),
		zap.Int("queue_length", length),
		zap.Int("max_queue_size", q.maxSize),
	)
	return nil
}

// Dequeue 依 FIFO 取出任務
func (q *MemoryQueue) Dequeue(ctx context.Context) (*Job, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, common.ErrQueueClosed
		}
		if len(q.pending) > 0 {
			job := q.pending[0]
			q.pending[0] = nil
			q.pending = q.pending[1:]
			remaining := len(q.pending)
			q.mu.Unlock()
			if remaining > 0 {
				q.signal()
			}
			return job, nil
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.done:
			return nil, common.ErrQueueClosed
		}
	}
}

// Remove 取消尚未被取走的任務；已開始則回傳 common.ErrJobAlreadyStarted
func (q *MemoryQueue) Remove(_ context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, job := range q.pending {
		if job.ID != jobID {
			continue
		}
		q.pending = append(q.pending[:i], q.pending[i+1:]...)
		if st, ok := q.states[jobID]; ok {
			st.Status = StatusCancelled
			st.Stage = string(StatusCancelled)
			st.UpdatedAt = time.Now()
		}
		return nil
	}

	if _, ok := q.states[jobID]; ok {
		return common.ErrJobAlreadyStarted
	}
	return common.ErrJobNotFound
}

// Len 等待中的任務數
func (q *MemoryQueue) Len(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending), nil
}

// SaveState 儲存任務狀態，順便清掉過期的終止狀態
func (q *MemoryQueue) SaveState(_ context.Context, state *JobState) error {
	if state == nil || state.JobID == "" {
		return fmt.Errorf("job state requires a job id")
	}
	copied := *state

	q.mu.Lock()
	defer q.mu.Unlock()
	q.states[state.JobID] = &copied
	q.expireStates(time.Now())
	return nil
}

// GetState 取得任務狀態
func (q *MemoryQueue) GetState(_ context.Context, jobID string) (*JobState, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	st, ok := q.states[jobID]
	if !ok {
		return nil, common.ErrJobNotFound
	}
	copied := *st
	return &copied, nil
}

func (q *MemoryQueue) expireStates(now time.Time) {
	if q.stateTTL <= 0 {
		return
	}
	for id, st := range q.states {
		if st.Status.IsTerminal() && now.Sub(st.UpdatedAt) > q.stateTTL {
			delete(q.states, id)
		}
	}
}

// Close 關閉佇列，阻塞中的 Dequeue 會收到 common.ErrQueueClosed
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.done)
	return nil
}

var _ Queue = (*MemoryQueue)(nil)
