package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"recipe-autofind/internal/infrastructure/metrics"
	"recipe-autofind/internal/pkg/common"

	"go.uber.org/zap"
)

// Processor 處理單一任務
type Processor interface {
	Process(ctx context.Context, job *Job) (*common.JobResult, error)
}

// ProcessorFunc 讓函式實作 Processor
type ProcessorFunc func(ctx context.Context, job *Job) (*common.JobResult, error)

// Process 呼叫函式本身
func (f ProcessorFunc) Process(ctx context.Context, job *Job) (*common.JobResult, error) {
	return f(ctx, job)
}

// DispatcherConfig 工作池設定
type DispatcherConfig struct {
	Backend      string
	Workers      int
	MaxQueueSize int
	MaxAttempts  int
	RetryDelay   time.Duration
	JobTimeout   time.Duration
}

// Dispatcher 從佇列取出任務交給 Processor，失敗時以指數退避重新排入
type Dispatcher struct {
	queue     Queue
	processor Processor
	cfg       DispatcherConfig
	metrics   *metrics.Metrics

	processed int64
	stop      context.CancelFunc
	interrupt context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	started   bool
}

// NewDispatcher 建立工作池
func NewDispatcher(q Queue, p Processor, cfg DispatcherConfig, m *metrics.Metrics) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &Dispatcher{
		queue:     q,
		processor: p,
		cfg:       cfg,
		metrics:   m,
	}
}

// Submit 建立任務並排入佇列
func (d *Dispatcher) Submit(ctx context.Context, input common.JobInput) (*Job, error) {
	job := NewJob(input, d.cfg.MaxAttempts)
	if err := d.queue.Enqueue(ctx, job); err != nil {
		return nil, err
	}
	d.updateDepth(ctx)

	common.LogInfo("任務已排入",
		zap.String("job_id", job.ID),
		zap.String("query", input.UserQuery),
	)
	return job, nil
}

// Cancel 取消尚未開始的任務
func (d *Dispatcher) Cancel(ctx context.Context, jobID string) error {
	if err := d.queue.Remove(ctx, jobID); err != nil {
		return err
	}
	d.updateDepth(ctx)
	common.LogInfo("任務已取消", zap.String("job_id", jobID))
	return nil
}

// Start 啟動 workers。
// Stop 只停止取新任務並等待執行中的任務；ctx 結束或 Shutdown 逾時才會中斷執行中的任務。
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true

	ctx, d.interrupt = context.WithCancel(ctx)
	// 取任務用的 context，Stop 時取消
	stopCtx, stop := context.WithCancel(ctx)
	d.stop = stop
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, stopCtx, i)
	}
	common.LogInfo("任務工作池已啟動",
		zap.Int("workers", d.cfg.Workers),
		zap.Int("max_attempts", d.cfg.MaxAttempts),
		zap.Duration("retry_delay", d.cfg.RetryDelay),
	)
}

// Stop 停止取新任務並等待進行中的任務結束
func (d *Dispatcher) Stop() {
	d.Shutdown(context.Background())
}

// Shutdown 與 Stop 相同，但 ctx 結束時中斷仍在執行的任務；
// 被中斷且仍有重試次數的任務會重新排入佇列
func (d *Dispatcher) Shutdown(ctx context.Context) {
	d.mu.Lock()
	stop, interrupt := d.stop, d.interrupt
	d.mu.Unlock()
	if stop != nil {
		stop()
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		common.LogWarn("等待任務結束逾時，中斷執行中的任務", zap.Error(ctx.Err()))
		if interrupt != nil {
			interrupt()
		}
		<-done
	}
	if interrupt != nil {
		interrupt()
	}
}

// State 查詢任務狀態，不存在回傳 common.ErrJobNotFound
func (d *Dispatcher) State(ctx context.Context, jobID string) (*JobState, error) {
	return d.queue.GetState(ctx, jobID)
}

// Status 佇列狀態
func (d *Dispatcher) Status(ctx context.Context) *Status {
	length, err := d.queue.Len(ctx)
	if err != nil {
		common.LogWarn("讀取佇列長度失敗", zap.Error(err))
	}
	return &Status{
		Backend:        d.cfg.Backend,
		QueueLength:    length,
		ProcessedCount: int(atomic.LoadInt64(&d.processed)),
		MaxQueueSize:   d.cfg.MaxQueueSize,
		Workers:        d.cfg.Workers,
	}
}

// worker 以 stopCtx 取任務，以 ctx 執行任務
func (d *Dispatcher) worker(ctx, stopCtx context.Context, id int) {
	defer d.wg.Done()
	for {
		job, err := d.queue.Dequeue(stopCtx)
		if err != nil {
			if stopCtx.Err() != nil || errors.Is(err, common.ErrQueueClosed) {
				return
			}
			common.LogError("取出任務失敗", zap.Int("worker", id), zap.Error(err))
			select {
			case <-time.After(time.Second):
				continue
			case <-stopCtx.Done():
				return
			}
		}
		d.updateDepth(ctx)
		d.runJob(ctx, stopCtx, job)
	}
}

func (d *Dispatcher) runJob(ctx, stopCtx context.Context, job *Job) {
	job.Attempt++
	state := d.loadState(ctx, job)
	state.Status = StatusRunning
	state.Attempt = job.Attempt
	state.Error = ""
	state.UpdatedAt = time.Now()
	d.saveState(ctx, state)

	jobCtx := ctx
	if d.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, d.cfg.JobTimeout)
		defer cancel()
	}

	result, err := d.safeProcess(jobCtx, job)
	atomic.AddInt64(&d.processed, 1)

	// Processor 可能已更新進度，重新讀取以保留最後的階段
	state = d.loadState(ctx, job)
	state.Attempt = job.Attempt
	state.UpdatedAt = time.Now()

	if err == nil {
		state.Status = StatusCompleted
		// 重複結果保留 Processor 回報的最後階段
		if result == nil || !result.IsDuplicate {
			state.Stage = string(StatusCompleted)
		}
		state.Progress = 100
		state.Result = result
		d.saveState(ctx, state)
		common.LogInfo("任務完成",
			zap.String("job_id", job.ID),
			zap.Int("attempt", job.Attempt),
		)
		return
	}

	state.Error = err.Error()

	// 關閉中被中斷：仍有次數時立即排回，交給下一個啟動的實例
	if ctx.Err() != nil {
		if job.Attempt < job.MaxAttempts {
			state.Status = StatusQueued
			d.saveState(ctx, state)
			common.LogWarn("任務因關閉中斷，重新排入",
				zap.String("job_id", job.ID),
				zap.Int("attempt", job.Attempt),
				zap.Error(err),
			)
			d.scheduleRetry(stopCtx, job, 0)
			return
		}
	} else if job.Attempt < job.MaxAttempts {
		delay := d.backoff(job.Attempt)
		state.Status = StatusRetrying
		d.saveState(ctx, state)
		d.metrics.JobRetried()
		common.LogWarn("任務失敗，稍後重試",
			zap.String("job_id", job.ID),
			zap.Int("attempt", job.Attempt),
			zap.Int("max_attempts", job.MaxAttempts),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		d.scheduleRetry(stopCtx, job, delay)
		return
	}

	state.Status = StatusFailed
	state.Stage = string(StatusFailed)
	d.saveState(ctx, state)
	common.LogError("任務失敗",
		zap.String("job_id", job.ID),
		zap.Int("attempt", job.Attempt),
		zap.Error(err),
	)
}

func (d *Dispatcher) safeProcess(ctx context.Context, job *Job) (result *common.JobResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return d.processor.Process(ctx, job)
}

// backoff retryDelay * 2^(attempt-1)
func (d *Dispatcher) backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return d.cfg.RetryDelay * time.Duration(1<<uint(attempt-1))
}

func (d *Dispatcher) scheduleRetry(ctx context.Context, job *Job, delay time.Duration) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
		}

		enqueueCtx := ctx
		if ctx.Err() != nil {
			// 關閉中仍立即排回，共用佇列時可由其他實例接手
			var cancel context.CancelFunc
			enqueueCtx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
		}

		if err := d.queue.Enqueue(enqueueCtx, job); err != nil {
			common.LogError("重新排入任務失敗", zap.String("job_id", job.ID), zap.Error(err))
			d.markFailed(job, err.Error())
			return
		}
		d.updateDepth(enqueueCtx)
	}()
}

func (d *Dispatcher) markFailed(job *Job, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	state := d.loadState(ctx, job)
	state.Status = StatusFailed
	state.Stage = string(StatusFailed)
	if state.Error == "" {
		state.Error = reason
	}
	state.UpdatedAt = time.Now()
	d.saveState(ctx, state)
}

func (d *Dispatcher) loadState(ctx context.Context, job *Job) *JobState {
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	state, err := d.queue.GetState(ctx, job.ID)
	if err != nil {
		return queuedState(job)
	}
	return state
}

func (d *Dispatcher) saveState(ctx context.Context, state *JobState) {
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	if err := d.queue.SaveState(ctx, state); err != nil {
		common.LogWarn("儲存任務狀態失敗", zap.String("job_id", state.JobID), zap.Error(err))
	}
}

func (d *Dispatcher) updateDepth(ctx context.Context) {
	if n, err := d.queue.Len(ctx); err == nil {
		d.metrics.SetQueueDepth(n)
	}
}
