package queue

import (
	"context"
	"time"

	"recipe-autofind/internal/pkg/common"
)

// JobStatus 任務狀態
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusRetrying  JobStatus = "retrying"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// IsTerminal 是否為終止狀態
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Job 佇列中的 auto-find 任務
type Job struct {
	ID          string          `json:"id"`
	Input       common.JobInput `json:"input"`
	Attempt     int             `json:"attempt"`
	MaxAttempts int             `json:"max_attempts"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
}

// NewJob 建立新任務
func NewJob(input common.JobInput, maxAttempts int) *Job {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &Job{
		ID:          common.GenerateUUID(),
		Input:       input,
		Attempt:     0,
		MaxAttempts: maxAttempts,
		EnqueuedAt:  time.Now(),
	}
}

// JobState 可供查詢的任務狀態
type JobState struct {
	JobID     string            `json:"job_id"`
	Status    JobStatus         `json:"status"`
	Stage     string            `json:"stage"`
	Progress  int               `json:"progress"`
	Attempt   int               `json:"attempt"`
	Result    *common.JobResult `json:"result,omitempty"`
	Error     string            `json:"error,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Queue 任務佇列與狀態儲存
type Queue interface {
	// Enqueue 加入任務，佇列已滿回傳 common.ErrQueueFull
	Enqueue(ctx context.Context, job *Job) error
	// Dequeue 阻塞直到取得任務、ctx 結束或佇列關閉
	Dequeue(ctx context.Context) (*Job, error)
	// Remove 取消尚未被取走的任務
	Remove(ctx context.Context, jobID string) error
	Len(ctx context.Context) (int, error)

	SaveState(ctx context.Context, state *JobState) error
	GetState(ctx context.Context, jobID string) (*JobState, error)

	Close() error
}

// Status 佇列狀態
type Status struct {
	Backend        string `json:"backend"`
	QueueLength    int    `json:"queue_length"`
	ProcessedCount int    `json:"processed_count"`
	MaxQueueSize   int    `json:"max_queue_size"`
	Workers        int    `json:"workers"`
}

func queuedState(job *Job) *JobState {
	now := time.Now()
	return &JobState{
		JobID:     job.ID,
		Status:    StatusQueued,
		Stage:     "queued",
		Progress:  0,
		Attempt:   job.Attempt,
		CreatedAt: job.EnqueuedAt,
		UpdatedAt: now,
	}
}
