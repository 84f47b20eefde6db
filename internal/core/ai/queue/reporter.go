package queue

import (
	"context"
	"time"

	"recipe-autofind/internal/pkg/common"

	"go.uber.org/zap"
)

// StateReporter 將處理進度寫回任務狀態，進度只增不減
type StateReporter struct {
	queue Queue
}

// NewStateReporter 建立進度回報器
func NewStateReporter(q Queue) *StateReporter {
	return &StateReporter{queue: q}
}

// Report 更新階段與進度；較小的進度值會被忽略，階段仍會更新
func (r *StateReporter) Report(ctx context.Context, jobID, stage string, progress int) {
	state, err := r.queue.GetState(ctx, jobID)
	if err != nil {
		common.LogDebug("找不到任務狀態，略過進度更新", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	if progress > state.Progress {
		state.Progress = progress
	}
	state.Stage = stage
	state.UpdatedAt = time.Now()
	if err := r.queue.SaveState(ctx, state); err != nil {
		common.LogWarn("更新任務進度失敗", zap.String("job_id", jobID), zap.Error(err))
	}
}
