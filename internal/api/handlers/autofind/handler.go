package autofind

import (
	"context"
	"errors"
	"net/http"
	"time"

	"recipe-autofind/internal/core/ai/cache"
	"recipe-autofind/internal/core/ai/queue"
	"recipe-autofind/internal/core/search"
	"recipe-autofind/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// JobService 任務排入、查詢與取消
type JobService interface {
	Submit(ctx context.Context, input common.JobInput) (*queue.Job, error)
	State(ctx context.Context, jobID string) (*queue.JobState, error)
	Cancel(ctx context.Context, jobID string) error
}

// SubmitRequest 排入 auto-find 任務的請求
type SubmitRequest struct {
	Query string `json:"query" binding:"required,max=500"`
}

// SubmitResponse 任務已受理
type SubmitResponse struct {
	JobID  string          `json:"job_id"`
	Status queue.JobStatus `json:"status"`
}

// Handler auto-find HTTP 處理器
type Handler struct {
	jobs  JobService
	cache cache.Store
}

// NewHandler 建立處理器，store 可為 nil
func NewHandler(jobs JobService, store cache.Store) *Handler {
	return &Handler{jobs: jobs, cache: store}
}

// Submit POST /api/v1/autofind
func (h *Handler) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, common.ErrInvalidRequest.WithError(err))
		return
	}

	nq := search.Normalize(req.Query)
	if nq.IsEmpty() {
		respondError(c, common.ErrEmptyQuery)
		return
	}

	job, err := h.jobs.Submit(c.Request.Context(), common.JobInput{
		UserQuery:       req.Query,
		NormalizedQuery: nq.CanonicalForm,
		SearchTerms:     nq.SearchTerms,
		ClientIP:        c.ClientIP(),
		Timestamp:       time.Now().UTC(),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	common.LogInfo("已受理 auto-find 請求",
		zap.String("job_id", job.ID),
		zap.String("request_id", requestid.Get(c)),
	)
	c.JSON(http.StatusAccepted, SubmitResponse{JobID: job.ID, Status: queue.StatusQueued})
}

// GetJob GET /api/v1/autofind/jobs/:id，終止狀態會寫入快取
func (h *Handler) GetJob(c *gin.Context) {
	ctx := c.Request.Context()
	jobID := c.Param("id")
	key := "job:" + jobID

	if h.cache != nil {
		if cached, err := h.cache.Get(ctx, key); err == nil {
			var state queue.JobState
			if err := common.ParseJSON(cached, &state); err == nil {
				c.JSON(http.StatusOK, &state)
				return
			}
		}
	}

	state, err := h.jobs.State(ctx, jobID)
	if err != nil {
		respondError(c, err)
		return
	}

	if h.cache != nil && state.Status.IsTerminal() {
		if data, err := common.ToJSON(state); err == nil {
			if err := h.cache.Set(ctx, key, data); err != nil {
				common.LogDebug("任務狀態快取寫入失敗", zap.String("job_id", jobID), zap.Error(err))
			}
		}
	}
	c.JSON(http.StatusOK, state)
}

// CancelJob DELETE /api/v1/autofind/jobs/:id
func (h *Handler) CancelJob(c *gin.Context) {
	if err := h.jobs.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// toCustomError 將流程錯誤對應到預定義的 API 錯誤
func toCustomError(err error) *common.CustomError {
	var ce *common.CustomError
	switch {
	case errors.As(err, &ce):
		return ce
	case errors.Is(err, common.ErrJobNotFound):
		return common.ErrNotFound.WithError(err)
	case errors.Is(err, common.ErrJobAlreadyStarted):
		return common.ErrConflict.WithError(err)
	case errors.Is(err, common.ErrQueueClosed):
		return common.ErrServiceUnavailable.WithError(err)
	default:
		return common.ErrInternalError.WithError(err)
	}
}

// respondError 將錯誤轉換為 HTTP 響應
func respondError(c *gin.Context, err error) {
	ce := toCustomError(err)
	status := ce.Status
	resp := ce.Response(gin.Mode() != gin.ReleaseMode)

	if status >= http.StatusInternalServerError {
		common.LogError("請求處理失敗",
			zap.String("path", c.Request.URL.Path),
			zap.String("request_id", requestid.Get(c)),
			zap.Error(err),
		)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, resp)
}
