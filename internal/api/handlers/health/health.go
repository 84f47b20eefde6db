package health

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"recipe-autofind/internal/core/ai/queue"
	"recipe-autofind/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const checkTimeout = 2 * time.Second

// QueueStatusProvider 提供佇列狀態
type QueueStatusProvider interface {
	Status(ctx context.Context) *queue.Status
}

// Check 就緒檢查項目，例如資料庫或 Redis ping
type Check func(ctx context.Context) error

// HealthResponse 健康檢查響應
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime"`
	Queue     *queue.Status          `json:"queue,omitempty"`
}

// Handler 健康檢查處理器
type Handler struct {
	version string
	queue   QueueStatusProvider
	checks  map[string]Check
}

// NewHandler 建立健康檢查處理器，queue 可為 nil
func NewHandler(version string, q QueueStatusProvider, checks map[string]Check) *Handler {
	if checks == nil {
		checks = map[string]Check{}
	}
	return &Handler{version: version, queue: q, checks: checks}
}

// HealthCheck 回報版本、runtime 與佇列狀態
func (h *Handler) HealthCheck(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   h.version,
		Runtime: map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]interface{}{
				"alloc":       m.Alloc,
				"total_alloc": m.TotalAlloc,
				"sys":         m.Sys,
				"num_gc":      m.NumGC,
			},
		},
	}
	if h.queue != nil {
		response.Queue = h.queue.Status(c.Request.Context())
	}

	c.JSON(http.StatusOK, response)
}

// ReadinessCheck 逐一執行依賴檢查，任一失敗回傳 503
func (h *Handler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	ready := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			ready = false
			results[name] = err.Error()
			common.LogWarn("就緒檢查失敗", zap.String("check", name), zap.Error(err))
			continue
		}
		results[name] = "ok"
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"checks": results,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"checks": results,
	})
}

// LivenessCheck 存活檢查處理器
func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}
