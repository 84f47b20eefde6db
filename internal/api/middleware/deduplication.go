package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"sync"
	"time"

	"recipe-autofind/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultDedupWindow = time.Second

// Deduplicator 擋下時間窗內同一用戶端送出的相同 POST，避免連點重複排入任務
type Deduplicator struct {
	mu       sync.Mutex
	window   time.Duration
	seen     map[string]time.Time
	lastScan time.Time
}

// NewDeduplicator 建立去重器，window <= 0 時使用預設值
func NewDeduplicator(window time.Duration) *Deduplicator {
	if window <= 0 {
		window = defaultDedupWindow
	}
	return &Deduplicator{
		window:   window,
		seen:     make(map[string]time.Time),
		lastScan: time.Now(),
	}
}

// check 記錄指紋，時間窗內重複出現回傳 false
func (d *Deduplicator) check(fingerprint string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if now.Sub(d.lastScan) > 10*d.window {
		for k, t := range d.seen {
			if now.Sub(t) > d.window {
				delete(d.seen, k)
			}
		}
		d.lastScan = now
	}

	if last, ok := d.seen[fingerprint]; ok && now.Sub(last) <= d.window {
		return false
	}
	d.seen[fingerprint] = now
	return true
}

// Deduplication 請求去重中間件，只處理 POST
func Deduplication(window time.Duration) gin.HandlerFunc {
	d := NewDeduplicator(window)
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		fingerprint := c.ClientIP() + ":" + c.Request.URL.Path
		if c.Request.Body != nil {
			body, err := io.ReadAll(c.Request.Body)
			if err != nil {
				common.LogError("Failed to read request body", zap.Error(err))
				c.Next()
				return
			}
			hash := sha256.Sum256(body)
			fingerprint += ":" + hex.EncodeToString(hash[:])
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}

		if !d.check(fingerprint, time.Now()) {
			// 視窗內的重複請求
			c.AbortWithStatusJSON(common.ErrTooManyRequests.Status, common.ErrTooManyRequests.Response(false))
			return
		}

		c.Next()
	}
}
