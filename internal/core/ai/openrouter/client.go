package openrouter

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"recipe-autofind/internal/core/ai/provider"
	"recipe-autofind/internal/infrastructure/config"
	"recipe-autofind/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://openrouter.ai/api/v1"

var _ provider.Provider = (*Client)(nil)

// Client OpenRouter API 客戶端
type Client struct {
	client *resty.Client
	config config.OpenRouterConfig
}

// chatRequest OpenRouter chat completions 請求
type chatRequest struct {
	Model          string             `json:"model"`
	Messages       []provider.Message `json:"messages"`
	MaxTokens      int                `json:"max_tokens,omitempty"`
	Temperature    float64            `json:"temperature,omitempty"`
	ResponseFormat *responseFormat    `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// chatResponse OpenRouter 響應結構
type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message provider.Message `json:"message"`
	} `json:"choices"`
	Usage provider.Usage `json:"usage"`
}

// apiError 表示 API 錯誤
type apiError struct {
	Error struct {
		Message string      `json:"message"`
		Type    string      `json:"type"`
		Code    interface{} `json:"code"`
	} `json:"error"`
}

// NewClient 創建新的 OpenRouter 客戶端，429 與 5xx 會自動重試
func NewClient(cfg config.OpenRouterConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(time.Second).
		SetRetryMaxWaitTime(10*time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		}).
		SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.APIKey)).
		SetHeader("Content-Type", "application/json").
		SetHeader("HTTP-Referer", "https://recipe-autofind.local").
		SetHeader("X-Title", "Recipe AutoFind")

	return &Client{
		client: client,
		config: cfg,
	}
}

// Generate 呼叫 chat completions，回傳第一個選項的內容
func (c *Client) Generate(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	body := chatRequest{
		Model:       c.config.Model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if body.MaxTokens == 0 {
		body.MaxTokens = c.config.MaxTokens
	}
	if body.Temperature == 0 {
		body.Temperature = c.config.Temperature
	}
	if req.JSONMode {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	start := time.Now()
	var result chatResponse
	var apiErr apiError
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		SetError(&apiErr).
		Post("/chat/completions")
	if err != nil {
		common.LogAICall(c.config.Model, time.Since(start), err, req.JobID)
		return nil, fmt.Errorf("failed to send request to OpenRouter: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		msg := apiErr.Error.Message
		if msg == "" {
			msg = common.Truncate(resp.String(), 500)
		}
		err := fmt.Errorf("OpenRouter API error (status %d): %s", resp.StatusCode(), msg)
		common.LogAICall(c.config.Model, time.Since(start), err, req.JobID)
		return nil, err
	}

	if len(result.Choices) == 0 {
		err := fmt.Errorf("no choices in OpenRouter response")
		common.LogAICall(c.config.Model, time.Since(start), err, req.JobID)
		return nil, err
	}

	content := strings.TrimSpace(result.Choices[0].Message.Content)
	if content == "" {
		err := fmt.Errorf("empty content in OpenRouter response")
		common.LogAICall(c.config.Model, time.Since(start), err, req.JobID)
		return nil, err
	}

	common.LogAICall(c.config.Model, time.Since(start), nil, req.JobID)
	common.LogDebug("OpenRouter 響應",
		zap.String("model", result.Model),
		zap.Int("content_length", len(content)),
		zap.Int("total_tokens", result.Usage.TotalTokens),
	)

	model := result.Model
	if model == "" {
		model = c.config.Model
	}
	return &provider.Response{
		Content: content,
		Model:   model,
		Usage:   result.Usage,
	}, nil
}

// GetModel 獲取當前使用的模型名稱
func (c *Client) GetModel() string {
	return c.config.Model
}

// GetTimeout 獲取請求超時時間
func (c *Client) GetTimeout() time.Duration {
	return c.client.GetClient().Timeout
}

// Close 關閉客戶端
func (c *Client) Close() error {
	c.client.GetClient().CloseIdleConnections()
	return nil
}
