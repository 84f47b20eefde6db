package openrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"recipe-autofind/internal/core/ai/provider"
	"recipe-autofind/internal/infrastructure/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(baseURL string) config.OpenRouterConfig {
	return config.OpenRouterConfig{
		APIKey:      "sk-test",
		BaseURL:     baseURL,
		Model:       "test/model",
		MaxTokens:   512,
		Temperature: 0.3,
		Timeout:     5 * time.Second,
		MaxRetries:  2,
	}
}

func TestGenerateSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test/model", body.Model)
		assert.Equal(t, 512, body.MaxTokens)
		require.NotNil(t, body.ResponseFormat)
		assert.Equal(t, "json_object", body.ResponseFormat.Type)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","model":"test/model-2024","choices":[{"message":{"role":"assistant","content":" {\"title\":\"Injera\"} "}}],"usage":{"total_tokens":42}}`))
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	defer client.Close()

	resp, err := client.Generate(context.Background(), &provider.Request{
		Messages: []provider.Message{{Role: "user", Content: "hi"}},
		JSONMode: true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"title":"Injera"}`, resp.Content)
	assert.Equal(t, "test/model-2024", resp.Model)
	assert.Equal(t, 42, resp.Usage.TotalTokens)
	assert.Equal(t, "test/model", client.GetModel())
	assert.Equal(t, 5*time.Second, client.GetTimeout())
}

func TestGenerateRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	resp, err := NewClient(testConfig(srv.URL)).Generate(context.Background(), &provider.Request{
		Messages: []provider.Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, "test/model", resp.Model)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"api error", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, "bad key"},
		{"no choices", http.StatusOK, `{"choices":[]}`, "no choices"},
		{"empty content", http.StatusOK, `{"choices":[{"message":{"content":"  "}}]}`, "empty content"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(testConfig(srv.URL)).Generate(context.Background(), &provider.Request{
				Messages: []provider.Message{{Role: "user", Content: "hi"}},
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
