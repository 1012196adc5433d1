package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler func(body map[string]interface{}) (int, string)) (*httptest.Server, *[]map[string]interface{}) {
	t.Helper()
	var bodies []map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		bodies = append(bodies, body)
		status, resp := handler(body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(resp))
	}))
	t.Cleanup(srv.Close)
	return srv, &bodies
}

func testConfig(baseURL string) config.OpenRouterConfig {
	return config.OpenRouterConfig{
		APIKey:      "test-key",
		BaseURL:     baseURL,
		Model:       "text-model",
		VisionModel: "vision-model",
		MaxTokens:   500,
		Timeout:     5 * time.Second,
	}
}

func TestChatSendsTemperatureZero(t *testing.T) {
	srv, bodies := newTestServer(t, func(map[string]interface{}) (int, string) {
		return http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"{\"name\":\"Soup\"}"}}]}`
	})

	zero := 0.0
	out, err := NewOpenRouterService(testConfig(srv.URL)).Chat(context.Background(), ChatRequest{
		Messages:    []common.Message{{Role: "user", Content: []common.Content{{Type: "text", Text: "hi"}}}},
		Temperature: &zero,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Soup"}`, out)

	require.Len(t, *bodies, 1)
	body := (*bodies)[0]
	assert.Equal(t, "text-model", body["model"])
	assert.Equal(t, float64(500), body["max_tokens"])
	temp, ok := body["temperature"]
	require.True(t, ok)
	assert.Equal(t, float64(0), temp)
}

func TestGenerateResponseUsesVisionModel(t *testing.T) {
	srv, bodies := newTestServer(t, func(map[string]interface{}) (int, string) {
		return http.StatusOK, `{"choices":[{"message":{"content":"ok"}}]}`
	})

	_, err := NewOpenRouterService(testConfig(srv.URL)).GenerateResponse(context.Background(), "read", "AAAA")
	require.NoError(t, err)

	body := (*bodies)[0]
	assert.Equal(t, "vision-model", body["model"])
	_, hasTemp := body["temperature"]
	assert.False(t, hasTemp)

	messages := body["messages"].([]interface{})
	content := messages[0].(map[string]interface{})["content"].([]interface{})
	require.Len(t, content, 2)
	image := content[1].(map[string]interface{})["image_url"].(map[string]interface{})
	assert.Equal(t, "data:image/jpeg;base64,AAAA", image["url"])
}

func TestChatErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "bad request", status: http.StatusBadRequest, body: `{"error":{"message":"invalid model"}}`, want: "invalid model"},
		{name: "api error", status: http.StatusOK, body: `{"error":{"message":"quota exceeded"}}`, want: "quota exceeded"},
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`, want: "no choices"},
		{name: "garbage", status: http.StatusOK, body: `not json`, want: "failed to parse response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, func(map[string]interface{}) (int, string) {
				return tt.status, tt.body
			})
			_, err := NewOpenRouterService(testConfig(srv.URL)).Chat(context.Background(), ChatRequest{})
			require.Error(t, err)
			assert.True(t, common.IsExternalServiceError(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestChatRetriesServerErrors(t *testing.T) {
	calls := 0
	srv, _ := newTestServer(t, func(map[string]interface{}) (int, string) {
		calls++
		if calls == 1 {
			return http.StatusServiceUnavailable, `{"error":{"message":"busy"}}`
		}
		return http.StatusOK, `{"choices":[{"message":{"content":"done"}}]}`
	})

	out, err := NewOpenRouterService(testConfig(srv.URL)).Chat(context.Background(), ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, "done", out)
	assert.Equal(t, 2, calls)
}

func TestSanitizeResponse(t *testing.T) {
	assert.Equal(t, "[IMAGE_DATA_REMOVED]", sanitizeResponse([]byte(`{"x":"data:image/png;base64,AAA"}`)))
	assert.Equal(t, "boom", sanitizeResponse([]byte(`{"error":{"message":"boom"}}`)))
	assert.Equal(t, "plain", sanitizeResponse([]byte("plain")))
}
