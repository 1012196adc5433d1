package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const serviceName = "openrouter"

// ChatRequest 單次 chat completion 請求
type ChatRequest struct {
	Model    string
	Messages []common.Message
	// MaxTokens 為 0 時使用設定值
	MaxTokens int
	// Temperature 為 nil 時交給模型預設；0 代表確定性輸出
	Temperature *float64
}

// OpenRouterService OpenRouter 服務
type OpenRouterService struct {
	config config.OpenRouterConfig
	client *resty.Client
}

// NewOpenRouterService 創建 OpenRouter 服務
func NewOpenRouterService(cfg config.OpenRouterConfig) *OpenRouterService {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.APIKey)).
		SetHeader("HTTP-Referer", "https://recipe-importer.app").
		SetHeader("X-Title", "Recipe Importer").
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})

	return &OpenRouterService{
		config: cfg,
		client: client,
	}
}

// Chat 發送 chat completion，回傳第一個 choice 的內容
func (s *OpenRouterService) Chat(ctx context.Context, req ChatRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = s.config.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = s.config.MaxTokens
	}

	// 用 map 組請求，temperature 0 才不會被 omitempty 吃掉
	body := map[string]interface{}{
		"model":    model,
		"messages": req.Messages,
	}
	if maxTokens > 0 {
		body["max_tokens"] = maxTokens
	}
	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}

	start := time.Now()
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(body).
		Post("/chat/completions")
	common.LogExternalCall(serviceName, time.Since(start), err)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", common.NewExternalServiceError(serviceName, "chat completion", err)
	}

	if resp.StatusCode() != http.StatusOK {
		sanitized := sanitizeResponse(resp.Body())
		common.LogError("OpenRouter API returned error",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("model", model),
			zap.String("response", common.Truncate(sanitized, 500)),
		)
		return "", common.NewExternalServiceError(serviceName, "chat completion",
			fmt.Errorf("status %d: %s", resp.StatusCode(), common.Truncate(sanitized, 200)))
	}

	// 解析回應
	var result common.ChatResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return "", common.NewExternalServiceError(serviceName, "chat completion", fmt.Errorf("failed to parse response: %w", err))
	}
	if result.Error != nil && result.Error.Message != "" {
		return "", common.NewExternalServiceError(serviceName, "chat completion", errors.New(result.Error.Message))
	}
	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return "", common.NewExternalServiceError(serviceName, "chat completion", errors.New("no choices in response"))
	}

	common.LogDebug("OpenRouter 回應",
		zap.String("model", model),
		zap.Int("content_length", len(result.Choices[0].Message.Content)),
	)
	return result.Choices[0].Message.Content, nil
}

// GenerateResponse 以視覺模型處理文字加圖片的請求
func (s *OpenRouterService) GenerateResponse(ctx context.Context, prompt string, imageData string) (string, error) {
	content := []common.Content{{Type: "text", Text: strings.TrimSpace(prompt)}}
	if imageData != "" {
		url := imageData
		if !strings.HasPrefix(imageData, "data:image/") {
			url = fmt.Sprintf("data:image/jpeg;base64,%s", imageData)
		}
		content = append(content, common.Content{Type: "image_url", ImageURL: &common.ImageURL{URL: url}})
	}

	model := s.config.VisionModel
	if model == "" {
		model = s.config.Model
	}
	return s.Chat(ctx, ChatRequest{
		Model:    model,
		Messages: []common.Message{{Role: "user", Content: content}},
	})
}

// sanitizeResponse 移除回應中的圖片資料，避免寫進日誌或錯誤訊息
func sanitizeResponse(body []byte) string {
	text := string(body)
	if strings.Contains(text, "data:image/") {
		return "[IMAGE_DATA_REMOVED]"
	}
	if len(body) > 100 && strings.Contains(text, "base64") {
		return "[BASE64_DATA_REMOVED]"
	}

	var apiErr struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return apiErr.Error.Message
	}
	return text
}
