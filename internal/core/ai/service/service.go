package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openrouter "recipe-importer/internal/core/service"
	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/pkg/common"

	"golang.org/x/time/rate"
)

// Response AI 回應
type Response struct {
	Content string
}

// ChatClient 實際呼叫模型的客戶端
type ChatClient interface {
	Chat(ctx context.Context, req openrouter.ChatRequest) (string, error)
	GenerateResponse(ctx context.Context, prompt string, imageData string) (string, error)
}

// Service AI 服務，統一控制對外請求速率
type Service struct {
	config  config.OpenRouterConfig
	client  ChatClient
	limiter *rate.Limiter
}

// NewService 創建 AI 服務
func NewService(cfg config.OpenRouterConfig, client ChatClient) *Service {
	if client == nil {
		client = openrouter.NewOpenRouterService(cfg)
	}
	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
		burst = cfg.RequestsPerMinute/10 + 1
	}
	return &Service{
		config:  cfg,
		client:  client,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// ProcessRequest 文字加圖片的視覺請求
func (s *Service) ProcessRequest(ctx context.Context, prompt string, imageData string) (*Response, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	content, err := s.client.GenerateResponse(ctx, prompt, imageData)
	if err != nil {
		return nil, err
	}
	return &Response{Content: strings.TrimSpace(content)}, nil
}

// Complete 一般文字補全
func (s *Service) Complete(ctx context.Context, system, user string) (string, error) {
	return s.complete(ctx, system, user, nil)
}

// CompleteDeterministic temperature 0 的補全，供食譜校正使用
func (s *Service) CompleteDeterministic(ctx context.Context, system, user string) (string, error) {
	zero := 0.0
	return s.complete(ctx, system, user, &zero)
}

func (s *Service) complete(ctx context.Context, system, user string, temperature *float64) (string, error) {
	if err := s.wait(ctx); err != nil {
		return "", err
	}
	messages := make([]common.Message, 0, 2)
	if system != "" {
		messages = append(messages, textMessage("system", system))
	}
	messages = append(messages, textMessage("user", user))

	content, err := s.client.Chat(ctx, openrouter.ChatRequest{
		Model:       s.config.Model,
		Messages:    messages,
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

// wait 等待速率限制；context 結束時放棄
func (s *Service) wait(ctx context.Context) error {
	if err := s.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return common.NewExternalServiceError("openrouter", "rate limit", fmt.Errorf("%w: %v", errRateLimited, err))
	}
	return nil
}

var errRateLimited = errors.New("request rate limit exceeded")

func textMessage(role, text string) common.Message {
	return common.Message{Role: role, Content: []common.Content{{Type: "text", Text: text}}}
}
