package service

import (
	"context"
	"errors"
	"testing"
	"time"

	openrouter "recipe-importer/internal/core/service"
	"recipe-importer/internal/infrastructure/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	reqs    []openrouter.ChatRequest
	prompts []string
	content string
	err     error
}

func (f *fakeClient) Chat(_ context.Context, req openrouter.ChatRequest) (string, error) {
	f.reqs = append(f.reqs, req)
	return f.content, f.err
}

func (f *fakeClient) GenerateResponse(_ context.Context, prompt string, _ string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.content, f.err
}

func TestCompleteDeterministic(t *testing.T) {
	client := &fakeClient{content: "  {\"ok\":true}\n"}
	svc := NewService(config.OpenRouterConfig{Model: "test-model"}, client)

	out, err := svc.CompleteDeterministic(context.Background(), "be careful", "fix this")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)

	require.Len(t, client.reqs, 1)
	req := client.reqs[0]
	assert.Equal(t, "test-model", req.Model)
	require.NotNil(t, req.Temperature)
	assert.Zero(t, *req.Temperature)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, "fix this", req.Messages[1].Content[0].Text)
}

func TestComplete(t *testing.T) {
	client := &fakeClient{content: "hello"}
	svc := NewService(config.OpenRouterConfig{}, client)

	_, err := svc.Complete(context.Background(), "", "hi")
	require.NoError(t, err)
	assert.Nil(t, client.reqs[0].Temperature)
	assert.Len(t, client.reqs[0].Messages, 1)

	client.err = errors.New("down")
	_, err = svc.Complete(context.Background(), "", "hi")
	assert.Error(t, err)
}

func TestProcessRequest(t *testing.T) {
	client := &fakeClient{content: " recipe "}
	svc := NewService(config.OpenRouterConfig{}, client)

	resp, err := svc.ProcessRequest(context.Background(), "read this", "data:image/jpeg;base64,AAAA")
	require.NoError(t, err)
	assert.Equal(t, "recipe", resp.Content)
	assert.Equal(t, []string{"read this"}, client.prompts)
}

func TestRateLimitHonoursContext(t *testing.T) {
	client := &fakeClient{content: "ok"}
	svc := NewService(config.OpenRouterConfig{RequestsPerMinute: 1}, client)

	_, err := svc.Complete(context.Background(), "", "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = svc.Complete(ctx, "", "second")
	assert.Error(t, err)
	assert.Len(t, client.reqs, 1)
}
