package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"recipe-importer/internal/api/handlers/health"
	"recipe-importer/internal/core/importer"
	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/pkg/common"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubImporter struct{}

func (stubImporter) SmartImport(_ context.Context, _ importer.RawInput, opts importer.Options) (*importer.Result, error) {
	r := common.NewRecipe()
	r.Name = "Toast"
	return &importer.Result{Recipe: r, Provenance: importer.Provenance{Policy: opts.Policy, RequestID: opts.RequestID}}, nil
}

func (stubImporter) RecentAbstains(context.Context) []importer.AbstainEvent {
	return []importer.AbstainEvent{}
}

func testConfig() *config.Config {
	return &config.Config{
		App:         config.AppConfig{Debug: true, Version: "test"},
		Server:      config.ServerConfig{ImportTimeout: time.Minute},
		RateLimit:   config.RateLimitConfig{Enabled: true, Requests: 100, Window: time.Minute, Burst: 10},
		DedupWindow: time.Second,
	}
}

func serve(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouterHealthEndpoints(t *testing.T) {
	r := SetupRouter(testConfig(), Dependencies{
		Importer: stubImporter{},
		Features: map[string]bool{"vision": false},
	})

	w := serve(r, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body health.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "test", body.Version)
	assert.Equal(t, map[string]bool{"vision": false}, body.Features)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/live", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/ready", "").Code)
}

func TestRouterReadinessFailsOnCheck(t *testing.T) {
	r := SetupRouter(testConfig(), Dependencies{
		Importer: stubImporter{},
		Checks: map[string]health.Check{
			"redis": func(context.Context) error { return errors.New("connection refused") },
		},
	})

	w := serve(r, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestRouterImportAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := SetupRouter(testConfig(), Dependencies{Importer: stubImporter{}, Registry: reg})

	w := serve(r, http.MethodPost, "/api/v1/import", `{"text":"Toast","policy":"verbatim"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var res importer.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, importer.PolicyVerbatim, res.Provenance.Policy)
	assert.Equal(t, w.Header().Get("X-Request-ID"), res.Provenance.RequestID)

	// 相同內容在時間窗內重送
	dup := serve(r, http.MethodPost, "/api/v1/import", `{"text":"Toast","policy":"verbatim"}`)
	assert.Equal(t, http.StatusTooManyRequests, dup.Code)

	metrics := serve(r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), "recipe_importer_http_requests_total")
}

func TestRouterWithoutRegistryHasNoMetricsRoute(t *testing.T) {
	r := SetupRouter(testConfig(), Dependencies{Importer: stubImporter{}})
	w := serve(r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), common.ErrCodeNotFound)
}

func TestRouterMethodNotAllowed(t *testing.T) {
	r := SetupRouter(testConfig(), Dependencies{Importer: stubImporter{}})
	w := serve(r, http.MethodGet, "/api/v1/import", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Contains(t, w.Body.String(), common.ErrCodeMethodNotAllowed)
}
