package external

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const defaultMaxHTMLBytes = 5 << 20

// HTMLFetcher 直接抓取網頁
type HTMLFetcher struct {
	client   *resty.Client
	maxBytes int64
}

// NewHTMLFetcher 創建網頁抓取客戶端
func NewHTMLFetcher(cfg config.ServicesConfig) *HTMLFetcher {
	maxBytes := cfg.MaxHTMLBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxHTMLBytes
	}
	client := newClient(cfg.HTTPTimeout, cfg.UserAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	return &HTMLFetcher{client: client, maxBytes: maxBytes}
}

// FetchHTML 取得網頁 HTML；本體超過 maxBytes 時放棄
func (f *HTMLFetcher) FetchHTML(ctx context.Context, url string) (string, error) {
	start := time.Now()
	resp, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	common.LogExternalCall("html-fetcher", time.Since(start), err)
	if err != nil {
		return "", callError(ctx, "html-fetcher", "fetch", err)
	}
	body := resp.RawBody()
	defer body.Close()

	// 多讀一個 byte 判斷是否超過上限
	data, err := io.ReadAll(io.LimitReader(body, f.maxBytes+1))
	if err != nil {
		return "", callError(ctx, "html-fetcher", "read", err)
	}
	if !isSuccess(resp) {
		return "", common.NewExternalServiceError("html-fetcher", "fetch",
			fmt.Errorf("status %d: %s", resp.StatusCode(), common.Truncate(strings.TrimSpace(string(data)), maxErrorBody)))
	}
	if int64(len(data)) > f.maxBytes {
		return "", common.NewExternalServiceError("html-fetcher", "fetch",
			fmt.Errorf("page exceeds %d bytes", f.maxBytes)).
			WithSuggestions("paste the recipe text instead")
	}
	return string(data), nil
}

// ReaderProxy 文字擷取代理：GET <proxy>/<target-url>
type ReaderProxy struct {
	baseURL string
	client  *resty.Client
}

// NewReaderProxy 創建 reader proxy 客戶端
func NewReaderProxy(cfg config.ServicesConfig) *ReaderProxy {
	client := newClient(cfg.HTTPTimeout, cfg.UserAgent).SetHeader("Accept", "text/plain")
	if cfg.ReaderAPIKey != "" {
		client.SetAuthToken(cfg.ReaderAPIKey)
	}
	return &ReaderProxy{
		baseURL: strings.TrimRight(cfg.ReaderProxyURL, "/"),
		client:  client,
	}
}

// FetchText 透過代理取得網頁的文字內容
func (p *ReaderProxy) FetchText(ctx context.Context, target string) (string, error) {
	if p.baseURL == "" {
		return "", common.NewExternalServiceError("reader-proxy", "fetch", errors.New("proxy url is not configured"))
	}
	start := time.Now()
	resp, err := p.client.R().SetContext(ctx).Get(p.baseURL + "/" + target)
	common.LogExternalCall("reader-proxy", time.Since(start), err)
	if err != nil {
		return "", callError(ctx, "reader-proxy", "fetch", err)
	}
	if !isSuccess(resp) {
		return "", statusError("reader-proxy", "fetch", resp)
	}
	return string(resp.Body()), nil
}

// Resolver 追蹤轉址取得最終網址
type Resolver struct {
	client *resty.Client
}

// NewResolver 創建轉址解析客戶端
func NewResolver(cfg config.ServicesConfig) *Resolver {
	return &Resolver{
		client: newClient(cfg.HTTPTimeout, cfg.UserAgent).
			SetRedirectPolicy(resty.FlexibleRedirectPolicy(10)),
	}
}

// Resolve 先用 HEAD，不支援時改用 GET
func (r *Resolver) Resolve(ctx context.Context, url string) (string, error) {
	start := time.Now()
	resp, err := r.client.R().SetContext(ctx).Head(url)
	if err == nil && resp.StatusCode() == http.StatusMethodNotAllowed {
		common.LogDebug("HEAD 不支援，改用 GET", zap.String("url", url))
		resp, err = r.client.R().SetContext(ctx).SetDoNotParseResponse(true).Get(url)
		if err == nil {
			resp.RawBody().Close()
		}
	}
	common.LogExternalCall("url-resolver", time.Since(start), err)
	if err != nil {
		return "", callError(ctx, "url-resolver", "resolve", err)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return "", common.NewExternalServiceError("url-resolver", "resolve", fmt.Errorf("status %d", resp.StatusCode()))
	}
	if resp.RawResponse == nil || resp.RawResponse.Request == nil {
		return url, nil
	}
	return resp.RawResponse.Request.URL.String(), nil
}
