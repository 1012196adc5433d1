// Package external 匯入管線的外部協作服務客戶端（網頁、reader proxy、轉錄、影片擷取）。
package external

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"recipe-importer/internal/pkg/common"

	"github.com/go-resty/resty/v2"
)

const maxErrorBody = 200

// newClient 建立共用設定的 resty 客戶端；不自動重試，fallback 由管線決定
func newClient(timeout time.Duration, userAgent string) *resty.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := resty.New().SetTimeout(timeout)
	if userAgent != "" {
		c.SetHeader("User-Agent", userAgent)
	}
	return c
}

// callError 將傳輸錯誤轉成 ExternalServiceError；context 結束時原樣回傳
func callError(ctx context.Context, service, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return common.NewExternalServiceError(service, op, err)
}

// statusError 非 2xx 回應
func statusError(service, op string, resp *resty.Response) error {
	body := strings.TrimSpace(string(resp.Body()))
	return common.NewExternalServiceError(service, op,
		fmt.Errorf("status %d: %s", resp.StatusCode(), common.Truncate(body, maxErrorBody)))
}

func isSuccess(resp *resty.Response) bool {
	return resp.StatusCode() >= http.StatusOK && resp.StatusCode() < http.StatusMultipleChoices
}

func isRemote(uri string) bool {
	return strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://")
}
