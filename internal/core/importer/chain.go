package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"recipe-importer/internal/pkg/common"

	"go.uber.org/zap"
)

// ErrInsufficientEvidence 策略成功但取得的文字太短
var ErrInsufficientEvidence = errors.New("insufficient evidence")

// strategy 取得證據的一種方式
type strategy struct {
	name string
	run  func(ctx context.Context) (*acquisition, error)
}

// acquisition 策略的產出
type acquisition struct {
	method   string
	evidence Evidence
	// structured 頁面的 JSON-LD 食譜，直接使用不經規則解析
	structured *common.Recipe
	// recipe 影像服務直接回傳的食譜
	recipe *common.Recipe
	notes  []string
}

// firstSuccess 依序嘗試策略，回傳第一個成功者；全部失敗時回傳最後一個錯誤。
// 每個失敗都會留下一則 note，策略之間不平行執行。
func firstSuccess(ctx context.Context, metrics *Metrics, strategies []strategy) (*acquisition, []string, error) {
	var notes []string
	var lastErr error
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return nil, notes, err
		}
		acq, err := s.run(ctx)
		if err == nil && acq != nil {
			return acq, notes, nil
		}
		if err == nil {
			err = fmt.Errorf("%s: %w", s.name, ErrInsufficientEvidence)
		}
		lastErr = err
		notes = append(notes, fmt.Sprintf("%s failed: %s", s.name, err.Error()))
		metrics.observeStrategyFailure(s.name)
		common.LogWarn("取得證據失敗，嘗試下一個策略",
			zap.String("strategy", s.name),
			zap.Error(err),
		)
		// 呼叫端取消時不再嘗試
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, notes, err
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no acquisition strategy configured")
	}
	return nil, notes, lastErr
}

// requireText 檢查證據長度
func requireText(name, text string, min int) error {
	n := len([]rune(strings.TrimSpace(text)))
	if n < min {
		return fmt.Errorf("%s returned %d characters, need at least %d: %w", name, n, min, ErrInsufficientEvidence)
	}
	return nil
}

// chainFailure 將鏈的最後錯誤轉成帶建議的外部服務錯誤
func chainFailure(service string, err error, notes []string, suggestions ...string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var ext *common.ExternalServiceError
	if errors.As(err, &ext) {
		wrapped := common.NewExternalServiceError(ext.Service, ext.Op, ext.Err)
		wrapped.Suggestions = append(append([]string{}, ext.Suggestions...), suggestions...)
		return wrapped
	}
	op := "import"
	if len(notes) > 0 {
		op = fmt.Sprintf("import (%d strategies tried)", len(notes))
	}
	return common.NewExternalServiceError(service, op, err).WithSuggestions(suggestions...)
}
