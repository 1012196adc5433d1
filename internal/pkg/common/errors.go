package common

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorResponse 定義 API 錯誤響應結構
type ErrorResponse struct {
	Code        string   `json:"code"`                  // 錯誤代碼
	Message     string   `json:"message"`               // 錯誤信息
	Suggestions []string `json:"suggestions,omitempty"` // 使用者可採取的下一步
	Details     string   `json:"details,omitempty"`     // 詳細信息（僅在開發模式顯示）
}

// CustomError 定義自定義錯誤類型
type CustomError struct {
	Code    string // 錯誤代碼
	Message string // 錯誤信息
	Err     error  // 原始錯誤
	Status  int    // HTTP 狀態碼
}

func (e *CustomError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap 支援 errors.Is / errors.As
func (e *CustomError) Unwrap() error {
	return e.Err
}

// Response 轉成 API 錯誤響應
func (e *CustomError) Response() ErrorResponse {
	return ErrorResponse{Code: e.Code, Message: e.Message}
}

// NewError 創建新的自定義錯誤
func NewError(code string, message string, status int, err error) *CustomError {
	return &CustomError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// ValidationError 表示驗證錯誤
type ValidationError struct {
	Field   string
	message string
}

// Error 實現 error 介面
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.message)
	}
	return e.message
}

// NewValidationError 創建新的驗證錯誤
func NewValidationError(message string) error {
	return &ValidationError{
		message: message,
	}
}

// NewFieldValidationError 創建帶欄位名稱的驗證錯誤
func NewFieldValidationError(field, message string) error {
	return &ValidationError{
		Field:   field,
		message: message,
	}
}

// IsValidationError 檢查是否為驗證錯誤
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ExternalServiceError 外部服務（抓取、轉錄、OCR、AI）呼叫失敗
type ExternalServiceError struct {
	Service     string   // 服務名稱，例如 reader-proxy
	Op          string   // 操作，例如 fetch
	Err         error    // 原始錯誤
	Suggestions []string // 使用者可採取的替代方案
}

func (e *ExternalServiceError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Service)
	if e.Op != "" {
		sb.WriteString(" ")
		sb.WriteString(e.Op)
	}
	sb.WriteString(" failed")
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap 支援 errors.Is / errors.As
func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// NewExternalServiceError 創建外部服務錯誤
func NewExternalServiceError(service, op string, err error) *ExternalServiceError {
	return &ExternalServiceError{
		Service: service,
		Op:      op,
		Err:     err,
	}
}

// WithSuggestions 附加使用者建議
func (e *ExternalServiceError) WithSuggestions(suggestions ...string) *ExternalServiceError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// IsExternalServiceError 檢查是否為外部服務錯誤
func IsExternalServiceError(err error) bool {
	var se *ExternalServiceError
	return errors.As(err, &se)
}

// 預定義錯誤代碼
const (
	// 客戶端錯誤 (4xx)
	ErrCodeInvalidRequest   = "INVALID_REQUEST"    // 400
	ErrCodeNotFound         = "NOT_FOUND"          // 404
	ErrCodeMethodNotAllowed = "METHOD_NOT_ALLOWED" // 405
	ErrCodeRequestTimeout   = "REQUEST_TIMEOUT"    // 408
	ErrCodeTooLarge         = "REQUEST_TOO_LARGE"  // 413
	ErrCodeImportAbstain    = "IMPORT_ABSTAIN"     // 422
	ErrCodeTooManyRequests  = "TOO_MANY_REQUESTS"  // 429

	// 服務器錯誤 (5xx)
	ErrCodeInternalError      = "INTERNAL_ERROR"         // 500
	ErrCodeExternalService    = "EXTERNAL_SERVICE_ERROR" // 502
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"    // 503
	ErrCodeGatewayTimeout     = "GATEWAY_TIMEOUT"        // 504
)

// 預定義錯誤
var (
	ErrNotFound           = NewError(ErrCodeNotFound, "資源不存在", http.StatusNotFound, nil)
	ErrMethodNotAllowed   = NewError(ErrCodeMethodNotAllowed, "不支援的請求方法", http.StatusMethodNotAllowed, nil)
	ErrServiceUnavailable = NewError(ErrCodeServiceUnavailable, "服務暫時不可用", http.StatusServiceUnavailable, nil)
)
