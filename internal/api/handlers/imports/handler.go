package imports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"recipe-importer/internal/core/importer"
	"recipe-importer/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ImportService 匯入管線
type ImportService interface {
	SmartImport(ctx context.Context, input importer.RawInput, opts importer.Options) (*importer.Result, error)
	RecentAbstains(ctx context.Context) []importer.AbstainEvent
}

// FileRequest 檔案輸入（http(s) 網址或 data URL）；本地檔案請走 multipart 上傳
type FileRequest struct {
	URI  string `json:"uri" binding:"required"`
	MIME string `json:"mime,omitempty"`
	Name string `json:"name,omitempty"`
}

// ImportRequest url、text、file 必須恰好提供一個
type ImportRequest struct {
	URL      string       `json:"url,omitempty"`
	Text     string       `json:"text,omitempty"`
	File     *FileRequest `json:"file,omitempty"`
	Policy   string       `json:"policy,omitempty"`
	Language string       `json:"language,omitempty"`
}

// Handler 匯入 API
type Handler struct {
	service   ImportService
	timeout   time.Duration
	uploadDir string
	debug     bool
}

// NewHandler 創建匯入 handler；timeout 為 0 時不另外設定上限
func NewHandler(service ImportService, timeout time.Duration, uploadDir string, debug bool) *Handler {
	if uploadDir == "" {
		uploadDir = os.TempDir()
	}
	return &Handler{
		service:   service,
		timeout:   timeout,
		uploadDir: uploadDir,
		debug:     debug,
	}
}

// HandleImport POST /api/v1/import
func (h *Handler) HandleImport(c *gin.Context) {
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, common.NewValidationError(fmt.Sprintf("invalid request body: %v", err)))
		return
	}

	input, err := req.rawInput()
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.runImport(c, input, req.Policy, req.Language)
}

// HandleUpload POST /api/v1/import/upload（multipart：file、policy、language、mime）
func (h *Handler) HandleUpload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		h.respondError(c, common.NewFieldValidationError("file", "multipart field \"file\" is required"))
		return
	}

	path := filepath.Join(h.uploadDir, uuid.New().String()+strings.ToLower(filepath.Ext(header.Filename)))
	if err := c.SaveUploadedFile(header, path); err != nil {
		common.LogError("儲存上傳檔案失敗", zap.Error(err), zap.String("request_id", requestid.Get(c)))
		h.respondError(c, err)
		return
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			common.LogWarn("刪除上傳檔案失敗", zap.String("path", path), zap.Error(err))
		}
	}()

	mime := c.PostForm("mime")
	if mime == "" {
		mime = header.Header.Get("Content-Type")
	}
	if mime == "application/octet-stream" {
		mime = ""
	}
	input := importer.FileInput{URI: path, MIME: mime, Name: header.Filename}
	h.runImport(c, input, c.PostForm("policy"), c.PostForm("language"))
}

// HandleAbstains GET /api/v1/import/abstains
func (h *Handler) HandleAbstains(c *gin.Context) {
	events := h.service.RecentAbstains(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"abstains": events,
		"count":    len(events),
	})
}

func (h *Handler) runImport(c *gin.Context, input importer.RawInput, policy, language string) {
	p, err := importer.ParsePolicy(policy)
	if err != nil {
		h.respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	reqID := requestid.Get(c)
	result, err := h.service.SmartImport(ctx, input, importer.Options{
		Policy:    p,
		Language:  strings.TrimSpace(language),
		RequestID: reqID,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// rawInput 轉成管線輸入
func (r ImportRequest) rawInput() (importer.RawInput, error) {
	var inputs []importer.RawInput
	if strings.TrimSpace(r.URL) != "" {
		inputs = append(inputs, importer.URLInput{URL: r.URL})
	}
	if strings.TrimSpace(r.Text) != "" {
		inputs = append(inputs, importer.TextInput{Text: r.Text})
	}
	if r.File != nil {
		uri := strings.TrimSpace(r.File.URI)
		if !allowedFileURI(uri) {
			return nil, common.NewFieldValidationError("file.uri", "must be an http(s) or data: URI")
		}
		inputs = append(inputs, importer.FileInput{URI: uri, MIME: r.File.MIME, Name: r.File.Name})
	}
	if len(inputs) != 1 {
		return nil, common.NewValidationError("exactly one of url, text or file must be provided")
	}
	return inputs[0], nil
}

// allowedFileURI 請求本體不得指向伺服器上的檔案
func allowedFileURI(uri string) bool {
	return strings.HasPrefix(uri, "data:") ||
		strings.HasPrefix(uri, "http://") ||
		strings.HasPrefix(uri, "https://")
}

// respondError 依錯誤類型對應 HTTP 狀態碼
func (h *Handler) respondError(c *gin.Context, err error) {
	status, body := h.errorResponse(err)

	fields := []zap.Field{
		zap.Int("status", status),
		zap.String("code", body.Code),
		zap.String("request_id", requestid.Get(c)),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		common.LogError("匯入請求失敗", fields...)
	} else {
		common.LogWarn("匯入請求被拒絕", fields...)
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}

func (h *Handler) errorResponse(err error) (int, common.ErrorResponse) {
	body := common.ErrorResponse{Message: err.Error()}

	var (
		abstain  *importer.AbstainError
		external *common.ExternalServiceError
		maxBytes *http.MaxBytesError
		custom   *common.CustomError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &abstain):
		status = http.StatusUnprocessableEntity
		body.Code = common.ErrCodeImportAbstain
		body.Message = "not enough evidence to import this recipe reliably"
		body.Details = abstain.Code()
		body.Suggestions = abstain.Suggestions
		return status, body
	case common.IsValidationError(err):
		status = http.StatusBadRequest
		body.Code = common.ErrCodeInvalidRequest
		return status, body
	case errors.As(err, &maxBytes):
		status = http.StatusRequestEntityTooLarge
		body.Code = common.ErrCodeTooLarge
		return status, body
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
		body.Code = common.ErrCodeGatewayTimeout
		body.Message = "import timed out"
		return status, body
	case errors.Is(err, context.Canceled):
		status = http.StatusRequestTimeout
		body.Code = common.ErrCodeRequestTimeout
		body.Message = "request canceled"
		return status, body
	case errors.As(err, &external):
		status = http.StatusBadGateway
		body.Code = common.ErrCodeExternalService
		body.Suggestions = external.Suggestions
		return status, body
	case errors.As(err, &custom):
		return custom.Status, custom.Response()
	case errors.Is(err, io.ErrUnexpectedEOF):
		status = http.StatusBadRequest
		body.Code = common.ErrCodeInvalidRequest
		return status, body
	}

	body.Code = common.ErrCodeInternalError
	body.Message = "internal server error"
	if h.debug {
		body.Details = err.Error()
	}
	return status, body
}
