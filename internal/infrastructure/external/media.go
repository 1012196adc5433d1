package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"recipe-importer/internal/core/importer"
	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/pkg/common"

	"github.com/go-resty/resty/v2"
)

// Transcriber 語音轉文字服務客戶端
// 遠端網址以 JSON 送出；本地檔案以 multipart 上傳
type Transcriber struct {
	endpoint string
	client   *resty.Client
}

// NewTranscriber 創建轉錄客戶端
func NewTranscriber(cfg config.ServicesConfig) *Transcriber {
	client := newClient(cfg.MediaTimeout, cfg.UserAgent)
	if cfg.TranscribeAPIKey != "" {
		client.SetAuthToken(cfg.TranscribeAPIKey)
	}
	return &Transcriber{endpoint: cfg.TranscribeURL, client: client}
}

type transcribeResponse struct {
	Text string `json:"text"`
}

// Transcribe 取得音訊的逐字稿
func (t *Transcriber) Transcribe(ctx context.Context, req importer.TranscribeRequest) (string, error) {
	if t.endpoint == "" {
		return "", common.NewExternalServiceError("transcription", "transcribe", errors.New("transcription url is not configured"))
	}

	var out transcribeResponse
	r := t.client.R().SetContext(ctx).SetResult(&out)
	if req.URI != "" && !isRemote(req.URI) {
		r.SetFile("file", localPath(req.URI)).
			SetFormData(map[string]string{"mime": req.MIME, "language": req.Language})
	} else {
		r.SetBody(req)
	}

	start := time.Now()
	resp, err := r.Post(t.endpoint)
	common.LogExternalCall("transcription", time.Since(start), err)
	if err != nil {
		return "", callError(ctx, "transcription", "transcribe", err)
	}
	if !isSuccess(resp) {
		return "", statusError("transcription", "transcribe", resp)
	}
	return strings.TrimSpace(out.Text), nil
}

// VideoExtractor 影片內容擷取服務客戶端（字幕、逐格 OCR、語音）
type VideoExtractor struct {
	endpoint string
	client   *resty.Client
}

// NewVideoExtractor 創建影片擷取客戶端
func NewVideoExtractor(cfg config.ServicesConfig) *VideoExtractor {
	return &VideoExtractor{
		endpoint: cfg.VideoExtractURL,
		client:   newClient(cfg.MediaTimeout, cfg.UserAgent),
	}
}

// Extract 送出影片並取得合併後的文字訊號
func (v *VideoExtractor) Extract(ctx context.Context, req importer.VideoExtractRequest) (*importer.VideoExtraction, error) {
	if v.endpoint == "" {
		return nil, common.NewExternalServiceError("video-extractor", "extract", errors.New("video extract url is not configured"))
	}

	var out importer.VideoExtraction
	r := v.client.R().SetContext(ctx).SetResult(&out)
	if isRemote(req.URI) {
		r.SetBody(req)
	} else {
		options, err := json.Marshal(req)
		if err != nil {
			return nil, fmt.Errorf("failed to encode extract options: %w", err)
		}
		r.SetFile("file", localPath(req.URI)).
			SetFormData(map[string]string{
				"options":              string(options),
				"frameIntervalSeconds": strconv.Itoa(req.FrameIntervalSeconds),
			})
	}

	start := time.Now()
	resp, err := r.Post(v.endpoint)
	common.LogExternalCall("video-extractor", time.Since(start), err)
	if err != nil {
		return nil, callError(ctx, "video-extractor", "extract", err)
	}
	if !isSuccess(resp) {
		return nil, statusError("video-extractor", "extract", resp)
	}
	return &out, nil
}

func localPath(uri string) string {
	return filepath.Clean(strings.TrimPrefix(uri, "file://"))
}
