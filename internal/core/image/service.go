package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // 支援 GIF
	"image/jpeg"
	_ "image/png" // 支援 PNG
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // 支援 WebP
)

const (
	defaultMaxSize   = 10 << 20
	defaultMaxPixels = 40_000_000
	jpegQuality      = 85
)

var ErrTooLarge = errors.New("image exceeds the size limit")

// Service 圖片載入服務：讀取、檢查、縮圖並轉成 JPEG data URL
type Service struct {
	maxSizeBytes int64
	maxDimension int
	maxPixels    int64
	client       *resty.Client
}

// NewService 創建新的圖片處理服務
func NewService(cfg config.ImageConfig, timeout time.Duration) *Service {
	if cfg.MaxSizeBytes <= 0 {
		cfg.MaxSizeBytes = defaultMaxSize
	}
	if cfg.MaxPixels <= 0 {
		cfg.MaxPixels = defaultMaxPixels
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Service{
		maxSizeBytes: cfg.MaxSizeBytes,
		maxDimension: cfg.MaxDimension,
		maxPixels:    cfg.MaxPixels,
		client:       resty.New().SetTimeout(timeout),
	}
}

// LoadDataURL 支援 data URL、http(s) 網址與本地路徑。
// 本地路徑只來自上傳暫存檔與 CLI，API 的 JSON 輸入在 handler 層已擋下。
func (s *Service) LoadDataURL(ctx context.Context, uri string) (string, error) {
	uri = strings.TrimSpace(uri)
	raw, err := s.read(ctx, uri)
	if err != nil {
		return "", err
	}
	if err := s.checkPixels(raw); err != nil {
		return "", err
	}
	out, err := s.encode(raw)
	if err != nil {
		return "", common.NewExternalServiceError("image-loader", "decode", err)
	}
	common.LogDebug("圖片載入完成",
		zap.String("image_type", imageType(uri)),
		zap.Int("input_bytes", len(raw)),
		zap.Int("output_bytes", len(out)),
	)
	return out, nil
}

func (s *Service) read(ctx context.Context, uri string) ([]byte, error) {
	switch {
	case uri == "":
		return nil, common.NewValidationError("image location is empty")
	case strings.HasPrefix(uri, "data:"):
		parts := strings.SplitN(uri, ",", 2)
		if len(parts) != 2 || !strings.HasSuffix(parts[0], ";base64") {
			return nil, common.NewValidationError("invalid base64 data format")
		}
		data, err := base64.StdEncoding.DecodeString(parts[1])
		if err != nil {
			return nil, common.NewValidationError(fmt.Sprintf("failed to decode base64 data: %v", err))
		}
		return data, s.checkSize(int64(len(data)))
	case strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://"):
		return s.download(ctx, uri)
	default:
		path := strings.TrimPrefix(uri, "file://")
		info, err := os.Stat(path)
		if err != nil {
			return nil, common.NewExternalServiceError("image-loader", "read", err)
		}
		if err := s.checkSize(info.Size()); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, common.NewExternalServiceError("image-loader", "read", err)
		}
		return data, nil
	}
}

func (s *Service) download(ctx context.Context, url string) ([]byte, error) {
	start := time.Now()
	resp, err := s.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	common.LogExternalCall("image-download", time.Since(start), err)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, common.NewExternalServiceError("image-loader", "download", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != http.StatusOK {
		return nil, common.NewExternalServiceError("image-loader", "download", fmt.Errorf("status code %d", resp.StatusCode()))
	}

	// 多讀一個 byte 判斷是否超過上限
	data, err := io.ReadAll(io.LimitReader(body, s.maxSizeBytes+1))
	if err != nil {
		return nil, common.NewExternalServiceError("image-loader", "download", err)
	}
	return data, s.checkSize(int64(len(data)))
}

func (s *Service) checkSize(n int64) error {
	if n > s.maxSizeBytes {
		return common.NewExternalServiceError("image-loader", "read",
			fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, n, s.maxSizeBytes)).
			WithSuggestions("use a smaller or compressed image")
	}
	return nil
}

// checkPixels 先讀標頭尺寸，避免解碼超大點陣圖
func (s *Service) checkPixels(raw []byte) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return common.NewExternalServiceError("image-loader", "decode", fmt.Errorf("failed to read image header: %w", err))
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > s.maxPixels {
		return common.NewExternalServiceError("image-loader", "decode",
			fmt.Errorf("%w: %dx%d pixels (max %d)", ErrTooLarge, cfg.Width, cfg.Height, s.maxPixels)).
			WithSuggestions("use an image with a lower resolution")
	}
	return nil
}

func (s *Service) encode(raw []byte) (string, error) {
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}
	if !isSupportedFormat(format) {
		return "", fmt.Errorf("unsupported image format: %s", format)
	}

	img = s.downscale(img)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", fmt.Errorf("failed to encode image as JPEG: %w", err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// downscale 長邊超過 maxDimension 時等比例縮小
func (s *Service) downscale(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	longest := w
	if h > longest {
		longest = h
	}
	if s.maxDimension <= 0 || longest <= s.maxDimension {
		return img
	}

	nw := w * s.maxDimension / longest
	nh := h * s.maxDimension / longest
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// isSupportedFormat 檢查圖片格式是否支援
func isSupportedFormat(format string) bool {
	switch format {
	case "jpeg", "png", "gif", "webp":
		return true
	default:
		return false
	}
}

// imageType 日誌用的來源類型，不記錄內容
func imageType(uri string) string {
	switch {
	case strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://"):
		return "url"
	case strings.HasPrefix(uri, "data:image/"):
		return "data_uri_" + strings.TrimPrefix(strings.SplitN(uri, ";", 2)[0], "data:image/")
	case strings.HasPrefix(uri, "data:"):
		return "data_uri"
	default:
		return "file"
	}
}
