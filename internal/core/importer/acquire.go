package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"recipe-importer/internal/pkg/common"

	"go.uber.org/zap"
)

// HTMLFetcher 直接抓取網頁 HTML
type HTMLFetcher interface {
	FetchHTML(ctx context.Context, url string) (string, error)
}

// ReaderProxy 透過文字擷取代理取得網頁內容
type ReaderProxy interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// URLResolver 追蹤轉址取得最終網址
type URLResolver interface {
	Resolve(ctx context.Context, url string) (string, error)
}

// TranscribeRequest 轉錄請求；URI 為本地或遠端檔案，URL 為影片頁面
type TranscribeRequest struct {
	URI      string `json:"uri,omitempty"`
	URL      string `json:"url,omitempty"`
	MIME     string `json:"mime,omitempty"`
	Language string `json:"language,omitempty"`
}

// Transcriber 語音轉文字服務
type Transcriber interface {
	Transcribe(ctx context.Context, req TranscribeRequest) (string, error)
}

// VideoExtractRequest 影片內容擷取請求
type VideoExtractRequest struct {
	URI                  string `json:"uri"`
	MIME                 string `json:"mime,omitempty"`
	Language             string `json:"language,omitempty"`
	FrameIntervalSeconds int    `json:"frameIntervalSeconds,omitempty"`
}

// VideoExtraction 影片字幕、逐格 OCR 與語音轉錄的合併結果
type VideoExtraction struct {
	AudioTranscript string        `json:"audioTranscript"`
	Captions        string        `json:"captions"`
	FrameTexts      []string      `json:"frameTexts"`
	MergedContent   string        `json:"mergedContent"`
	Metadata        VideoMetadata `json:"metadata"`
}

// VideoMetadata 擷取過程的資訊
type VideoMetadata struct {
	ExtractionMethods []string `json:"extractionMethods"`
	Confidence        float64  `json:"confidence"`
	Title             string   `json:"title,omitempty"`
}

// VideoExtractor 影片內容擷取服務
type VideoExtractor interface {
	Extract(ctx context.Context, req VideoExtractRequest) (*VideoExtraction, error)
}

// ImageLoader 將檔案位置轉成 data URL
type ImageLoader interface {
	LoadDataURL(ctx context.Context, uri string) (string, error)
}

// ImageImporter 以視覺模型從圖片取得食譜
type ImageImporter interface {
	ImportFromImage(ctx context.Context, dataURL string) (*common.Recipe, error)
}

// Completer 確定性（低溫度）的文字補全
type Completer interface {
	CompleteDeterministic(ctx context.Context, system, user string) (string, error)
}

var (
	urlSuggestions = []string{
		"paste the recipe text directly",
		"take a screenshot of the recipe and import it as an image",
	}
	videoSuggestions = []string{
		"paste the recipe text from the video caption or description",
		"take a screenshot of the ingredient list and import it as an image",
		"try a different video that shows or reads out the full recipe",
	}
	imageSuggestions = []string{
		"retake the photo with the whole recipe in frame and good lighting",
		"paste the recipe text directly",
	}
)

func notConfigured(service string) *common.ExternalServiceError {
	return common.NewExternalServiceError(service, "", errors.New("service is not configured"))
}

// acquire 依輸入類型選擇策略鏈
func (s *Service) acquire(ctx context.Context, cls Classification, input RawInput, opts Options) (*acquisition, error) {
	lang := opts.Language
	if lang == "" {
		lang = s.settings.Language
	}

	switch cls.Kind {
	case KindRecipeURL:
		in, _ := input.(URLInput)
		return s.acquireRecipeURL(ctx, strings.TrimSpace(in.URL))
	case KindVideoURL:
		in, _ := input.(URLInput)
		return s.acquireVideoURL(ctx, strings.TrimSpace(in.URL), lang)
	case KindVideoFile:
		return s.acquireVideoFile(ctx, fileInput(input), lang)
	case KindImageFile:
		return s.acquireImage(ctx, fileInput(input))
	case KindText:
		in, _ := input.(TextInput)
		return &acquisition{
			method:   "rules",
			evidence: Evidence{Text: in.Text, Tags: ExtractHashtags(in.Text)},
		}, nil
	default:
		return nil, common.NewValidationError(fmt.Sprintf("unsupported input kind %q", cls.Kind))
	}
}

func (s *Service) acquireRecipeURL(ctx context.Context, target string) (*acquisition, error) {
	minChars := s.settings.MinPageTextChars
	strategies := []strategy{
		{name: "direct-fetch", run: func(ctx context.Context) (*acquisition, error) {
			if s.deps.Fetcher == nil {
				return nil, notConfigured("html-fetcher")
			}
			body, err := s.deps.Fetcher.FetchHTML(ctx, target)
			if err != nil {
				return nil, err
			}
			page, err := ParsePage(body)
			if err != nil {
				return nil, err
			}
			ev := Evidence{PageText: page.Text, Title: page.Title, Text: joinNonEmpty(page.Title, page.Text)}
			if recipe := pickStructured(page); recipe != nil {
				return &acquisition{method: "json-ld", structured: recipe, evidence: ev}, nil
			}
			if err := requireText("direct-fetch", page.Text, minChars); err != nil {
				return nil, err
			}
			ev.Tags = page.Keywords
			ev.Description = page.Description
			return &acquisition{method: "scrape", evidence: ev}, nil
		}},
		{name: "reader-proxy", run: func(ctx context.Context) (*acquisition, error) {
			return s.readerEvidence(ctx, target, "scrape", minChars)
		}},
	}

	acq, notes, err := firstSuccess(ctx, s.deps.Metrics, strategies)
	if err != nil {
		return nil, chainFailure("recipe-url", err, notes, urlSuggestions...)
	}
	acq.notes = append(notes, acq.notes...)
	return acq, nil
}

// pickStructured 選第一個有食材或步驟的 JSON-LD 食譜，並用 OG meta 補齊名稱與描述
func pickStructured(page *Page) *common.Recipe {
	for _, r := range page.Recipes {
		if r.IsEmpty() {
			continue
		}
		if r.Name == "" {
			r.Name = page.Title
		}
		if r.Description == "" {
			r.Description = page.Description
		}
		if r.Name == "" {
			r.Name = defaultRecipeName
		}
		return r
	}
	return nil
}

func (s *Service) readerEvidence(ctx context.Context, target, method string, minChars int) (*acquisition, error) {
	if s.deps.Reader == nil {
		return nil, notConfigured("reader-proxy")
	}
	body, err := s.deps.Reader.FetchText(ctx, target)
	if err != nil {
		return nil, err
	}
	doc := SplitReaderResponse(body)
	text := FlattenMarkdown(doc.Content)
	if err := requireText("reader-proxy", text, minChars); err != nil {
		return nil, err
	}
	return &acquisition{
		method: method,
		evidence: Evidence{
			Text:     joinNonEmpty(doc.Title, text),
			PageText: text,
			Title:    doc.Title,
			Tags:     ExtractHashtags(doc.Content),
		},
	}, nil
}

func (s *Service) acquireVideoURL(ctx context.Context, raw, lang string) (*acquisition, error) {
	target := CanonicalizeVideoURL(raw)
	var notes []string
	if s.deps.Resolver != nil {
		resolved, err := s.deps.Resolver.Resolve(ctx, target)
		switch {
		case err != nil:
			notes = append(notes, "url resolution failed; using the original link")
			common.LogWarn("影片網址解析失敗", zap.String("url", target), zap.Error(err))
		case resolved != "":
			target = CanonicalizeVideoURL(resolved)
		}
	}

	strategies := []strategy{
		{name: "reader-proxy", run: func(ctx context.Context) (*acquisition, error) {
			acq, err := s.readerEvidence(ctx, target, "reader-proxy", s.settings.MinPageTextChars)
			if err != nil {
				return nil, err
			}
			// 影片頁面的文字多半是說明欄
			acq.evidence.Caption = acq.evidence.PageText
			return acq, nil
		}},
		{name: "transcription", run: func(ctx context.Context) (*acquisition, error) {
			if s.deps.Transcriber == nil {
				return nil, notConfigured("transcription")
			}
			text, err := s.deps.Transcriber.Transcribe(ctx, TranscribeRequest{URL: target, Language: lang})
			if err != nil {
				return nil, err
			}
			if err := requireText("transcription", text, s.settings.MinTranscriptChars); err != nil {
				return nil, err
			}
			return &acquisition{
				method:   "transcript",
				evidence: Evidence{Text: text, Transcript: text, Tags: ExtractHashtags(text)},
			}, nil
		}},
	}

	acq, chainNotes, err := firstSuccess(ctx, s.deps.Metrics, strategies)
	if err != nil {
		return nil, chainFailure("video-url", err, chainNotes, videoSuggestions...)
	}
	acq.notes = append(append(notes, chainNotes...), acq.notes...)
	return acq, nil
}

func (s *Service) acquireVideoFile(ctx context.Context, in FileInput, lang string) (*acquisition, error) {
	mimeType := fileMIME(in)
	strategies := []strategy{
		{name: "video-extract", run: func(ctx context.Context) (*acquisition, error) {
			if s.deps.VideoExtractor == nil {
				return nil, notConfigured("video-extractor")
			}
			out, err := s.deps.VideoExtractor.Extract(ctx, VideoExtractRequest{
				URI:                  in.URI,
				MIME:                 mimeType,
				Language:             lang,
				FrameIntervalSeconds: s.settings.FrameIntervalSeconds,
			})
			if err != nil {
				return nil, err
			}
			ev := mergeVideoEvidence(out)
			if err := requireText("video-extract", ev.Text, s.settings.MinVideoTextChars); err != nil {
				return nil, err
			}
			acq := &acquisition{method: "video-extract", evidence: ev}
			if len(out.Metadata.ExtractionMethods) > 0 {
				acq.notes = append(acq.notes, "video signals: "+strings.Join(out.Metadata.ExtractionMethods, ", "))
			}
			return acq, nil
		}},
		{name: "audio-transcription", run: func(ctx context.Context) (*acquisition, error) {
			if s.deps.Transcriber == nil {
				return nil, notConfigured("transcription")
			}
			text, err := s.deps.Transcriber.Transcribe(ctx, TranscribeRequest{URI: in.URI, MIME: mimeType, Language: lang})
			if err != nil {
				return nil, err
			}
			if err := requireText("audio-transcription", text, s.settings.MinTranscriptChars); err != nil {
				return nil, err
			}
			return &acquisition{
				method:   "transcript",
				evidence: Evidence{Text: text, Transcript: text, Tags: ExtractHashtags(text)},
			}, nil
		}},
	}

	acq, notes, err := firstSuccess(ctx, s.deps.Metrics, strategies)
	if err != nil {
		return nil, chainFailure("video-file", err, notes, videoSuggestions...)
	}
	acq.notes = append(notes, acq.notes...)
	return acq, nil
}

// mergeVideoEvidence 合併字幕、畫面文字與語音；服務已提供 MergedContent 時直接使用
func mergeVideoEvidence(out *VideoExtraction) Evidence {
	ocr := strings.Join(dedupeLines(out.FrameTexts), "\n")
	ev := Evidence{
		Caption:    strings.TrimSpace(out.Captions),
		Transcript: strings.TrimSpace(out.AudioTranscript),
		OCRText:    ocr,
		Title:      out.Metadata.Title,
	}
	ev.Text = strings.TrimSpace(out.MergedContent)
	if ev.Text == "" {
		ev.Text = joinNonEmpty(ev.Caption, ev.OCRText, ev.Transcript)
	}
	ev.Tags = ExtractHashtags(ev.Caption + "\n" + ev.Text)
	return ev
}

// dedupeLines 相鄰畫面常有相同的 OCR 文字
func dedupeLines(texts []string) []string {
	seen := make(map[string]struct{}, len(texts))
	out := make([]string, 0, len(texts))
	for _, t := range texts {
		for _, line := range nonEmptyLines(t) {
			key := strings.ToLower(line)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, line)
		}
	}
	return out
}

func (s *Service) acquireImage(ctx context.Context, in FileInput) (*acquisition, error) {
	if s.deps.Vision == nil {
		return nil, notConfigured("image-importer").WithSuggestions(imageSuggestions...)
	}
	// 有 loader 時一律經過它（含 data URL），確保大小與格式一致
	dataURL := in.URI
	switch {
	case s.deps.Images != nil:
		loaded, err := s.deps.Images.LoadDataURL(ctx, in.URI)
		if err != nil {
			return nil, chainFailure("image-loader", err, nil, imageSuggestions...)
		}
		dataURL = loaded
	case !strings.HasPrefix(dataURL, "data:"):
		return nil, notConfigured("image-loader").WithSuggestions(imageSuggestions...)
	}

	recipe, err := s.deps.Vision.ImportFromImage(ctx, dataURL)
	if err != nil {
		return nil, chainFailure("image-importer", err, nil, imageSuggestions...)
	}
	if recipe.IsEmpty() {
		return nil, common.NewExternalServiceError("image-importer", "import", errors.New("no recipe could be read from the image")).
			WithSuggestions(imageSuggestions...)
	}
	if strings.TrimSpace(recipe.Name) == "" {
		recipe.Name = defaultRecipeName
	}
	recipe.EnsureSlices()
	return &acquisition{method: "vision", recipe: recipe}, nil
}

func joinNonEmpty(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}
