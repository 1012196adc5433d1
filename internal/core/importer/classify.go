package importer

import (
	"fmt"
	"mime"
	"net/url"
	"path"
	"strings"

	"recipe-importer/internal/pkg/common"
)

const minTextChars = 20

// Classify 判斷輸入類型並驗證。
// text 與 image-file 的驗證問題只會變成 warning；其他類型回傳 ValidationError。
func Classify(input RawInput) (Classification, error) {
	input = derefInput(input)

	var c Classification
	switch in := input.(type) {
	case URLInput:
		c = classifyURL(in)
	case TextInput:
		c = classifyText(in)
	case FileInput:
		c = classifyFile(in)
	default:
		return Classification{}, common.NewValidationError("exactly one of url, text or file is required")
	}
	c.Confidence = clamp01(c.Confidence)
	if c.ValidationWarnings == nil {
		c.ValidationWarnings = []string{}
	}
	if c.Hints == nil {
		c.Hints = []string{}
	}

	if err := validate(input, &c); err != nil {
		return c, err
	}
	return c, nil
}

func classifyURL(in URLInput) Classification {
	raw := strings.TrimSpace(in.URL)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		// 交給 validate 回報錯誤
		return Classification{Kind: KindRecipeURL, Confidence: 0.2}
	}
	if platform, ok := detectVideoPlatform(u); ok {
		return Classification{
			Kind:       KindVideoURL,
			Confidence: 0.95,
			Platform:   platform,
			IsVideoURL: true,
			Hints: []string{
				"video imports are checked against the spoken and on-screen text; if the import is rejected, paste the recipe from the caption instead",
			},
		}
	}
	return Classification{
		Kind:       KindRecipeURL,
		Confidence: 0.9,
		Platform:   strings.TrimPrefix(strings.ToLower(u.Hostname()), "www."),
		Hints: []string{
			"pages with structured recipe markup are imported as published",
		},
	}
}

func classifyText(in TextInput) Classification {
	c := Classification{Kind: KindText, Confidence: 0.6}
	trimmed := strings.TrimSpace(in.Text)
	if trimmed == "" {
		c.Confidence = 0.1
	}
	for _, line := range nonEmptyLines(trimmed) {
		if _, ok := matchHeader(ingredientsHeader, line); ok {
			c.Confidence = 0.9
			break
		}
		if _, ok := matchHeader(stepsHeader, line); ok {
			c.Confidence = 0.9
			break
		}
		if _, ok := ParseIngredientLine(line); ok {
			c.Confidence = 0.8
		}
	}
	if u, err := url.Parse(trimmed); err == nil && (u.Scheme == "http" || u.Scheme == "https") && !strings.ContainsAny(trimmed, " \n") {
		c.Hints = append(c.Hints, "the text looks like a link; submit it as a url to fetch the page")
	}
	return c
}

func classifyFile(in FileInput) Classification {
	mimeType := fileMIME(in)
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return Classification{Kind: KindImageFile, Confidence: 0.95}
	case strings.HasPrefix(mimeType, "video/"):
		return Classification{
			Kind:       KindVideoFile,
			Confidence: 0.95,
			Hints:      []string{"video files are transcribed and scanned for on-screen text; clear narration improves results"},
		}
	}
	// 無法判斷時當作圖片處理（最常見的上傳）
	return Classification{
		Kind:               KindImageFile,
		Confidence:         0.3,
		ValidationWarnings: []string{fmt.Sprintf("could not determine file type for %q; treating it as an image", displayName(in))},
	}
}

// 不依賴系統 mime 表的常見副檔名
var knownExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".heic": "image/heic",
	".heif": "image/heif",
	".bmp":  "image/bmp",
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".3gp":  "video/3gpp",
}

// fileMIME 依序使用宣告的 MIME、data URL 前綴、副檔名
func fileMIME(in FileInput) string {
	if m := strings.ToLower(strings.TrimSpace(in.MIME)); m != "" && m != "application/octet-stream" {
		if mt, _, err := mime.ParseMediaType(m); err == nil {
			return mt
		}
		return m
	}
	if strings.HasPrefix(in.URI, "data:") {
		header, _, _ := strings.Cut(strings.TrimPrefix(in.URI, "data:"), ",")
		mt, _, _ := strings.Cut(header, ";")
		return strings.ToLower(mt)
	}
	for _, name := range []string{in.Name, in.URI} {
		if name == "" {
			continue
		}
		if u, err := url.Parse(name); err == nil && u.Path != "" {
			name = u.Path
		}
		ext := strings.ToLower(path.Ext(name))
		if ext == "" {
			continue
		}
		if mt, ok := knownExtensions[ext]; ok {
			return mt
		}
		if mt := mime.TypeByExtension(ext); mt != "" {
			mt, _, _ = strings.Cut(mt, ";")
			return mt
		}
	}
	return ""
}

func displayName(in FileInput) string {
	if in.Name != "" {
		return in.Name
	}
	if strings.HasPrefix(in.URI, "data:") {
		return "inline data"
	}
	return path.Base(in.URI)
}

func validate(input RawInput, c *Classification) error {
	switch c.Kind {
	case KindRecipeURL, KindVideoURL:
		in, _ := input.(URLInput)
		return validateURL(in.URL)
	case KindVideoFile:
		if strings.TrimSpace(fileURI(input)) == "" {
			return common.NewFieldValidationError("file.uri", "video file location is required")
		}
	case KindImageFile:
		if strings.TrimSpace(fileURI(input)) == "" {
			c.ValidationWarnings = append(c.ValidationWarnings, "image file location is empty")
		}
		if mt := fileMIME(fileInput(input)); mt != "" && !strings.HasPrefix(mt, "image/") {
			c.ValidationWarnings = append(c.ValidationWarnings, fmt.Sprintf("file type %s is not an image", mt))
		}
	case KindText:
		in, _ := input.(TextInput)
		switch n := len([]rune(strings.TrimSpace(in.Text))); {
		case n == 0:
			c.ValidationWarnings = append(c.ValidationWarnings, "text is empty")
		case n < minTextChars:
			c.ValidationWarnings = append(c.ValidationWarnings, "text is very short; the recipe may be incomplete")
		}
	}
	return nil
}

func validateURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return common.NewFieldValidationError("url", "url is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return common.NewFieldValidationError("url", "url cannot be parsed")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return common.NewFieldValidationError("url", "scheme must be http or https")
	}
	if u.Host == "" {
		return common.NewFieldValidationError("url", "host is missing")
	}
	return nil
}

func fileInput(input RawInput) FileInput {
	in, _ := input.(FileInput)
	return in
}

// derefInput 接受指標形式的輸入，nil 指標視為沒有輸入
func derefInput(input RawInput) RawInput {
	switch in := input.(type) {
	case *URLInput:
		if in == nil {
			return nil
		}
		return *in
	case *TextInput:
		if in == nil {
			return nil
		}
		return *in
	case *FileInput:
		if in == nil {
			return nil
		}
		return *in
	}
	return input
}

func fileURI(input RawInput) string {
	return fileInput(input).URI
}
