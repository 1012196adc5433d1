package importer

import (
	"fmt"
	"strings"
	"time"

	"recipe-importer/internal/pkg/common"
)

// Kind 輸入類型
type Kind string

const (
	KindRecipeURL Kind = "recipe-url"
	KindVideoURL  Kind = "video-url"
	KindText      Kind = "text"
	KindImageFile Kind = "image-file"
	KindVideoFile Kind = "video-file"
)

// Source 對外回報的來源類別
type Source string

const (
	SourceURL   Source = "url"
	SourceText  Source = "text"
	SourceImage Source = "image"
	SourceVideo Source = "video"
)

// SourceOf 將輸入類型對應到 provenance 來源
func SourceOf(k Kind) Source {
	switch k {
	case KindRecipeURL:
		return SourceURL
	case KindImageFile:
		return SourceImage
	case KindVideoURL, KindVideoFile:
		return SourceVideo
	default:
		return SourceText
	}
}

// Policy 決定 AI 校正可以改動多少規則解析的結果
type Policy string

const (
	PolicyVerbatim     Policy = "verbatim"
	PolicyConservative Policy = "conservative"
	PolicyEnrich       Policy = "enrich"
)

// ParsePolicy 解析 policy 字串，空字串回傳 ""（使用預設）
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", PolicyVerbatim, PolicyConservative, PolicyEnrich:
		return p, nil
	default:
		return "", common.NewFieldValidationError("policy", fmt.Sprintf("unknown policy %q", s))
	}
}

// RawInput 呼叫端提供的原始輸入：URLInput、TextInput 或 FileInput 之一
type RawInput interface {
	isRawInput()
}

// URLInput 網頁或影片連結
type URLInput struct {
	URL string
}

// TextInput 貼上的文字
type TextInput struct {
	Text string
}

// FileInput 本地或遠端檔案（圖片、影片）
type FileInput struct {
	URI  string
	MIME string
	Name string
}

func (URLInput) isRawInput()  {}
func (TextInput) isRawInput() {}
func (FileInput) isRawInput() {}

// Classification 輸入分類結果，每次呼叫計算一次
type Classification struct {
	Kind               Kind     `json:"kind"`
	Confidence         float64  `json:"confidence"`
	Platform           string   `json:"platform,omitempty"`
	IsVideoURL         bool     `json:"isVideoUrl,omitempty"`
	ValidationWarnings []string `json:"validationWarnings"`
	Hints              []string `json:"hints"`
}

// Evidence 合併後的原始文字與各來源片段
type Evidence struct {
	Text       string
	Caption    string
	Transcript string
	OCRText    string
	PageText   string
	// Title、Description 來源提供的 metadata（OG、reader proxy 前言、影片資訊）
	Title       string
	Description string
	Tags        []string
}

// Sizes 各來源的字元數
func (e Evidence) Sizes() *EvidenceSizes {
	return &EvidenceSizes{
		Caption:    len([]rune(e.Caption)),
		Transcript: len([]rune(e.Transcript)),
		OCR:        len([]rune(e.OCRText)),
		Page:       len([]rune(e.PageText)),
		Total:      len([]rune(e.Text)),
	}
}

// EvidenceSizes 證據大小（字元）
type EvidenceSizes struct {
	Caption    int `json:"caption,omitempty" yaml:"caption,omitempty"`
	Transcript int `json:"transcript,omitempty" yaml:"transcript,omitempty"`
	OCR        int `json:"ocr,omitempty" yaml:"ocr,omitempty"`
	Page       int `json:"page,omitempty" yaml:"page,omitempty"`
	Total      int `json:"total" yaml:"total"`
}

// SupportRates 食材與步驟在證據中被佐證的比例
type SupportRates struct {
	Ingredient float64 `json:"ingredientSupport" yaml:"ingredientSupport"`
	Step       float64 `json:"stepSupport" yaml:"stepSupport"`
}

// Provenance 結果的來源與可信度
type Provenance struct {
	ImportID           string         `json:"importId" yaml:"importId"`
	Source             Source         `json:"source" yaml:"source"`
	Kind               Kind           `json:"kind" yaml:"kind"`
	Platform           string         `json:"platform,omitempty" yaml:"platform,omitempty"`
	ExtractionMethod   string         `json:"extractionMethod" yaml:"extractionMethod"`
	Policy             Policy         `json:"policy" yaml:"policy"`
	Confidence         float64        `json:"confidence" yaml:"confidence"`
	ParserNotes        []string       `json:"parserNotes" yaml:"parserNotes"`
	SupportRates       *SupportRates  `json:"supportRates,omitempty" yaml:"supportRates,omitempty"`
	EvidenceSizes      *EvidenceSizes `json:"evidenceSizes,omitempty" yaml:"evidenceSizes,omitempty"`
	ValidationWarnings []string       `json:"validationWarnings" yaml:"validationWarnings"`
	Hints              []string       `json:"hints" yaml:"hints"`
	RequestID          string         `json:"requestId,omitempty" yaml:"requestId,omitempty"`
}

// Result SmartImport 的回傳值
type Result struct {
	Recipe     *common.Recipe `json:"recipe" yaml:"recipe"`
	Provenance Provenance     `json:"provenance" yaml:"provenance"`
}

// AbstainEvent 放棄匯入的診斷紀錄
type AbstainEvent struct {
	At            time.Time      `json:"at"`
	Source        Source         `json:"source"`
	Reason        string         `json:"reason"`
	Code          string         `json:"code"`
	Support       *SupportRates  `json:"support,omitempty"`
	EvidenceSizes *EvidenceSizes `json:"evidenceSizes,omitempty"`
}

// Options 單次匯入的呼叫端選項
type Options struct {
	// Policy 為空時使用各路徑的預設
	Policy    Policy
	Language  string
	RequestID string
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
