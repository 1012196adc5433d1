package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"recipe-importer/internal/pkg/common"

	"go.uber.org/zap"
)

// Dependencies 外部協作者；未設定的服務會讓對應策略失敗並改用下一個
type Dependencies struct {
	Fetcher        HTMLFetcher
	Reader         ReaderProxy
	Resolver       URLResolver
	Transcriber    Transcriber
	VideoExtractor VideoExtractor
	Images         ImageLoader
	Vision         ImageImporter
	Completer      Completer
	Recorder       AbstainRecorder
	Metrics        *Metrics
}

// Settings 匯入管線的可調參數
type Settings struct {
	MinIngredientSupport float64
	MinStepSupport       float64
	DefaultPolicy        Policy
	EnableReconcile      bool
	Language             string
	MinPageTextChars     int
	MinTranscriptChars   int
	MinVideoTextChars    int
	FrameIntervalSeconds int
}

// DefaultSettings 預設參數
func DefaultSettings() Settings {
	return Settings{
		MinIngredientSupport: 0.5,
		MinStepSupport:       0.5,
		DefaultPolicy:        PolicyConservative,
		EnableReconcile:      true,
		Language:             "en",
		MinPageTextChars:     50,
		MinTranscriptChars:   10,
		MinVideoTextChars:    20,
		FrameIntervalSeconds: 2,
	}
}

// 各取得方式的基礎信心分數
var methodConfidence = map[string]float64{
	"json-ld":       0.95,
	"scrape":        0.75,
	"rules":         0.8,
	"reader-proxy":  0.6,
	"transcript":    0.5,
	"video-extract": 0.65,
	"vision":        0.7,
}

const fallbackPenalty = 0.7

// Service 智慧匯入服務
type Service struct {
	deps       Dependencies
	settings   Settings
	gate       *Gate
	reconciler *Reconciler
	newID      func() string
}

// NewService 建立匯入服務
func NewService(deps Dependencies, settings Settings) *Service {
	if deps.Recorder == nil {
		deps.Recorder = NewRingBuffer(DefaultAbstainCapacity)
	}
	if settings.DefaultPolicy == "" {
		settings.DefaultPolicy = PolicyConservative
	}
	if settings.Language == "" {
		settings.Language = "en"
	}
	return &Service{
		deps:     deps,
		settings: settings,
		gate: &Gate{
			MinIngredientSupport: settings.MinIngredientSupport,
			MinStepSupport:       settings.MinStepSupport,
			Recorder:             deps.Recorder,
			Metrics:              deps.Metrics,
		},
		reconciler: NewReconciler(deps.Completer, deps.Metrics),
		newID:      common.GenerateUUID,
	}
}

// RecentAbstains 最近的放棄事件，由舊到新
func (s *Service) RecentAbstains(ctx context.Context) []AbstainEvent {
	return s.deps.Recorder.Recent(ctx)
}

// SmartImport 分類輸入、取得證據、解析並回傳食譜與 provenance。
// 影片證據不足時回傳 *AbstainError；文字輸入永遠不會失敗。
func (s *Service) SmartImport(ctx context.Context, input RawInput, opts Options) (*Result, error) {
	start := time.Now()
	input = derefInput(input)

	cls, err := Classify(input)
	if err != nil {
		s.deps.Metrics.observeImport(SourceOf(cls.Kind), "", "invalid", time.Since(start))
		return nil, err
	}
	source := SourceOf(cls.Kind)

	prov := Provenance{
		ImportID:           s.newID(),
		Source:             source,
		Kind:               cls.Kind,
		Platform:           cls.Platform,
		ParserNotes:        []string{},
		ValidationWarnings: append([]string{}, cls.ValidationWarnings...),
		Hints:              append([]string{}, cls.Hints...),
		RequestID:          opts.RequestID,
	}

	acq, err := s.acquire(ctx, cls, input, opts)
	if err != nil {
		s.deps.Metrics.observeImport(source, "", "failed", time.Since(start))
		common.LogWarn("匯入失敗",
			zap.String("import_id", prov.ImportID),
			zap.String("kind", string(cls.Kind)),
			zap.Error(err),
		)
		return nil, err
	}
	prov.ExtractionMethod = acq.method
	prov.ParserNotes = append(prov.ParserNotes, acq.notes...)

	var (
		recipe     *common.Recipe
		confidence float64
		evidence   = acq.evidence.Text
	)
	switch {
	case acq.recipe != nil:
		// 影像：視覺模型直接回傳結構化食譜
		recipe = acq.recipe
		prov.Policy = PolicyConservative
		confidence = methodConfidence["vision"]

	case acq.structured != nil:
		recipe = acq.structured
		prov.Policy = PolicyVerbatim
		if opts.Policy == PolicyEnrich {
			prov.Policy = PolicyEnrich
		}
		confidence = methodConfidence["json-ld"]
		prov.ParserNotes = append(prov.ParserNotes, "recipe read from structured data on the page")

	default:
		prov.Policy = s.policyFor(opts)
		var abstain error
		recipe, confidence, abstain = s.parseEvidence(ctx, source, acq, &prov)
		if abstain != nil {
			s.deps.Metrics.observeImport(source, acq.method, "abstain", time.Since(start))
			return nil, abstain
		}
	}

	if s.settings.EnableReconcile && acq.recipe == nil && prov.Policy != PolicyVerbatim {
		out := s.reconciler.Reconcile(ctx, recipe, evidence, prov.Policy)
		recipe = out.Recipe
		confidence -= out.Penalty
		if out.Note != "" {
			prov.ParserNotes = append(prov.ParserNotes, out.Note)
		}
	}

	recipe.EnsureSlices()
	recipe.Tags = common.DedupeStrings(recipe.Tags)
	prov.Confidence = clamp01(confidence)

	s.deps.Metrics.observeImport(source, acq.method, "success", time.Since(start))
	common.LogInfo("匯入完成",
		zap.String("import_id", prov.ImportID),
		zap.String("source", string(source)),
		zap.String("method", prov.ExtractionMethod),
		zap.Float64("confidence", prov.Confidence),
		zap.Int("ingredients", len(recipe.Ingredients)),
		zap.Int("steps", len(recipe.Steps)),
		zap.Duration("duration", time.Since(start)),
	)
	return &Result{Recipe: recipe, Provenance: prov}, nil
}

func (s *Service) policyFor(opts Options) Policy {
	if opts.Policy != "" {
		return opts.Policy
	}
	return s.settings.DefaultPolicy
}

// parseEvidence 規則解析證據文字並計算支持度；影片來源經過 gate
func (s *Service) parseEvidence(ctx context.Context, source Source, acq *acquisition, prov *Provenance) (*common.Recipe, float64, error) {
	ev := acq.evidence
	normalized := Normalize(ev.Text)
	recipe, fallback := parseRecipe(normalized)

	if recipe.Name == defaultRecipeName && ev.Title != "" {
		recipe.Name = common.Truncate(ev.Title, maxNameRunes)
	}
	if recipe.Description == "" {
		recipe.Description = ev.Description
	}
	recipe.Tags = common.DedupeStrings(append(recipe.Tags, ev.Tags...))

	rates := ComputeSupportRates(normalized, recipe)
	prov.SupportRates = &rates
	prov.EvidenceSizes = ev.Sizes()

	base, ok := methodConfidence[acq.method]
	if !ok {
		base = 0.5
	}
	confidence := base * (0.5 + 0.5*(rates.Ingredient+rates.Step)/2)
	if fallback {
		confidence *= fallbackPenalty
		prov.ParserNotes = append(prov.ParserNotes, "no section headers found; ingredients and steps were inferred line by line")
	}

	if source == SourceVideo {
		decision, err := s.gate.Evaluate(ctx, source, recipe, rates, prov.EvidenceSizes)
		if err != nil {
			return nil, 0, err
		}
		prov.ParserNotes = append(prov.ParserNotes, decision.Notes...)
		return recipe, confidence, nil
	}

	if recipe.IsEmpty() {
		prov.ParserNotes = append(prov.ParserNotes, "no ingredients or steps were recognized; review the imported text")
	} else {
		if len(recipe.Ingredients) == 0 {
			prov.ParserNotes = append(prov.ParserNotes, "no ingredients were recognized")
		}
		if len(recipe.Steps) == 0 {
			prov.ParserNotes = append(prov.ParserNotes, "no steps were recognized")
		}
	}
	return recipe, confidence, nil
}

// IsAbstain 判斷錯誤是否為放棄匯入
func IsAbstain(err error) (*AbstainError, bool) {
	var abstain *AbstainError
	if errors.As(err, &abstain) {
		return abstain, true
	}
	return nil, false
}

// Describe 簡短描述結果，供 CLI 與日誌使用
func (r *Result) Describe() string {
	if r == nil || r.Recipe == nil {
		return ""
	}
	return fmt.Sprintf("%s (%d ingredients, %d steps, %s via %s, confidence %.2f)",
		r.Recipe.Name, len(r.Recipe.Ingredients), len(r.Recipe.Steps),
		r.Provenance.Source, r.Provenance.ExtractionMethod, r.Provenance.Confidence)
}
