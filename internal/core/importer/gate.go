package importer

import (
	"context"
	"fmt"
	"time"

	"recipe-importer/internal/pkg/common"

	"go.uber.org/zap"
)

// AbstainPrefix abstain 錯誤代碼的固定前綴
const AbstainPrefix = "ImportAbstain"

// abstain 原因
const (
	ReasonNoIngredients = "no_ingredients"
	ReasonNoSteps       = "no_steps"
	ReasonLowSupport    = "low_support"
)

// AbstainError 證據不足時刻意拒絕匯入。代表管線正常運作，只是不能信任結果。
type AbstainError struct {
	Source      Source
	Reason      string
	Support     *SupportRates
	Suggestions []string
}

// Code 穩定的錯誤代碼，例如 ImportAbstain:video:low_support:ing=0.25;step=0.50
func (e *AbstainError) Code() string {
	code := fmt.Sprintf("%s:%s:%s", AbstainPrefix, e.Source, e.Reason)
	if e.Support != nil {
		code += fmt.Sprintf(":ing=%.2f;step=%.2f", e.Support.Ingredient, e.Support.Step)
	}
	return code
}

func (e *AbstainError) Error() string {
	return e.Code()
}

// Gate 依支持度門檻決定接受或放棄
type Gate struct {
	MinIngredientSupport float64
	MinStepSupport       float64
	Recorder             AbstainRecorder
	Metrics              *Metrics
	now                  func() time.Time
}

// Decision 接受時的結果
type Decision struct {
	Notes []string
}

// Evaluate 檢查食譜與支持度；不足時記錄事件並回傳 *AbstainError
func (g *Gate) Evaluate(ctx context.Context, source Source, recipe *common.Recipe, rates SupportRates, sizes *EvidenceSizes) (Decision, error) {
	var reason string
	var support *SupportRates
	switch {
	case recipe == nil || len(recipe.Ingredients) == 0:
		reason = ReasonNoIngredients
	case len(recipe.Steps) == 0:
		reason = ReasonNoSteps
	case rates.Ingredient < g.MinIngredientSupport || rates.Step < g.MinStepSupport:
		reason = ReasonLowSupport
		r := rates
		support = &r
	}

	if reason == "" {
		var d Decision
		if rates.Ingredient < 1 || rates.Step < 1 {
			d.Notes = append(d.Notes, fmt.Sprintf("some items are only partially attested by the evidence (ingredients %.0f%%, steps %.0f%%)", rates.Ingredient*100, rates.Step*100))
		}
		return d, nil
	}

	abstain := &AbstainError{
		Source:      source,
		Reason:      reason,
		Support:     support,
		Suggestions: abstainSuggestions(source),
	}
	g.record(ctx, abstain, rates, sizes)
	return Decision{}, abstain
}

func (g *Gate) record(ctx context.Context, abstain *AbstainError, rates SupportRates, sizes *EvidenceSizes) {
	now := time.Now
	if g.now != nil {
		now = g.now
	}
	r := rates
	event := AbstainEvent{
		At:            now().UTC(),
		Source:        abstain.Source,
		Reason:        abstain.Reason,
		Code:          abstain.Code(),
		Support:       &r,
		EvidenceSizes: sizes,
	}
	if g.Recorder != nil {
		g.Recorder.Record(ctx, event)
	}
	g.Metrics.observeAbstain(abstain.Source, abstain.Reason)

	common.LogWarn("匯入放棄",
		zap.String("code", event.Code),
		zap.Float64("ingredient_support", rates.Ingredient),
		zap.Float64("step_support", rates.Step),
	)
}

func abstainSuggestions(source Source) []string {
	switch source {
	case SourceVideo:
		return []string{
			"paste the recipe text from the video caption or description",
			"take a screenshot of the ingredient list and import it as an image",
			"try a different video that shows or reads out the full recipe",
		}
	default:
		return []string{"paste the recipe text directly"}
	}
}
