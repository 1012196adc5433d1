package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"recipe-importer/internal/pkg/common"

	"go.uber.org/zap"
)

const (
	maxReconcileEvidence = 8000
	reconcilePenalty     = 0.1
)

const reconcileSystemPrompt = `You correct machine-parsed recipes. Make MINIMAL corrections only.
Allowed: normalize units (cups->cup, tablespoons->tbsp, teaspoons->tsp, grams->g), fix fractions garbled by transcription ("one half" -> "1/2", "12 cup" that should be "1/2 cup"), split an ingredient line that was merged with its neighbour.
Forbidden: inventing ingredients, removing ingredients, rewriting or reordering instructions, adding steps that are not in the evidence.
Return ONLY a JSON object with the same shape as the input recipe:
{"name": string, "description": string, "ingredients": [{"name": string, "quantity": string, "unit": string, "optional": bool}], "steps": [string], "prepTime": string, "cookTime": string, "servings": string}`

const enrichAddendum = `
You may also fill in description, prepTime, cookTime and servings when they are empty AND the evidence states them.`

// Reconciler 以低溫度 AI 對規則解析的結果做最小修正
type Reconciler struct {
	completer Completer
	metrics   *Metrics
}

// NewReconciler 建立 reconciler
func NewReconciler(completer Completer, metrics *Metrics) *Reconciler {
	return &Reconciler{completer: completer, metrics: metrics}
}

// ReconcileOutcome 校正結果
type ReconcileOutcome struct {
	Recipe  *common.Recipe
	Applied bool
	// Penalty 失敗時要從信心分數扣除的值
	Penalty float64
	Note    string
}

// IsWellFormed 食材都有名稱且至少一個步驟時不需要校正
func IsWellFormed(r *common.Recipe) bool {
	if r == nil || len(r.Ingredients) == 0 || len(r.Steps) == 0 {
		return false
	}
	for _, ing := range r.Ingredients {
		if strings.TrimSpace(ing.Name) == "" {
			return false
		}
	}
	return true
}

// Reconcile 任何失敗都回傳原本的食譜並附上說明，不回傳錯誤
func (rc *Reconciler) Reconcile(ctx context.Context, prelim *common.Recipe, evidence string, policy Policy) ReconcileOutcome {
	keep := ReconcileOutcome{Recipe: prelim}
	if rc == nil || rc.completer == nil || policy == PolicyVerbatim || policy == "" {
		return keep
	}
	if IsWellFormed(prelim) {
		rc.metrics.observeReconcile("skipped")
		return keep
	}

	fail := func(reason string, err error) ReconcileOutcome {
		rc.metrics.observeReconcile("rejected")
		common.LogWarn("AI 校正失敗，保留規則解析結果", zap.String("reason", reason), zap.Error(err))
		return ReconcileOutcome{
			Recipe:  prelim,
			Penalty: reconcilePenalty,
			Note:    "ai reconciliation discarded: " + reason,
		}
	}

	system := reconcileSystemPrompt
	if policy == PolicyEnrich {
		system += enrichAddendum
	}
	prelimJSON, err := json.Marshal(prelim)
	if err != nil {
		return fail("could not encode recipe", err)
	}
	user := fmt.Sprintf("Recipe:\n%s\n\nEvidence:\n%s", prelimJSON, common.Truncate(evidence, maxReconcileEvidence))

	raw, err := rc.completer.CompleteDeterministic(ctx, system, user)
	if err != nil {
		return fail("completion failed", err)
	}
	candidate, err := decodeReconciled(raw)
	if err != nil {
		return fail("response was not a recipe", err)
	}

	merged, dropped, err := applyGuardrails(prelim, candidate, evidence, policy)
	if err != nil {
		return fail(err.Error(), err)
	}

	rc.metrics.observeReconcile("applied")
	common.LogInfo("AI 校正完成", zap.Int("dropped_ingredients", dropped))
	note := "ai reconciliation applied minimal corrections"
	if dropped > 0 {
		note += fmt.Sprintf(" (%d unattested ingredients dropped)", dropped)
	}
	return ReconcileOutcome{Recipe: merged, Applied: true, Note: note}
}

type reconciledIngredient struct {
	Name     string      `json:"name"`
	Quantity interface{} `json:"quantity"`
	Unit     string      `json:"unit"`
	Optional bool        `json:"optional"`
}

type reconciledRecipe struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Ingredients []reconciledIngredient `json:"ingredients"`
	Steps       []interface{}          `json:"steps"`
	PrepTime    interface{}            `json:"prepTime"`
	CookTime    interface{}            `json:"cookTime"`
	Servings    interface{}            `json:"servings"`
}

// decodeReconciled 直接解析、```json 區塊、{...} 範圍，依序嘗試
func decodeReconciled(raw string) (*reconciledRecipe, error) {
	obj, err := common.ExtractJSONObject(raw)
	if err != nil {
		return nil, err
	}
	var out reconciledRecipe
	if err := common.ParseJSON(obj, &out); err != nil {
		return nil, fmt.Errorf("failed to decode reconciled recipe: %w", err)
	}
	return &out, nil
}

var errTooFewIngredients = errors.New("response removed ingredients")

// applyGuardrails 丟棄未在原始解析中出現的食材，拒絕刪減食材或增減步驟的回應。
// 步驟只接受逐條修正：數量與原始解析相同，且每個 token 都出現在原步驟或證據中；
// 原始解析沒有步驟時不採用 AI 的步驟。
func applyGuardrails(prelim *common.Recipe, cand *reconciledRecipe, evidence string, policy Policy) (*common.Recipe, int, error) {
	known := make([]map[string]struct{}, 0, len(prelim.Ingredients))
	for _, ing := range prelim.Ingredients {
		known = append(known, tokenSet(ing.Name))
	}
	attested := func(name string) bool {
		for _, t := range tokenize(name) {
			for _, set := range known {
				if _, ok := set[t]; ok {
					return true
				}
			}
		}
		return false
	}

	out := prelim.Clone()
	out.Ingredients = []common.Ingredient{}
	dropped := 0
	for _, ing := range cand.Ingredients {
		name := strings.TrimSpace(ing.Name)
		if name == "" || !attested(name) {
			dropped++
			continue
		}
		out.Ingredients = append(out.Ingredients, common.Ingredient{
			Name:     name,
			Quantity: ldString(ing.Quantity),
			Unit:     NormalizeUnit(ing.Unit),
			Optional: ing.Optional || optionalMarker.MatchString(name),
		})
	}
	if len(out.Ingredients) < len(prelim.Ingredients) {
		return nil, dropped, errTooFewIngredients
	}

	steps := make([]string, 0, len(cand.Steps))
	for _, st := range cand.Steps {
		if step := strings.TrimSpace(ldString(st)); step != "" {
			steps = append(steps, step)
		}
	}
	switch {
	case len(prelim.Steps) == 0:
		out.Steps = []string{}
	case len(steps) < len(prelim.Steps):
		return nil, dropped, errors.New("response removed steps")
	case len(steps) > len(prelim.Steps):
		return nil, dropped, errors.New("response added steps")
	default:
		vocab := tokenSet(evidence)
		for i, step := range steps {
			if stepAttested(step, prelim.Steps[i], vocab) {
				out.Steps[i] = step
			}
		}
	}

	if policy == PolicyEnrich {
		if out.Description == "" {
			out.Description = strings.TrimSpace(cand.Description)
		}
		if out.PrepTime == "" {
			out.PrepTime = ldString(cand.PrepTime)
		}
		if out.CookTime == "" {
			out.CookTime = ldString(cand.CookTime)
		}
		if out.Servings == "" {
			out.Servings = ldString(cand.Servings)
		}
	}
	return out, dropped, nil
}

// stepAttested 修正後步驟的每個 token 都必須出現在原步驟或證據中
func stepAttested(step, original string, vocab map[string]struct{}) bool {
	orig := tokenSet(original)
	for _, t := range tokenize(step) {
		if _, ok := orig[t]; ok {
			continue
		}
		if _, ok := vocab[t]; !ok {
			return false
		}
	}
	return true
}
