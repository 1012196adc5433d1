package importer

import (
	"regexp"
	"strings"

	"recipe-importer/internal/pkg/common"
)

const (
	defaultRecipeName   = "Imported Recipe"
	maxHeaderWords      = 6
	maxLooseIngredWords = 8
	minSentenceWords    = 5
	maxNameRunes        = 120
)

type section int

const (
	sectionTitle section = iota
	sectionIngredients
	sectionSteps
)

const quantityPattern = `(\d+\s+\d+/\d+|\d+/\d+|\d+(?:\.\d+)?)`

var (
	ingredientsHeader = regexp.MustCompile(`(?i)^[#*=\-–\s]*(?:ingredients?|what you(?:(?:'|’)ll| will)? need|you(?:(?:'|’)ll| will) need|shopping list)\b`)
	stepsHeader       = regexp.MustCompile(`(?i)^[#*=\-–\s]*(?:steps?|instructions?|directions?|method|preparation|how to make)\b`)

	ingredientLine = regexp.MustCompile(`(?i)^(?:[-*•]\s*)?` + quantityPattern + `\s*(` + unitAlternation() + `)\.?\s+(.+)$`)
	looseQuantity  = regexp.MustCompile(`^(?:[-*•]\s*)?` + quantityPattern + `\s+(\D.*)$`)
	numberedStep   = regexp.MustCompile(`(?i)^(?:step\s*\d+\s*[:.)\-–]?\s*|\d+\s*[.)]\s+)(.+)$`)
	bulletPrefix   = regexp.MustCompile(`^[-*•]\s+`)
	optionalMarker = regexp.MustCompile(`(?i)\(optional\)`)
	leadingOf      = regexp.MustCompile(`(?i)^of\s+`)
	titlePrefix    = regexp.MustCompile(`(?i)^(?:#+\s*|title\s*:\s*|recipe\s*:\s*)`)

	prepTimePattern = regexp.MustCompile(`(?i)\bprep(?:aration)?(?:\s+time\s*[:\-–]?|\s*[:\-–])\s*(\d[^,;|]*)`)
	cookTimePattern = regexp.MustCompile(`(?i)\b(?:cook(?:ing)?|bak(?:e|ing))(?:\s+time\s*[:\-–]?|\s*[:\-–])\s*(\d[^,;|]*)`)
	servingsPattern = regexp.MustCompile(`(?i)\b(?:serves|servings?|yields?|makes)\s*[:\-–]?\s*(\d+(?:\s*(?:-|–|to)\s*\d+)?)`)
	timingLead      = regexp.MustCompile(`(?i)^(?:[-*•]\s*)?(?:prep(?:aration)?|cook(?:ing)?|bak(?:e|ing)|total|serves|servings?|yields?|makes)\b`)
)

// ParseRecipe 以規則將正規化後的證據文字轉成食譜。純函式，相同輸入必得相同輸出。
func ParseRecipe(text string) *common.Recipe {
	r, _ := parseRecipe(text)
	return r
}

// parseRecipe 同 ParseRecipe，另外回報是否使用了非結構化 fallback
func parseRecipe(text string) (*common.Recipe, bool) {
	lines := nonEmptyLines(text)
	r := common.NewRecipe()
	state := sectionTitle

	for _, line := range lines {
		extractTiming(line, r)
		if isTimingLine(line) {
			continue
		}

		if rest, ok := matchHeader(ingredientsHeader, line); ok {
			// 狀態只能前進
			if state == sectionTitle {
				state = sectionIngredients
			}
			if rest == "" {
				continue
			}
			line = rest
		} else if rest, ok := matchHeader(stepsHeader, line); ok {
			state = sectionSteps
			if rest == "" {
				continue
			}
			line = rest
		}

		switch state {
		case sectionTitle:
			if ing, ok := ParseIngredientLine(line); ok {
				state = sectionIngredients
				r.Ingredients = append(r.Ingredients, ing)
				continue
			}
			if step, ok := parseNumberedStep(line); ok {
				state = sectionSteps
				r.Steps = append(r.Steps, step)
				continue
			}
			if r.Name == "" {
				r.Name = cleanName(line)
				continue
			}
			// 只取名稱後的第一行
			if r.Description == "" {
				r.Description = line
			}

		case sectionIngredients:
			if step, ok := parseNumberedStep(line); ok {
				// 編號的食材清單，例如 "1. 2 cups flour"
				if ing, ok := quantifiedIngredient(step); ok {
					r.Ingredients = append(r.Ingredients, ing)
					continue
				}
				state = sectionSteps
				r.Steps = append(r.Steps, step)
				continue
			}
			if ing, ok := parseIngredientBody(line); ok {
				r.Ingredients = append(r.Ingredients, ing)
			}

		case sectionSteps:
			if step := stripStepPrefix(line); step != "" {
				r.Steps = append(r.Steps, step)
			}
		}
	}

	if len(r.Ingredients) == 0 && len(r.Steps) == 0 {
		return parseUnstructured(lines), true
	}
	if r.Name == "" {
		r.Name = defaultRecipeName
	}
	return r, false
}

// parseUnstructured 沒有任何段落線索時逐行猜測
func parseUnstructured(lines []string) *common.Recipe {
	r := common.NewRecipe()
	r.Name = defaultRecipeName
	if len(lines) == 0 {
		return r
	}
	if name := cleanName(lines[0]); name != "" {
		r.Name = name
	}

	for _, line := range lines[1:] {
		extractTiming(line, r)
		if isTimingLine(line) {
			continue
		}
		if ing, ok := quantifiedIngredient(line); ok {
			r.Ingredients = append(r.Ingredients, ing)
			continue
		}
		if step, ok := parseNumberedStep(line); ok {
			r.Steps = append(r.Steps, step)
			continue
		}
		if len(strings.Fields(line)) >= minSentenceWords {
			r.Steps = append(r.Steps, stripStepPrefix(line))
		}
	}
	return r
}

// ParseIngredientLine 解析「數量 單位 名稱」格式的食材行
func ParseIngredientLine(line string) (common.Ingredient, bool) {
	m := ingredientLine.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return common.Ingredient{}, false
	}
	return newIngredient(m[1], NormalizeUnit(m[2]), m[3]), true
}

// quantifiedIngredient 有數量的食材行；沒有單位時限制字數，避免把句子當成食材
func quantifiedIngredient(line string) (common.Ingredient, bool) {
	if ing, ok := ParseIngredientLine(line); ok {
		return ing, true
	}
	if m := looseQuantity.FindStringSubmatch(line); m != nil && len(strings.Fields(line)) <= maxLooseIngredWords {
		return newIngredient(m[1], "", m[2]), true
	}
	return common.Ingredient{}, false
}

// parseIngredientBody 食材段落內較寬鬆的解析：允許沒有單位或沒有數量
func parseIngredientBody(line string) (common.Ingredient, bool) {
	if ing, ok := ParseIngredientLine(line); ok {
		return ing, true
	}
	if m := looseQuantity.FindStringSubmatch(line); m != nil {
		return newIngredient(m[1], "", m[2]), true
	}
	name := strings.TrimSpace(bulletPrefix.ReplaceAllString(line, ""))
	if name == "" {
		return common.Ingredient{}, false
	}
	return newIngredient("", "", name), true
}

func newIngredient(quantity, unit, name string) common.Ingredient {
	name = strings.TrimSpace(leadingOf.ReplaceAllString(strings.TrimSpace(name), ""))
	return common.Ingredient{
		Name:     name,
		Quantity: quantity,
		Unit:     unit,
		Optional: optionalMarker.MatchString(name),
	}
}

func parseNumberedStep(line string) (string, bool) {
	m := numberedStep.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	step := strings.TrimSpace(m[1])
	return step, step != ""
}

func stripStepPrefix(line string) string {
	if step, ok := parseNumberedStep(line); ok {
		return step
	}
	return strings.TrimSpace(bulletPrefix.ReplaceAllString(line, ""))
}

// matchHeader 判斷是否為段落標題，回傳冒號後的剩餘內容
func matchHeader(re *regexp.Regexp, line string) (string, bool) {
	if !re.MatchString(line) || isTimingLine(line) || numberedStep.MatchString(line) {
		return "", false
	}
	head, rest, found := strings.Cut(line, ":")
	if !found {
		head, rest = line, ""
	}
	if len(strings.Fields(head)) > maxHeaderWords {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

func isTimingLine(line string) bool {
	if !timingLead.MatchString(line) {
		return false
	}
	return prepTimePattern.MatchString(line) || cookTimePattern.MatchString(line) || servingsPattern.MatchString(line)
}

// extractTiming 每行都檢查，第一個匹配者勝出
func extractTiming(line string, r *common.Recipe) {
	if r.PrepTime == "" {
		if m := prepTimePattern.FindStringSubmatch(line); m != nil {
			r.PrepTime = strings.TrimSpace(m[1])
		}
	}
	if r.CookTime == "" {
		if m := cookTimePattern.FindStringSubmatch(line); m != nil {
			r.CookTime = strings.TrimSpace(m[1])
		}
	}
	if r.Servings == "" {
		if m := servingsPattern.FindStringSubmatch(line); m != nil {
			r.Servings = strings.TrimSpace(m[1])
		}
	}
}

func cleanName(line string) string {
	name := strings.TrimSpace(titlePrefix.ReplaceAllString(line, ""))
	name = strings.TrimRight(name, ":")
	return common.Truncate(strings.TrimSpace(name), maxNameRunes)
}

func nonEmptyLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
