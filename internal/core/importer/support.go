package importer

import (
	"strings"
	"unicode"

	"recipe-importer/internal/pkg/common"
)

const minTokenRunes = 3

// tokenize 小寫化，只保留字母、數字、"/"、"." 與空白，丟掉長度 <= 2 的 token
func tokenize(s string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '/' || r == '.' {
			return unicode.ToLower(r)
		}
		if unicode.IsSpace(r) {
			return ' '
		}
		return -1
	}, s)

	fields := strings.Fields(cleaned)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".")
		if len([]rune(f)) < minTokenRunes {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

func tokenSet(s string) map[string]struct{} {
	tokens := tokenize(s)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// ComputeSupportRates 計算食材與步驟在證據中被佐證的比例。
// 任一 token 出現在證據中即視為佐證。
func ComputeSupportRates(evidence string, recipe *common.Recipe) SupportRates {
	if recipe == nil {
		return SupportRates{}
	}
	vocab := tokenSet(evidence)

	supported := func(text string) bool {
		for _, t := range tokenize(text) {
			if _, ok := vocab[t]; ok {
				return true
			}
		}
		return false
	}

	var rates SupportRates
	if n := len(recipe.Ingredients); n > 0 {
		hits := 0
		for _, ing := range recipe.Ingredients {
			if supported(ing.Name) {
				hits++
			}
		}
		rates.Ingredient = clamp01(float64(hits) / float64(n))
	}
	if n := len(recipe.Steps); n > 0 {
		hits := 0
		for _, step := range recipe.Steps {
			if supported(step) {
				hits++
			}
		}
		rates.Step = clamp01(float64(hits) / float64(n))
	}
	return rates
}
