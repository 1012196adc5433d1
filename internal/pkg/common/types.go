package common

import (
	"fmt"
	"strings"
)

// Ingredient 食材（數量保留原始字串，可能是 "2/3" 或 "1 1/2"）
type Ingredient struct {
	Name     string `json:"name" yaml:"name"`
	Quantity string `json:"quantity,omitempty" yaml:"quantity,omitempty"`
	Unit     string `json:"unit,omitempty" yaml:"unit,omitempty"`
	Optional bool   `json:"optional" yaml:"optional"`
}

// Recipe 標準化後的食譜
type Recipe struct {
	Name        string       `json:"name" yaml:"name"`
	Description string       `json:"description" yaml:"description"`
	Ingredients []Ingredient `json:"ingredients" yaml:"ingredients"`
	Steps       []string     `json:"steps" yaml:"steps"`
	PrepTime    string       `json:"prepTime,omitempty" yaml:"prepTime,omitempty"`
	CookTime    string       `json:"cookTime,omitempty" yaml:"cookTime,omitempty"`
	Servings    string       `json:"servings,omitempty" yaml:"servings,omitempty"`
	Tags        []string     `json:"tags" yaml:"tags"`
}

// NewRecipe 建立空食譜，切片皆非 nil，確保 JSON 輸出穩定
func NewRecipe() *Recipe {
	return &Recipe{
		Ingredients: []Ingredient{},
		Steps:       []string{},
		Tags:        []string{},
	}
}

// Clone 深拷貝食譜
func (r *Recipe) Clone() *Recipe {
	if r == nil {
		return nil
	}
	out := *r
	out.Ingredients = append([]Ingredient{}, r.Ingredients...)
	out.Steps = append([]string{}, r.Steps...)
	out.Tags = append([]string{}, r.Tags...)
	return &out
}

// EnsureSlices 將 nil 切片補成空切片
func (r *Recipe) EnsureSlices() {
	if r.Ingredients == nil {
		r.Ingredients = []Ingredient{}
	}
	if r.Steps == nil {
		r.Steps = []string{}
	}
	if r.Tags == nil {
		r.Tags = []string{}
	}
}

// IsEmpty 沒有任何食材與步驟
func (r *Recipe) IsEmpty() bool {
	return r == nil || (len(r.Ingredients) == 0 && len(r.Steps) == 0)
}

// String 食材的可讀格式，例如 "1 1/2 cup flour (optional)"
func (i Ingredient) String() string {
	parts := make([]string, 0, 3)
	if i.Quantity != "" {
		parts = append(parts, i.Quantity)
	}
	if i.Unit != "" {
		parts = append(parts, i.Unit)
	}
	parts = append(parts, i.Name)
	s := strings.Join(parts, " ")
	if i.Optional && !strings.Contains(strings.ToLower(s), "(optional)") {
		s += " (optional)"
	}
	return s
}

// FormatIngredients 格式化食材列表
func FormatIngredients(ingredients []Ingredient) string {
	var sb strings.Builder
	for _, ing := range ingredients {
		sb.WriteString(fmt.Sprintf("- %s\n", ing.String()))
	}
	return sb.String()
}

// FormatSteps 格式化步驟列表
func FormatSteps(steps []string) string {
	var sb strings.Builder
	for i, step := range steps {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, step))
	}
	return sb.String()
}
