package importer

import (
	"testing"

	"recipe-importer/internal/pkg/common"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"1/2", "cup", "flour", "sifted"}, tokenize("1/2 Cup FLOUR, (sifted)"))
	assert.Equal(t, []string{"350f", "oven"}, tokenize("at 350F... in an oven"))
	assert.Equal(t, []string{"crème", "brûlée"}, tokenize("Crème Brûlée!"))
	assert.Empty(t, tokenize("a an of to"))
}

func TestComputeSupportRates(t *testing.T) {
	recipe := &common.Recipe{
		Ingredients: []common.Ingredient{{Name: "flour"}, {Name: "brown sugar"}},
		Steps:       []string{"Mix the flour", "Bake until golden"},
	}

	none := ComputeSupportRates("we talk about weather today", recipe)
	assert.Equal(t, 0.0, none.Ingredient)
	assert.Equal(t, 0.0, none.Step)

	all := ComputeSupportRates("flour brown sugar mix the flour bake until golden", recipe)
	assert.Equal(t, 1.0, all.Ingredient)
	assert.Equal(t, 1.0, all.Step)

	// 任一 token 命中就算佐證
	partial := ComputeSupportRates("add some sugar and mix", recipe)
	assert.Equal(t, 0.5, partial.Ingredient)
	assert.Equal(t, 0.5, partial.Step)
}

func TestComputeSupportRatesEmptyRecipe(t *testing.T) {
	rates := ComputeSupportRates("flour sugar", common.NewRecipe())
	assert.Equal(t, SupportRates{}, rates)
	assert.Equal(t, SupportRates{}, ComputeSupportRates("flour", nil))
}
