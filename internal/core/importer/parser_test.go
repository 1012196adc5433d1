package importer

import (
	"encoding/json"
	"testing"

	"recipe-importer/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIngredientLine(t *testing.T) {
	tests := []struct {
		line string
		want common.Ingredient
		ok   bool
	}{
		{line: "2/3 cup water (warm)", want: common.Ingredient{Quantity: "2/3", Unit: "cup", Name: "water (warm)"}, ok: true},
		{line: "1 1/2 cups flour", want: common.Ingredient{Quantity: "1 1/2", Unit: "cup", Name: "flour"}, ok: true},
		{line: "- 2 Tablespoons olive oil", want: common.Ingredient{Quantity: "2", Unit: "tbsp", Name: "olive oil"}, ok: true},
		{line: "0.5 kg of potatoes", want: common.Ingredient{Quantity: "0.5", Unit: "kg", Name: "potatoes"}, ok: true},
		{line: "250g butter", want: common.Ingredient{Quantity: "250", Unit: "g", Name: "butter"}, ok: true},
		{line: "1 tsp. chili flakes (optional)", want: common.Ingredient{Quantity: "1", Unit: "tsp", Name: "chili flakes (optional)", Optional: true}, ok: true},
		{line: "3 eggs", ok: false},
		{line: "salt to taste", ok: false},
		{line: "2 gallons milk", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := ParseIngredientLine(tt.line)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestNormalizeUnitIdempotent(t *testing.T) {
	for unit := range unitTable {
		once := NormalizeUnit(unit)
		assert.Equal(t, once, NormalizeUnit(once), unit)
	}
	assert.Equal(t, "cup", NormalizeUnit("Cups"))
	assert.Equal(t, "tbsp", NormalizeUnit("tbsp."))
	assert.Equal(t, "handful", NormalizeUnit("Handful"))
}

func TestParseRecipeSections(t *testing.T) {
	r := ParseRecipe("Ketchup Toast\nIngredients:\n2 cups flour\nSteps:\n1. Preheat oven to 350F")

	assert.Equal(t, "Ketchup Toast", r.Name)
	require.Len(t, r.Ingredients, 1)
	assert.Equal(t, common.Ingredient{Quantity: "2", Unit: "cup", Name: "flour"}, r.Ingredients[0])
	assert.Equal(t, []string{"Preheat oven to 350F"}, r.Steps)
}

func TestParseRecipeFull(t *testing.T) {
	text := `# Garlic Butter Pasta
A quick weeknight dinner.
Prep time: 10 min
Cook time: 15 min
Serves 4
What you'll need:
- 200 g spaghetti
- 3 cloves garlic
- 2 tbsp butter
- salt
Instructions
1. Boil the pasta in salted water.
2. Melt the butter and fry the garlic.
3. Toss everything together.`

	r, fallback := parseRecipe(text)
	assert.False(t, fallback)
	assert.Equal(t, "Garlic Butter Pasta", r.Name)
	assert.Equal(t, "A quick weeknight dinner.", r.Description)
	assert.Equal(t, "10 min", r.PrepTime)
	assert.Equal(t, "15 min", r.CookTime)
	assert.Equal(t, "4", r.Servings)
	require.Len(t, r.Ingredients, 4)
	assert.Equal(t, common.Ingredient{Quantity: "3", Unit: "clove", Name: "garlic"}, r.Ingredients[1])
	assert.Equal(t, common.Ingredient{Name: "salt"}, r.Ingredients[3])
	assert.Equal(t, []string{
		"Boil the pasta in salted water.",
		"Melt the butter and fry the garlic.",
		"Toss everything together.",
	}, r.Steps)
}

func TestParseRecipeDescriptionIsFirstLineOnly(t *testing.T) {
	text := "Tomato Soup\nSilky and bright.\nMy grandmother made this every winter.\nIngredients\n4 tomatoes\nSteps\n1. Simmer the tomatoes"
	r := ParseRecipe(text)
	assert.Equal(t, "Tomato Soup", r.Name)
	assert.Equal(t, "Silky and bright.", r.Description)
}

func TestParseRecipeSectionsAreMonotonic(t *testing.T) {
	text := "Soup\nSteps:\n1. Chop the onion finely\nIngredients: onion\n2. Simmer for twenty minutes"
	r := ParseRecipe(text)

	// 進入步驟段落後不會回到食材段落
	assert.Empty(t, r.Ingredients)
	assert.Equal(t, []string{"Chop the onion finely", "onion", "Simmer for twenty minutes"}, r.Steps)
}

func TestParseRecipeEarlyTransitionWithoutHeaders(t *testing.T) {
	r := ParseRecipe("Quick Oats\n1 cup oats\n2 cups milk\n1. Warm the milk\n2. Stir in the oats")

	assert.Equal(t, "Quick Oats", r.Name)
	require.Len(t, r.Ingredients, 2)
	assert.Equal(t, []string{"Warm the milk", "Stir in the oats"}, r.Steps)
}

func TestParseRecipeUnstructuredFallback(t *testing.T) {
	text := "so today we are making my grandma's bread\nyou want to knead the dough for about ten minutes\n3 eggs\nthen let it rest"
	r, fallback := parseRecipe(text)

	assert.True(t, fallback)
	assert.Equal(t, "so today we are making my grandma's bread", r.Name)
	assert.Equal(t, []common.Ingredient{{Quantity: "3", Name: "eggs"}}, r.Ingredients)
	assert.Equal(t, []string{"you want to knead the dough for about ten minutes"}, r.Steps)
}

func TestParseRecipeEmpty(t *testing.T) {
	r, fallback := parseRecipe("")
	assert.True(t, fallback)
	assert.Equal(t, defaultRecipeName, r.Name)
	assert.NotNil(t, r.Ingredients)
	assert.NotNil(t, r.Steps)
}

func TestParseRecipeDeterministic(t *testing.T) {
	text := Normalize("Pancakes 🥞\nIngredients\n1½ cups flour\n1 cup milk\n1 egg\nMethod\n1. Whisk everything\n2. Fry in a hot pan #brunch")

	first, err := json.Marshal(ParseRecipe(text))
	require.NoError(t, err)
	second, err := json.Marshal(ParseRecipe(text))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}
