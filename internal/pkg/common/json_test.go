package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "direct", raw: `{"name":"Toast"}`, want: `{"name":"Toast"}`},
		{name: "fenced", raw: "Here you go:\n```json\n{\"name\":\"Toast\"}\n```\nEnjoy", want: `{"name":"Toast"}`},
		{name: "brace span", raw: `Sure! {"name":"Toast","steps":["a"]} hope this helps`, want: `{"name":"Toast","steps":["a"]}`},
		{name: "unquoted keys", raw: `result: {name: "Toast"}`, want: `{"name": "Toast"}`},
		{name: "empty", raw: "   ", wantErr: true},
		{name: "no object", raw: "I cannot help with that", wantErr: true},
		{name: "broken", raw: `{"name": }`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSONObject(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseJSONRejectsTrailingData(t *testing.T) {
	var v map[string]interface{}
	assert.Error(t, ParseJSON(`{"a":1} {"b":2}`, &v))
	require.NoError(t, ParseJSON(`{"a":1}`, &v))
	assert.Contains(t, v, "a")
}

func TestRecipeHelpers(t *testing.T) {
	r := NewRecipe()
	assert.True(t, r.IsEmpty())
	assert.NotNil(t, r.Tags)

	r.Ingredients = append(r.Ingredients, Ingredient{Name: "flour", Quantity: "1 1/2", Unit: "cup"})
	clone := r.Clone()
	clone.Ingredients[0].Name = "sugar"
	assert.Equal(t, "flour", r.Ingredients[0].Name)

	assert.Equal(t, "1 1/2 cup flour", r.Ingredients[0].String())
	assert.Equal(t, "salt (optional)", Ingredient{Name: "salt", Optional: true}.String())

	var bare Recipe
	bare.EnsureSlices()
	assert.NotNil(t, bare.Ingredients)
	assert.NotNil(t, bare.Steps)
}

func TestErrorTaxonomy(t *testing.T) {
	ext := NewExternalServiceError("reader-proxy", "fetch", assert.AnError).
		WithSuggestions("paste the recipe text")
	assert.True(t, IsExternalServiceError(ext))
	assert.ErrorIs(t, ext, assert.AnError)
	assert.Contains(t, ext.Error(), "reader-proxy fetch failed")

	ve := NewFieldValidationError("url", "scheme must be http or https")
	assert.True(t, IsValidationError(ve))
	assert.Equal(t, "invalid url: scheme must be http or https", ve.Error())
}

func TestDedupeStrings(t *testing.T) {
	assert.Equal(t, []string{"Dinner", "quick"}, DedupeStrings([]string{"Dinner", " dinner ", "", "quick"}))
}
