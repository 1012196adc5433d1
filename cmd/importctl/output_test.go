package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"recipe-importer/internal/core/importer"
	"recipe-importer/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleResult() *importer.Result {
	r := common.NewRecipe()
	r.Name = "Toast"
	r.Ingredients = []common.Ingredient{{Quantity: "2", Unit: "slice", Name: "bread"}}
	r.Steps = []string{"Toast the bread"}
	return &importer.Result{
		Recipe: r,
		Provenance: importer.Provenance{
			ImportID:           "import-1",
			Source:             importer.SourceText,
			Kind:               importer.KindText,
			ExtractionMethod:   "rules",
			Policy:             importer.PolicyConservative,
			Confidence:         0.8,
			ParserNotes:        []string{},
			ValidationWarnings: []string{},
			Hints:              []string{},
		},
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]outputFormat{"": formatJSON, "JSON": formatJSON, "yaml": formatYAML, "yml": formatYAML} {
		got, err := parseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := parseFormat("table")
	assert.Error(t, err)
}

func TestInputFromFlags(t *testing.T) {
	in, err := inputFromFlags("https://example.com/r", "", "", "", nil)
	require.NoError(t, err)
	assert.Equal(t, importer.URLInput{URL: "https://example.com/r"}, in)

	in, err = inputFromFlags("", "-", "", "", strings.NewReader("Soup\n1 cup broth"))
	require.NoError(t, err)
	assert.Equal(t, importer.TextInput{Text: "Soup\n1 cup broth"}, in)

	in, err = inputFromFlags("", "", "dish.jpg", "image/jpeg", nil)
	require.NoError(t, err)
	assert.Equal(t, importer.FileInput{URI: "dish.jpg", MIME: "image/jpeg", Name: "dish.jpg"}, in)

	_, err = inputFromFlags("", "", "", "", nil)
	assert.True(t, common.IsValidationError(err))
	_, err = inputFromFlags("https://example.com", "text", "", "", nil)
	assert.True(t, common.IsValidationError(err))
}

func TestWriteResultYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeResult(&buf, formatYAML, sampleResult()))

	var decoded map[string]interface{}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	recipe := decoded["recipe"].(map[string]interface{})
	assert.Equal(t, "Toast", recipe["name"])
	prov := decoded["provenance"].(map[string]interface{})
	assert.Equal(t, "rules", prov["extractionMethod"])
	assert.Equal(t, "conservative", prov["policy"])
}

func TestWriteResultJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeResult(&buf, formatJSON, sampleResult()))
	assert.Contains(t, buf.String(), `"extractionMethod": "rules"`)
	assert.Contains(t, buf.String(), `"unit": "slice"`)
}

func TestDescribeErrorAddsSuggestions(t *testing.T) {
	base := common.NewExternalServiceError("reader-proxy", "fetch", errors.New("503")).
		WithSuggestions("paste the recipe text directly")
	err := describeError(base)
	assert.Contains(t, err.Error(), "try instead:\n  - paste the recipe text directly")
	assert.True(t, common.IsExternalServiceError(err))

	plain := errors.New("boom")
	assert.Same(t, plain, describeError(plain))
}
