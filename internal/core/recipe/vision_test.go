package recipe

import (
	"context"
	"errors"
	"testing"

	"recipe-importer/internal/core/ai/service"
	"recipe-importer/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVisionClient struct {
	content string
	err     error
	image   string
}

func (f *fakeVisionClient) ProcessRequest(_ context.Context, _ string, imageData string) (*service.Response, error) {
	f.image = imageData
	if f.err != nil {
		return nil, f.err
	}
	return &service.Response{Content: f.content}, nil
}

func TestImportFromImage(t *testing.T) {
	client := &fakeVisionClient{content: "Here is the recipe:\n```json\n" + `{"name":" Lemon Bars ","description":"","ingredients":[
{"name":"flour","quantity":"1 ½","unit":"Cups"},
{"name":"eggs","quantity":3,"unit":""},
{"name":"","quantity":"1","unit":"tsp"}],
"steps":["Bake the crust"," ","Pour the filling"],"servings":12,"tags":["Dessert","dessert"]}` + "\n```"}

	r, err := NewVisionImporter(client).ImportFromImage(context.Background(), "data:image/jpeg;base64,AAAA")
	require.NoError(t, err)
	assert.Equal(t, "data:image/jpeg;base64,AAAA", client.image)

	assert.Equal(t, "Lemon Bars", r.Name)
	assert.Equal(t, []common.Ingredient{
		{Name: "flour", Quantity: "1 1/2", Unit: "cup"},
		{Name: "eggs", Quantity: "3"},
	}, r.Ingredients)
	assert.Equal(t, []string{"Bake the crust", "Pour the filling"}, r.Steps)
	assert.Equal(t, "12", r.Servings)
	assert.Equal(t, []string{"Dessert"}, r.Tags)
}

func TestImportFromImageErrors(t *testing.T) {
	_, err := NewVisionImporter(&fakeVisionClient{err: errors.New("timeout")}).ImportFromImage(context.Background(), "data:image/png;base64,AA")
	assert.EqualError(t, err, "timeout")

	_, err = NewVisionImporter(&fakeVisionClient{content: "I cannot read this image"}).ImportFromImage(context.Background(), "data:image/png;base64,AA")
	require.Error(t, err)
	assert.True(t, common.IsExternalServiceError(err))
}

func TestGetImageType(t *testing.T) {
	assert.Equal(t, "empty", getImageType(""))
	assert.Equal(t, "url", getImageType("https://example.com/a.jpg"))
	assert.Equal(t, "base64_data_uri_png", getImageType("data:image/png;base64,AAAA"))
	assert.Equal(t, "invalid_data_uri", getImageType("data:image/png,AAAA"))
}
