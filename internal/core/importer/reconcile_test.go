package importer

import (
	"context"
	"errors"
	"testing"

	"recipe-importer/internal/pkg/common"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prelimRecipe() *common.Recipe {
	r := common.NewRecipe()
	r.Name = "Garlic Rice"
	r.Ingredients = []common.Ingredient{
		{Quantity: "2", Unit: "cup", Name: "rice"},
		{Quantity: "12", Name: "cup garlic"},
	}
	return r
}

func TestReconcileSkips(t *testing.T) {
	completer := &fakeCompleter{response: "{}"}
	rc := NewReconciler(completer, nil)
	ctx := context.Background()

	out := rc.Reconcile(ctx, prelimRecipe(), "evidence", PolicyVerbatim)
	assert.False(t, out.Applied)

	wellFormed := prelimRecipe()
	wellFormed.Steps = []string{"Cook"}
	out = rc.Reconcile(ctx, wellFormed, "evidence", PolicyConservative)
	assert.False(t, out.Applied)
	assert.Same(t, wellFormed, out.Recipe)
	assert.Zero(t, completer.calls)

	var nilReconciler *Reconciler
	out = nilReconciler.Reconcile(ctx, prelimRecipe(), "evidence", PolicyEnrich)
	assert.False(t, out.Applied)
}

func TestReconcileConservative(t *testing.T) {
	completer := &fakeCompleter{response: `Sure: {"name":"Renamed","description":"new","ingredients":[
{"name":"rice","quantity":"2","unit":"cups"},
{"name":"garlic","quantity":"1/2","unit":"cup"}],
"steps":["Rinse the rice","Fry the garlic"],"servings":"4"}`}
	metrics := NewMetrics(prometheus.NewRegistry())
	rc := NewReconciler(completer, metrics)

	prelim := prelimRecipe()
	out := rc.Reconcile(context.Background(), prelim, "2 cups rice, 12 cup garlic, rinse the rice, fry the garlic", PolicyConservative)
	require.True(t, out.Applied)
	assert.Zero(t, out.Penalty)

	got := out.Recipe
	assert.Equal(t, "Garlic Rice", got.Name)
	assert.Empty(t, got.Description)
	assert.Empty(t, got.Servings)
	assert.Equal(t, common.Ingredient{Quantity: "1/2", Unit: "cup", Name: "garlic"}, got.Ingredients[1])
	// 原始解析沒有步驟，AI 提供的步驟不採用
	assert.Empty(t, got.Steps)
	assert.Equal(t, "cup garlic", prelim.Ingredients[1].Name)
	assert.NotContains(t, completer.system, "fill in description")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.reconciles.WithLabelValues("applied")))
}

func TestReconcileEnrichFillsEmptyFields(t *testing.T) {
	completer := &fakeCompleter{response: `{"name":"Renamed","description":"Fragrant rice","ingredients":[
{"name":"rice","quantity":2,"unit":"cup"},{"name":"garlic","quantity":"1/2","unit":"cup"}],
"steps":["Cook"],"prepTime":"5 min","servings":4}`}
	rc := NewReconciler(completer, nil)

	out := rc.Reconcile(context.Background(), prelimRecipe(), "evidence", PolicyEnrich)
	require.True(t, out.Applied)
	assert.Equal(t, "Garlic Rice", out.Recipe.Name)
	assert.Equal(t, "Fragrant rice", out.Recipe.Description)
	assert.Equal(t, "5 min", out.Recipe.PrepTime)
	assert.Equal(t, "4", out.Recipe.Servings)
	assert.Equal(t, "2", out.Recipe.Ingredients[0].Quantity)
	assert.Contains(t, completer.system, "fill in description")
}

func TestReconcileRejects(t *testing.T) {
	tests := []struct {
		name      string
		completer *fakeCompleter
	}{
		{name: "completion error", completer: &fakeCompleter{err: errors.New("503")}},
		{name: "not json", completer: &fakeCompleter{response: "I can't do that"}},
		{name: "removed ingredient", completer: &fakeCompleter{response: `{"ingredients":[{"name":"rice"}],"steps":["Cook"]}`}},
		{name: "invented ingredient", completer: &fakeCompleter{response: `{"ingredients":[{"name":"rice"},{"name":"saffron"}],"steps":["Cook"]}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := NewMetrics(prometheus.NewRegistry())
			prelim := prelimRecipe()
			out := NewReconciler(tt.completer, metrics).Reconcile(context.Background(), prelim, "evidence", PolicyConservative)

			assert.False(t, out.Applied)
			assert.Same(t, prelim, out.Recipe)
			assert.Equal(t, reconcilePenalty, out.Penalty)
			assert.Contains(t, out.Note, "ai reconciliation discarded")
			assert.Equal(t, 1.0, testutil.ToFloat64(metrics.reconciles.WithLabelValues("rejected")))
		})
	}
}

func TestReconcileIgnoresStepsWhenParseHasNone(t *testing.T) {
	completer := &fakeCompleter{response: `{"ingredients":[{"name":"rice","quantity":"2","unit":"cup"},{"name":"garlic","quantity":"1/2","unit":"cup"}],
"steps":["Knead the dough for ten minutes","Deep fry in lard","Garnish with caviar"]}`}

	prelim := prelimRecipe()
	out := NewReconciler(completer, nil).Reconcile(context.Background(), prelim, "2 cups rice 12 cup garlic", PolicyEnrich)
	require.True(t, out.Applied)
	assert.NotNil(t, out.Recipe.Steps)
	assert.Empty(t, out.Recipe.Steps)
	assert.Equal(t, "1/2", out.Recipe.Ingredients[1].Quantity)
}

// needsReconcile 沒有名稱的食材讓食譜需要校正
func needsReconcile(steps ...string) *common.Recipe {
	r := prelimRecipe()
	r.Ingredients = append(r.Ingredients, common.Ingredient{Quantity: "1", Unit: "tbsp"})
	r.Steps = steps
	return r
}

func TestReconcileRejectsChangedStepCount(t *testing.T) {
	tests := []struct {
		name  string
		steps string
		note  string
	}{
		{name: "fewer", steps: `["Cook"]`, note: "ai reconciliation discarded: response removed steps"},
		{name: "more", steps: `["Rinse","Cook","Deep fry in lard"]`, note: "ai reconciliation discarded: response added steps"},
		{name: "none", steps: `[]`, note: "ai reconciliation discarded: response removed steps"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := &fakeCompleter{response: `{"ingredients":[{"name":"rice"},{"name":"garlic"},{"name":"rice vinegar"}],"steps":` + tt.steps + `}`}
			prelim := needsReconcile("Rinse", "Cook")

			out := NewReconciler(completer, nil).Reconcile(context.Background(), prelim, "evidence", PolicyConservative)
			assert.False(t, out.Applied)
			assert.Same(t, prelim, out.Recipe)
			assert.Equal(t, tt.note, out.Note)
		})
	}
}

func TestReconcileKeepsOriginalStepWhenRewritten(t *testing.T) {
	completer := &fakeCompleter{response: `{"ingredients":[{"name":"rice"},{"name":"garlic"},{"name":"rice vinegar"}],
"steps":["Rinse the rice twice","Cook for 12 minutes then deep fry in lard"]}`}
	prelim := needsReconcile("Rinse the rice", "Cook for 12 mins")
	evidence := "rinse the rice twice. cook for 12 mins"

	out := NewReconciler(completer, nil).Reconcile(context.Background(), prelim, evidence, PolicyConservative)
	require.True(t, out.Applied)
	assert.Equal(t, []string{"Rinse the rice twice", "Cook for 12 mins"}, out.Recipe.Steps)
	assert.Equal(t, []string{"Rinse the rice", "Cook for 12 mins"}, prelim.Steps)
}
