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

func TestFirstSuccess(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	var order []string
	step := func(name string, acq *acquisition, err error) strategy {
		return strategy{name: name, run: func(context.Context) (*acquisition, error) {
			order = append(order, name)
			return acq, err
		}}
	}

	acq, notes, err := firstSuccess(context.Background(), metrics, []strategy{
		step("first", nil, errors.New("boom")),
		step("second", nil, nil),
		step("third", &acquisition{method: "ok"}, nil),
		step("fourth", &acquisition{method: "never"}, nil),
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", acq.method)
	assert.Equal(t, []string{"first", "second", "third"}, order)
	require.Len(t, notes, 2)
	assert.Equal(t, "first failed: boom", notes[0])
	assert.Contains(t, notes[1], ErrInsufficientEvidence.Error())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.strategyFailure.WithLabelValues("first")))
}

func TestFirstSuccessAllFail(t *testing.T) {
	last := errors.New("last")
	_, notes, err := firstSuccess(context.Background(), nil, []strategy{
		{name: "a", run: func(context.Context) (*acquisition, error) { return nil, errors.New("first") }},
		{name: "b", run: func(context.Context) (*acquisition, error) { return nil, last }},
	})
	assert.ErrorIs(t, err, last)
	assert.Len(t, notes, 2)

	_, _, err = firstSuccess(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestFirstSuccessStopsOnCancel(t *testing.T) {
	calls := 0
	_, _, err := firstSuccess(context.Background(), nil, []strategy{
		{name: "a", run: func(context.Context) (*acquisition, error) { calls++; return nil, context.DeadlineExceeded }},
		{name: "b", run: func(context.Context) (*acquisition, error) { calls++; return &acquisition{}, nil }},
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls)
}

func TestRequireText(t *testing.T) {
	assert.NoError(t, requireText("x", "enough text", 5))
	err := requireText("x", "  ab  ", 5)
	assert.ErrorIs(t, err, ErrInsufficientEvidence)
}

func TestChainFailure(t *testing.T) {
	err := chainFailure("recipe-url", errors.New("timeout"), []string{"a", "b"}, "paste the text")
	var ext *common.ExternalServiceError
	require.True(t, errors.As(err, &ext))
	assert.Equal(t, "recipe-url", ext.Service)
	assert.Equal(t, []string{"paste the text"}, ext.Suggestions)

	inner := common.NewExternalServiceError("reader-proxy", "fetch", errors.New("502")).WithSuggestions("retry later")
	err = chainFailure("recipe-url", inner, nil, "paste the text")
	require.True(t, errors.As(err, &ext))
	assert.Equal(t, "reader-proxy", ext.Service)
	assert.Equal(t, []string{"retry later", "paste the text"}, ext.Suggestions)
	assert.Equal(t, []string{"retry later"}, inner.Suggestions)

	assert.ErrorIs(t, chainFailure("x", context.Canceled, nil), context.Canceled)
}
