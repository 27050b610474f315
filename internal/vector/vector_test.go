package vector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollis-b/affectlens/internal/model"
	"github.com/hollis-b/affectlens/internal/sample"
)

func valenceContext(v float64) *model.AffectContext {
	return &model.AffectContext{Mood: map[string]float64{"valence": v}}
}

func gateAbove(path string, threshold float64) model.GateCondition {
	return model.GateCondition{Raw: map[string]any{
		"var": path, "op": ">", "value": threshold,
	}}
}

func TestEvaluateAll_SparseMasking(t *testing.T) {
	e := NewEvaluator(nil, nil, nil)

	// Gate passes at valence > 0; intensity is valence/100.
	proto := model.Prototype{
		ID:      "p",
		Weights: map[string]float64{"mood.valence": 1},
		Gates:   []model.GateCondition{gateAbove("mood.valence", 0)},
	}
	// Gate pattern [true,false,true,false]; raw intensities would be
	// [0.2, -0.9, 0.6, -0.4] - failing positions must store 0.
	pool := []*model.AffectContext{
		valenceContext(20), valenceContext(-90), valenceContext(60), valenceContext(-40),
	}

	vectors, err := e.EvaluateAll(context.Background(), []model.Prototype{proto}, pool, nil)
	require.NoError(t, err)
	vec := vectors["p"]
	require.NotNil(t, vec)

	assert.Equal(t, []bool{true, false, true, false}, vec.GateResults)
	require.Len(t, vec.Intensities, len(pool))
	assert.InDelta(t, 0.2, vec.Intensities[0], 1e-12)
	assert.Zero(t, vec.Intensities[1])
	assert.InDelta(t, 0.6, vec.Intensities[2], 1e-12)
	assert.Zero(t, vec.Intensities[3])

	assert.InDelta(t, 0.5, vec.ActivationRate, 1e-12)
	// Stats over passing positions only: mean(0.2, 0.6)=0.4, std=0.2.
	assert.InDelta(t, 0.4, vec.MeanIntensity, 1e-9)
	assert.InDelta(t, 0.2, vec.StdIntensity, 1e-9)
}

func TestEvaluateAll_StatsIgnoreMaskedZeros(t *testing.T) {
	e := NewEvaluator(nil, nil, nil)
	proto := model.Prototype{
		ID:      "p",
		Weights: map[string]float64{"mood.valence": 1},
		Gates:   []model.GateCondition{gateAbove("mood.valence", 50)},
	}
	// Only one passing position; masked zeros must not drag the mean down.
	pool := []*model.AffectContext{
		valenceContext(80), valenceContext(-80), valenceContext(-60),
	}

	vectors, err := e.EvaluateAll(context.Background(), []model.Prototype{proto}, pool, nil)
	require.NoError(t, err)
	vec := vectors["p"]

	assert.InDelta(t, 0.8, vec.MeanIntensity, 1e-9)
	assert.Zero(t, vec.StdIntensity)
	assert.InDelta(t, 1.0/3.0, vec.ActivationRate, 1e-9)
}

func TestEvaluateAll_ProgressPerPrototype(t *testing.T) {
	e := NewEvaluator(nil, nil, nil)
	prototypes := []model.Prototype{
		{ID: "a", Weights: map[string]float64{"mood.valence": 1}},
		{ID: "b", Weights: map[string]float64{"mood.valence": -1}},
		{ID: "c", Weights: map[string]float64{"mood.arousal": 1}},
	}

	var calls [][2]int
	_, err := e.EvaluateAll(context.Background(), prototypes, nil, func(processed, total int) {
		calls = append(calls, [2]int{processed, total})
	})
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{1, 3}, {2, 3}, {3, 3}},
		calls, "progress must fire once per prototype, in order, even for an empty pool")
}

func TestEvaluateAll_MissingIDFailsFast(t *testing.T) {
	e := NewEvaluator(nil, nil, nil)
	prototypes := []model.Prototype{
		{ID: "ok", Weights: map[string]float64{"mood.valence": 1}},
		{Weights: map[string]float64{"mood.valence": 1}}, // no id
	}

	var progressCalls int
	vectors, err := e.EvaluateAll(context.Background(), prototypes,
		[]*model.AffectContext{valenceContext(0)},
		func(processed, total int) { progressCalls++ })

	require.Error(t, err)
	assert.True(t, IsInvalidPrototype(err))
	var ipe *InvalidPrototypeError
	require.ErrorAs(t, err, &ipe)
	assert.Equal(t, 1, ipe.Index)
	assert.Nil(t, vectors)
	assert.Zero(t, progressCalls, "validation precedes any processing")
}

func TestEvaluateAll_VectorLengthMatchesPool(t *testing.T) {
	e := NewEvaluator(nil, nil, nil)
	proto := model.Prototype{ID: "p", Weights: map[string]float64{"mood.valence": 1}}
	pool := sample.NewGenerator(21).Pool(37)

	vectors, err := e.EvaluateAll(context.Background(), []model.Prototype{proto}, pool, nil)
	require.NoError(t, err)
	vec := vectors["p"]
	assert.Len(t, vec.GateResults, 37)
	assert.Len(t, vec.Intensities, 37)
}

func TestEvaluateAll_LargePoolHonorsCancellation(t *testing.T) {
	e := NewEvaluator(nil, nil, nil)
	proto := model.Prototype{ID: "p", Weights: map[string]float64{"mood.valence": 1}}
	pool := sample.NewGenerator(22).Pool(1200)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.EvaluateAll(ctx, []model.Prototype{proto}, pool, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEvaluateAll_ParseInfoCarried(t *testing.T) {
	e := NewEvaluator(nil, nil, nil)
	proto := model.Prototype{
		ID:      "partial",
		Weights: map[string]float64{"mood.valence": 1},
		Gates: []model.GateCondition{
			gateAbove("mood.valence", 0),
			{Raw: map[string]any{"op": "maybe"}},
		},
	}

	vectors, err := e.EvaluateAll(context.Background(), []model.Prototype{proto},
		[]*model.AffectContext{valenceContext(10)}, nil)
	require.NoError(t, err)
	info := vectors["partial"].ParseInfo
	assert.False(t, info.Complete())
	assert.Equal(t, 1, info.ParsedGateCount)
	assert.Equal(t, 2, info.TotalGateCount)
}
