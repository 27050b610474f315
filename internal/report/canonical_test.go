package report

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollis-b/affectlens/internal/feasibility"
	"github.com/hollis-b/affectlens/internal/model"
	"github.com/hollis-b/affectlens/internal/search"
)

func TestMarshalCanonical_SortedKeys(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{
		"zeta":  1,
		"alpha": 2,
		"mid":   map[string]any{"b": 1, "a": 2},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"mid":{"a":2,"b":1},"zeta":1}`, string(got))
}

func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{"q": "a<b>&c"})
	require.NoError(t, err)
	assert.Equal(t, `{"q":"a<b>&c"}`, string(got))
}

func TestMarshalCanonical_NFCNormalization(t *testing.T) {
	// "é" as e + combining acute must normalize to the precomposed form.
	decomposed := "café"
	precomposed := "café"

	a, err := MarshalCanonical(map[string]any{"name": decomposed})
	require.NoError(t, err)
	b, err := MarshalCanonical(map[string]any{"name": precomposed})
	require.NoError(t, err)
	assert.Equal(t, string(b), string(a))
}

func TestMarshalCanonical_Deterministic(t *testing.T) {
	doc := &Diagnostic{
		RunID: "0191e000-0000-7000-8000-000000000001",
		Seed:  42,
		Witness: &search.Result{
			Found:          true,
			BestFitness:    1,
			IterationsUsed: 3,
			Witness: &model.AffectContext{
				Mood: map[string]float64{"valence": 62.5, "arousal": -3.25},
			},
		},
		Feasibility: []feasibility.Result{
			{
				Clause: feasibility.ClauseSpec{
					Signal: model.SignalRaw, Path: "mood.valence",
					Op: model.OpGTE, Threshold: 30,
				},
				PassRate:       0.35,
				MaxValue:       99.5,
				MinValue:       -99.5,
				Observations:   200,
				Classification: feasibility.ClassOK,
			},
		},
	}

	first, err := doc.Marshal()
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := doc.Marshal()
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}
	assert.Contains(t, string(first), `"pass_rate":0.35`)
	assert.Contains(t, string(first), `"variable_path":"mood.valence"`)
}

func TestMarshalCanonical_RejectsNaN(t *testing.T) {
	_, err := MarshalCanonical(map[string]any{"bad": math.NaN()})
	require.Error(t, err)
}

func TestMarshalIndented_SameKeyOrder(t *testing.T) {
	doc := map[string]any{"b": 1, "a": 2}
	pretty, err := MarshalIndented(doc)
	require.NoError(t, err)
	assert.Less(t,
		strings.Index(string(pretty), `"a"`),
		strings.Index(string(pretty), `"b"`))
	assert.Contains(t, string(pretty), "\n")
}

func TestFixedSource_Sequence(t *testing.T) {
	src := NewFixedSource("one", "two")
	assert.Equal(t, "one", src.Generate())
	assert.Equal(t, "two", src.Generate())
	assert.Equal(t, "two", src.Generate(), "exhausted source repeats the final token")
}
