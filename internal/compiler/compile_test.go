package compiler

import (
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollis-b/affectlens/internal/model"
)

func compileString(t *testing.T, src string) (*Definitions, error) {
	t.Helper()
	v := cuecontext.New().CompileString(src)
	return Compile(v)
}

func TestCompile_FullDefinitionSet(t *testing.T) {
	defs, err := compileString(t, `
domains: mood: {min: -50, max: 50}

prototype: joy: {
	weights: {
		"mood.valence": 1.0
		"mood.arousal": 0.3
	}
	gates: [{var: "mood.valence", op: ">=", value: 0}]
}

prototype: calm: {
	weights: "mood.tension": -1.0
}

expression: smile: {
	prerequisites: [
		{var: "mood.valence", op: ">", value: 30},
		{var: "mood.valence", op: ">=", value: 5, signal: "delta"},
	]
}
`)
	require.NoError(t, err)

	require.Len(t, defs.Prototypes, 2)
	joy := defs.Prototypes[0]
	assert.Equal(t, "joy", joy.ID)
	assert.InDelta(t, 1.0, joy.Weights["mood.valence"], 1e-12)
	assert.InDelta(t, 0.3, joy.Weights["mood.arousal"], 1e-12)
	require.Len(t, joy.Gates, 1)
	assert.Equal(t, ">=", joy.Gates[0].Raw["op"])

	calm := defs.Prototypes[1]
	assert.Equal(t, "calm", calm.ID)
	assert.Empty(t, calm.Gates)

	require.Len(t, defs.Expressions, 1)
	smile := defs.Expressions[0]
	assert.Equal(t, "smile", smile.ID)
	require.Len(t, smile.Prerequisites, 2)
	cmp, ok := smile.Prerequisites[1].Logic.(model.CmpExpr)
	require.True(t, ok)
	assert.Equal(t, model.SignalDelta, cmp.Signal)

	require.Contains(t, defs.Domains, model.GroupMood)
	assert.Equal(t, model.Domain{Min: -50, Max: 50}, defs.Domains[model.GroupMood])
}

func TestCompile_MissingWeights(t *testing.T) {
	_, err := compileString(t, `prototype: broken: {gates: []}`)
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "prototype.broken.weights", ce.Field)
}

func TestCompile_MissingPrerequisites(t *testing.T) {
	_, err := compileString(t, `expression: broken: {}`)
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "expression.broken.prerequisites", ce.Field)
}

func TestCompile_UnparseablePrerequisiteRejected(t *testing.T) {
	_, err := compileString(t, `
expression: broken: {
	prerequisites: [{op: "maybe", var: "mood.valence", value: 1}]
}
`)
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Field, "expression.broken.prerequisites[0]")
}

func TestCompile_UnknownDomainGroup(t *testing.T) {
	_, err := compileString(t, `domains: weather: {min: 0, max: 1}`)
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "domains", ce.Field)
}

func TestCompile_EmptyInput(t *testing.T) {
	defs, err := compileString(t, ``)
	require.NoError(t, err)
	assert.Empty(t, defs.Prototypes)
	assert.Empty(t, defs.Expressions)
	assert.Empty(t, defs.Domains)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	defs := &Definitions{
		Domains: map[model.AxisGroup]model.Domain{
			model.GroupMood: {Min: 10, Max: -10},
		},
		Prototypes: []model.Prototype{
			{ID: "a", Weights: map[string]float64{"mood.valence": 0}},
			{ID: "a", Weights: map[string]float64{"weather.rain": 1}},
		},
		Expressions: []model.Expression{
			{ID: "e"},
		},
	}

	errs := Validate(defs)
	codes := make(map[string]int)
	for _, e := range errs {
		codes[e.Code]++
	}
	assert.Equal(t, 1, codes[ErrBadDomain])
	assert.Equal(t, 1, codes[ErrPrototypeNoWeights])
	assert.Equal(t, 1, codes[ErrDuplicateID])
	assert.Equal(t, 1, codes[ErrBadAxisPath])
	assert.Equal(t, 1, codes[ErrExpressionNoPrereqs])
}

func TestValidate_UnparseableGateReported(t *testing.T) {
	defs := &Definitions{
		Prototypes: []model.Prototype{
			{
				ID:      "p",
				Weights: map[string]float64{"mood.valence": 1},
				Gates: []model.GateCondition{
					{Raw: map[string]any{"op": "maybe"}},
				},
			},
		},
	}

	errs := Validate(defs)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnparseableGate, errs[0].Code)
	assert.Equal(t, "prototype.p.gates[0]", errs[0].Field)
}

func TestValidate_CleanDefinitions(t *testing.T) {
	defs := &Definitions{
		Prototypes: []model.Prototype{
			{ID: "p", Weights: map[string]float64{"mood.valence": 1}},
		},
		Expressions: []model.Expression{
			{ID: "e", Prerequisites: []model.Prerequisite{
				{Logic: model.CmpExpr{Signal: model.SignalRaw, Path: "mood.valence", Op: model.OpGT, Threshold: 0}},
			}},
		},
	}
	assert.Empty(t, Validate(defs))
}
