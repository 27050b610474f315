// Package compiler turns CUE definition files into runnable prototype and
// expression models.
//
// Definitions are authored in CUE and compiled via the CUE SDK's Go API
// (not a CLI subprocess). Compilation is strict about shape; semantic
// checks that should be collected rather than fail-fast live in Validate.
package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/hollis-b/affectlens/internal/model"
)

// Definitions is the compiled content of one definition set.
type Definitions struct {
	Prototypes  []model.Prototype
	Expressions []model.Expression
	// Domains overrides the default axis-group ranges when present.
	Domains map[model.AxisGroup]model.Domain
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Compile parses a CUE value into Definitions.
//
// The expected shape:
//
//	domains: mood: {min: -100, max: 100}
//	prototype: joy: {
//		weights: "mood.valence": 1.0
//		gates: [{var: "mood.valence", op: ">=", value: 0}]
//	}
//	expression: smile: {
//		prerequisites: [{var: "mood.valence", op: ">", value: 30}]
//	}
//
// Prototype and expression ids come from the struct labels. Gate and
// prerequisite trees are kept in source form on the model so evaluation
// can report per-gate parse state, but each prerequisite must compile
// here: an expression with an unreadable clause is rejected outright.
func Compile(v cue.Value) (*Definitions, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	defs := &Definitions{}

	domains, err := compileDomains(v.LookupPath(cue.ParsePath("domains")))
	if err != nil {
		return nil, err
	}
	defs.Domains = domains

	protos := v.LookupPath(cue.ParsePath("prototype"))
	if protos.Exists() {
		iter, err := protos.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			p, err := compilePrototype(iter.Selector().Unquoted(), iter.Value())
			if err != nil {
				return nil, err
			}
			defs.Prototypes = append(defs.Prototypes, p)
		}
	}

	exprs := v.LookupPath(cue.ParsePath("expression"))
	if exprs.Exists() {
		iter, err := exprs.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			e, err := compileExpression(iter.Selector().Unquoted(), iter.Value())
			if err != nil {
				return nil, err
			}
			defs.Expressions = append(defs.Expressions, e)
		}
	}

	return defs, nil
}

func compileDomains(v cue.Value) (map[model.AxisGroup]model.Domain, error) {
	if !v.Exists() {
		return nil, nil
	}
	out := map[model.AxisGroup]model.Domain{}
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		group := model.AxisGroup(iter.Selector().Unquoted())
		if !model.ValidGroups[group] {
			return nil, &CompileError{
				Field:   "domains",
				Message: fmt.Sprintf("unknown axis group %q", group),
				Pos:     iter.Value().Pos(),
			}
		}
		var d model.Domain
		min, err := iter.Value().LookupPath(cue.ParsePath("min")).Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		max, err := iter.Value().LookupPath(cue.ParsePath("max")).Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		d.Min, d.Max = min, max
		out[group] = d
	}
	return out, nil
}

func compilePrototype(id string, v cue.Value) (model.Prototype, error) {
	p := model.Prototype{ID: id}

	weightsVal := v.LookupPath(cue.ParsePath("weights"))
	if !weightsVal.Exists() {
		return p, &CompileError{
			Field:   fmt.Sprintf("prototype.%s.weights", id),
			Message: "weights are required",
			Pos:     v.Pos(),
		}
	}
	p.Weights = map[string]float64{}
	iter, err := weightsVal.Fields()
	if err != nil {
		return p, formatCUEError(err)
	}
	for iter.Next() {
		path := iter.Selector().Unquoted()
		w, err := iter.Value().Float64()
		if err != nil {
			return p, formatCUEError(err)
		}
		p.Weights[path] = w
	}

	gatesVal := v.LookupPath(cue.ParsePath("gates"))
	if gatesVal.Exists() {
		gates, err := compileConditionList(fmt.Sprintf("prototype.%s.gates", id), gatesVal)
		if err != nil {
			return p, err
		}
		p.Gates = gates
	}
	return p, nil
}

func compileExpression(id string, v cue.Value) (model.Expression, error) {
	e := model.Expression{ID: id}

	prereqVal := v.LookupPath(cue.ParsePath("prerequisites"))
	if !prereqVal.Exists() {
		return e, &CompileError{
			Field:   fmt.Sprintf("expression.%s.prerequisites", id),
			Message: "prerequisites are required",
			Pos:     v.Pos(),
		}
	}
	conds, err := compileConditionList(fmt.Sprintf("expression.%s.prerequisites", id), prereqVal)
	if err != nil {
		return e, err
	}
	for i, cond := range conds {
		logic, perr := model.ParseLogic(cond.Raw)
		if perr != nil {
			return e, &CompileError{
				Field:   fmt.Sprintf("expression.%s.prerequisites[%d]", id, i),
				Message: perr.Error(),
				Pos:     prereqVal.Pos(),
			}
		}
		e.Prerequisites = append(e.Prerequisites, model.Prerequisite{Logic: logic})
	}
	return e, nil
}

// compileConditionList decodes a CUE list of condition trees into source
// form. Shape errors at this level are compile errors; per-gate semantic
// parse failures are left to the gate checker so it can degrade to a
// partial parse instead.
func compileConditionList(field string, v cue.Value) ([]model.GateCondition, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []model.GateCondition
	for i := 0; iter.Next(); i++ {
		var raw map[string]any
		if err := iter.Value().Decode(&raw); err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("%s[%d]", field, i),
				Message: err.Error(),
				Pos:     iter.Value().Pos(),
			}
		}
		out = append(out, model.GateCondition{Raw: raw})
	}
	return out, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
