package compiler

import (
	"fmt"
	"strings"

	"github.com/hollis-b/affectlens/internal/model"
)

// Validation error codes (E200-E299)
const (
	// Definition-set errors (E200-E209)
	ErrDuplicateID = "E200" // duplicate prototype/expression id
	ErrBadDomain   = "E201" // domain min not below max

	// Prototype errors (E210-E219)
	ErrPrototypeNoWeights = "E210" // prototype has no nonzero weight
	ErrBadAxisPath        = "E211" // weight path not group.axis with a known group
	ErrUnparseableGate    = "E212" // gate condition does not compile

	// Expression errors (E220-E229)
	ErrExpressionNoPrereqs = "E220" // expression has no prerequisites
	ErrBadClausePath       = "E221" // clause variable path invalid
)

// ValidationError represents a definition validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks compiled definitions against semantic rules. It returns
// every error found rather than failing fast, so an author sees the full
// report in one pass.
//
// Unparseable gates are reported here as errors even though the runtime
// degrades them to a partial parse: validation is the authoring surface,
// the runtime is the execution surface.
func Validate(defs *Definitions) []ValidationError {
	var errs []ValidationError

	for group, d := range defs.Domains {
		if d.Min >= d.Max {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("domains.%s", group),
				Message: fmt.Sprintf("min %v must be below max %v", d.Min, d.Max),
				Code:    ErrBadDomain,
			})
		}
	}

	protoIDs := make(map[string]bool)
	for i, p := range defs.Prototypes {
		field := fmt.Sprintf("prototype[%d]", i)
		if p.ID != "" {
			field = fmt.Sprintf("prototype.%s", p.ID)
		}
		if protoIDs[p.ID] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate prototype id %q", p.ID),
				Code:    ErrDuplicateID,
			})
		}
		protoIDs[p.ID] = true
		errs = append(errs, validatePrototype(field, p)...)
	}

	exprIDs := make(map[string]bool)
	for i, e := range defs.Expressions {
		field := fmt.Sprintf("expression[%d]", i)
		if e.ID != "" {
			field = fmt.Sprintf("expression.%s", e.ID)
		}
		if exprIDs[e.ID] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate expression id %q", e.ID),
				Code:    ErrDuplicateID,
			})
		}
		exprIDs[e.ID] = true
		errs = append(errs, validateExpression(field, e)...)
	}

	return errs
}

func validatePrototype(field string, p model.Prototype) []ValidationError {
	var errs []ValidationError

	active := 0
	for path, w := range p.Weights {
		if w != 0 {
			active++
		}
		if _, _, err := model.SplitPath(path); err != nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.weights[%q]", field, path),
				Message: err.Error(),
				Code:    ErrBadAxisPath,
			})
		}
	}
	if active == 0 {
		errs = append(errs, ValidationError{
			Field:   field + ".weights",
			Message: "at least one nonzero weight is required",
			Code:    ErrPrototypeNoWeights,
		})
	}

	for i, g := range p.Gates {
		logic, err := model.ParseLogic(g.Raw)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.gates[%d]", field, i),
				Message: err.Error(),
				Code:    ErrUnparseableGate,
			})
			continue
		}
		errs = append(errs, validateClausePaths(fmt.Sprintf("%s.gates[%d]", field, i), logic)...)
	}
	return errs
}

func validateExpression(field string, e model.Expression) []ValidationError {
	var errs []ValidationError
	if len(e.Prerequisites) == 0 {
		errs = append(errs, ValidationError{
			Field:   field + ".prerequisites",
			Message: "at least one prerequisite is required",
			Code:    ErrExpressionNoPrereqs,
		})
	}
	for i, p := range e.Prerequisites {
		errs = append(errs, validateClausePaths(fmt.Sprintf("%s.prerequisites[%d]", field, i), p.Logic)...)
	}
	return errs
}

func validateClausePaths(field string, logic model.LogicExpr) []ValidationError {
	var errs []ValidationError
	model.WalkComparisons(logic, func(c model.CmpExpr) {
		if _, _, err := model.SplitPath(c.Path); err != nil {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: err.Error(),
				Code:    ErrBadClausePath,
			})
		}
	})
	return errs
}

// FormatErrors renders a validation report, one error per line.
func FormatErrors(errs []ValidationError) string {
	lines := make([]string, len(errs))
	for i, e := range errs {
		lines[i] = e.Error()
	}
	return strings.Join(lines, "\n")
}
