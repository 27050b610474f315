package model

import (
	"fmt"
)

// CompareOp is a threshold comparison operator.
type CompareOp string

const (
	OpGTE CompareOp = ">="
	OpGT  CompareOp = ">"
	OpLTE CompareOp = "<="
	OpLT  CompareOp = "<"
	OpEQ  CompareOp = "=="
	OpNEQ CompareOp = "!="
)

// ValidCompareOps defines the accepted comparison operators.
var ValidCompareOps = map[CompareOp]bool{
	OpGTE: true, OpGT: true, OpLTE: true, OpLT: true, OpEQ: true, OpNEQ: true,
}

// IsGreater reports whether the operator is ">=" or ">", i.e. it bounds
// the observed value from below.
func (op CompareOp) IsGreater() bool { return op == OpGTE || op == OpGT }

// IsLess reports whether the operator is "<=" or "<".
func (op CompareOp) IsLess() bool { return op == OpLTE || op == OpLT }

// Compare applies the operator to (value, threshold).
func (op CompareOp) Compare(value, threshold float64) bool {
	switch op {
	case OpGTE:
		return value >= threshold
	case OpGT:
		return value > threshold
	case OpLTE:
		return value <= threshold
	case OpLT:
		return value < threshold
	case OpEQ:
		return value == threshold
	case OpNEQ:
		return value != threshold
	default:
		return false
	}
}

// Signal selects what a comparison reads from the context.
type Signal string

const (
	// SignalRaw compares the current value of the variable.
	SignalRaw Signal = "raw"
	// SignalDelta compares (current - previous) for the variable.
	SignalDelta Signal = "delta"
)

// LogicExpr is a sealed interface over the logic AST variants.
// Only CmpExpr, AndExpr, OrExpr, and NotExpr implement it.
//
// The interface is sealed (unexported marker method) so that evaluators and
// walkers can switch exhaustively: a new variant cannot be added outside
// this package without touching every switch.
type LogicExpr interface {
	logicExpr()
}

// CmpExpr compares a context variable (raw or delta) against a threshold.
type CmpExpr struct {
	Signal    Signal    `json:"signal"`
	Path      string    `json:"variable_path"` // dotted axis path, e.g. "mood.valence"
	Op        CompareOp `json:"operator"`
	Threshold float64   `json:"threshold"`
}

func (CmpExpr) logicExpr() {}

// AndExpr is the conjunction of its terms. An empty AndExpr is true.
type AndExpr struct {
	Terms []LogicExpr
}

func (AndExpr) logicExpr() {}

// OrExpr is the disjunction of its terms. An empty OrExpr is false.
type OrExpr struct {
	Terms []LogicExpr
}

func (OrExpr) logicExpr() {}

// NotExpr negates its term.
type NotExpr struct {
	Term LogicExpr
}

func (NotExpr) logicExpr() {}

// ParseError reports a malformed logic tree.
type ParseError struct {
	Message string
	Node    map[string]any
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("logic parse error: %s", e.Message)
}

// ParseLogic compiles a JSON-like condition tree into a LogicExpr.
//
// Accepted shapes:
//
//	{"var": "mood.valence", "op": ">=", "value": 30}
//	{"var": "mood.valence", "op": ">=", "value": 10, "signal": "delta"}
//	{"op": "and", "terms": [ ... ]}
//	{"op": "or",  "terms": [ ... ]}
//	{"op": "not", "term": { ... }}
//
// Unknown operators or missing fields return a *ParseError. Callers that
// tolerate partial parses (gate checking) record the failure per gate
// rather than aborting.
func ParseLogic(raw map[string]any) (LogicExpr, error) {
	if raw == nil {
		return nil, &ParseError{Message: "nil condition tree"}
	}

	op, _ := raw["op"].(string)

	// Comparison node: presence of "var" wins over boolean ops so that a
	// malformed mix ({"var": ..., "op": "and"}) fails loudly below.
	if v, ok := raw["var"]; ok {
		path, ok := v.(string)
		if !ok || path == "" {
			return nil, &ParseError{Message: "comparison var must be a non-empty string", Node: raw}
		}
		cop := CompareOp(op)
		if !ValidCompareOps[cop] {
			return nil, &ParseError{Message: fmt.Sprintf("unknown comparison operator %q", op), Node: raw}
		}
		threshold, ok := toFloat(raw["value"])
		if !ok {
			return nil, &ParseError{Message: "comparison value must be numeric", Node: raw}
		}
		signal := SignalRaw
		if s, ok := raw["signal"].(string); ok && s != "" {
			switch Signal(s) {
			case SignalRaw, SignalDelta:
				signal = Signal(s)
			default:
				return nil, &ParseError{Message: fmt.Sprintf("unknown signal %q", s), Node: raw}
			}
		}
		return CmpExpr{Signal: signal, Path: path, Op: cop, Threshold: threshold}, nil
	}

	switch op {
	case "and", "or":
		rawTerms, ok := raw["terms"].([]any)
		if !ok {
			return nil, &ParseError{Message: fmt.Sprintf("%q requires a terms array", op), Node: raw}
		}
		terms := make([]LogicExpr, 0, len(rawTerms))
		for i, rt := range rawTerms {
			node, ok := rt.(map[string]any)
			if !ok {
				return nil, &ParseError{Message: fmt.Sprintf("terms[%d] is not an object", i), Node: raw}
			}
			term, err := ParseLogic(node)
			if err != nil {
				return nil, err
			}
			terms = append(terms, term)
		}
		if op == "and" {
			return AndExpr{Terms: terms}, nil
		}
		return OrExpr{Terms: terms}, nil
	case "not":
		node, ok := raw["term"].(map[string]any)
		if !ok {
			return nil, &ParseError{Message: `"not" requires a term object`, Node: raw}
		}
		term, err := ParseLogic(node)
		if err != nil {
			return nil, err
		}
		return NotExpr{Term: term}, nil
	case "":
		return nil, &ParseError{Message: "condition tree missing op", Node: raw}
	default:
		return nil, &ParseError{Message: fmt.Sprintf("unknown operator %q", op), Node: raw}
	}
}

// EncodeLogic converts a compiled expression back to the source tree
// shape accepted by ParseLogic. Round-tripping through EncodeLogic and
// ParseLogic yields an equal expression.
func EncodeLogic(e LogicExpr) map[string]any {
	switch expr := e.(type) {
	case CmpExpr:
		raw := map[string]any{
			"var":   expr.Path,
			"op":    string(expr.Op),
			"value": expr.Threshold,
		}
		if expr.Signal == SignalDelta {
			raw["signal"] = string(SignalDelta)
		}
		return raw
	case AndExpr:
		return map[string]any{"op": "and", "terms": encodeTerms(expr.Terms)}
	case OrExpr:
		return map[string]any{"op": "or", "terms": encodeTerms(expr.Terms)}
	case NotExpr:
		return map[string]any{"op": "not", "term": EncodeLogic(expr.Term)}
	default:
		return nil
	}
}

func encodeTerms(terms []LogicExpr) []any {
	out := make([]any, len(terms))
	for i, t := range terms {
		out[i] = EncodeLogic(t)
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// Evaluate resolves the expression against a flattened context.
//
// A comparison whose variable is absent from the context evaluates to false
// (never panics); batch pipelines treat that as a non-pass data point.
func Evaluate(e LogicExpr, flat *FlatContext) bool {
	switch expr := e.(type) {
	case CmpExpr:
		v, ok := flat.Resolve(expr.Signal, expr.Path)
		if !ok {
			return false
		}
		return expr.Op.Compare(v, expr.Threshold)
	case AndExpr:
		for _, t := range expr.Terms {
			if !Evaluate(t, flat) {
				return false
			}
		}
		return true
	case OrExpr:
		for _, t := range expr.Terms {
			if Evaluate(t, flat) {
				return true
			}
		}
		return false
	case NotExpr:
		return !Evaluate(expr.Term, flat)
	default:
		return false
	}
}

// WalkComparisons invokes fn for every CmpExpr in the tree, in syntactic
// order. Used by clause extraction and interval analysis.
func WalkComparisons(e LogicExpr, fn func(CmpExpr)) {
	switch expr := e.(type) {
	case CmpExpr:
		fn(expr)
	case AndExpr:
		for _, t := range expr.Terms {
			WalkComparisons(t, fn)
		}
	case OrExpr:
		for _, t := range expr.Terms {
			WalkComparisons(t, fn)
		}
	case NotExpr:
		WalkComparisons(expr.Term, fn)
	}
}

// IsConjunctive reports whether the tree consists only of comparisons and
// AND nodes. Deterministic interval reasoning is restricted to conjunctive
// gates; anything with OR or NOT falls back to sampling-based evidence.
func IsConjunctive(e LogicExpr) bool {
	switch expr := e.(type) {
	case CmpExpr:
		return true
	case AndExpr:
		for _, t := range expr.Terms {
			if !IsConjunctive(t) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
