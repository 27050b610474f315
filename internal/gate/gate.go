// Package gate evaluates prototype gate conditions against affect contexts.
//
// Gates are pre-parsed once per prototype into a compiled form; batch
// pipelines then check thousands of contexts against the compiled gates
// without touching the source trees again. Parsing is tolerant: a gate that
// fails to parse is recorded in ParseInfo and skipped during evaluation,
// and the partial status downgrades any deterministic (proof-based)
// reasoning downstream to sampling-based evidence only.
package gate

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/hollis-b/affectlens/internal/model"
)

// ParseStatus reports whether every gate of a prototype compiled.
type ParseStatus string

const (
	// ParseComplete means all gates parsed; deterministic reasoning about
	// gate implication is permitted.
	ParseComplete ParseStatus = "complete"
	// ParsePartial means at least one gate failed to parse. Behavioral
	// (sampling-based) evaluation still runs on the gates that did parse.
	ParsePartial ParseStatus = "partial"
)

// ParseInfo records the per-prototype outcome of gate compilation.
type ParseInfo struct {
	Status          ParseStatus `json:"parse_status"`
	ParsedGateCount int         `json:"parsed_gate_count"`
	TotalGateCount  int         `json:"total_gate_count"`
	// UnparsedGates holds one message per failed gate, in gate order.
	UnparsedGates []string `json:"unparsed_gates,omitempty"`
}

// Complete reports whether every gate parsed.
func (i ParseInfo) Complete() bool { return i.Status == ParseComplete }

// Parsed is the compiled form of a prototype's gate list.
type Parsed struct {
	Exprs []model.LogicExpr
	Info  ParseInfo
}

// Checker compiles and evaluates gate conditions.
//
// Checker is stateless apart from its logger and safe for concurrent use.
type Checker struct {
	logger *slog.Logger
}

// NewChecker creates a gate checker. A nil logger discards output.
func NewChecker(logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Checker{logger: logger}
}

// Parse compiles a gate list. It never fails: unparseable gates are
// recorded in the returned ParseInfo and omitted from Exprs.
func (c *Checker) Parse(gates []model.GateCondition) Parsed {
	p := Parsed{
		Info: ParseInfo{Status: ParseComplete, TotalGateCount: len(gates)},
	}
	for i, g := range gates {
		expr, err := model.ParseLogic(g.Raw)
		if err != nil {
			p.Info.Status = ParsePartial
			p.Info.UnparsedGates = append(p.Info.UnparsedGates,
				fmt.Sprintf("gate[%d]: %v", i, err))
			c.logger.Warn("gate failed to parse", "index", i, "err", err)
			continue
		}
		p.Exprs = append(p.Exprs, expr)
		p.Info.ParsedGateCount++
	}
	return p
}

// Pass evaluates all parsed gates against a raw context. Gates combine with
// implicit AND; unparsed gates do not restrict (they were dropped at parse
// time and are already reflected in ParseInfo).
func (c *Checker) Pass(p Parsed, ctx *model.AffectContext) bool {
	return c.PassFlat(p, model.Flatten(ctx))
}

// PassFlat is the batch variant of Pass: the caller flattens each pool
// context once and reuses the FlatContext across every prototype.
func (c *Checker) PassFlat(p Parsed, flat *model.FlatContext) bool {
	for _, e := range p.Exprs {
		if !model.Evaluate(e, flat) {
			return false
		}
	}
	return true
}
