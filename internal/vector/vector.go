// Package vector batch-evaluates prototypes over a shared context pool.
//
// Each prototype yields one sparse vector: a gate-pass bit and a masked
// intensity per pool position. Vectors from one pool are position-aligned,
// which is what makes pairwise behavioral comparison downstream a simple
// parallel-array walk.
package vector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"runtime"

	"github.com/hollis-b/affectlens/internal/gate"
	"github.com/hollis-b/affectlens/internal/intensity"
	"github.com/hollis-b/affectlens/internal/model"
)

// Vector is the sparse per-prototype evaluation over one context pool.
//
// GateResults and Intensities are parallel arrays indexed by pool position;
// both always have exactly pool-length entries. Where the gate fails, the
// stored intensity is 0 regardless of the raw weighted score - the sparse
// zeros keep the arrays aligned but are excluded from the statistics.
type Vector struct {
	PrototypeID string    `json:"prototype_id"`
	GateResults []bool    `json:"gate_results"`
	Intensities []float64 `json:"intensities"`

	// ActivationRate is the mean of GateResults.
	ActivationRate float64 `json:"activation_rate"`
	// MeanIntensity and StdIntensity are computed only over gate-passing
	// positions; masked zeros never dilute them.
	MeanIntensity float64 `json:"mean_intensity"`
	StdIntensity  float64 `json:"std_intensity"`

	// ParseInfo governs whether deterministic gate reasoning may be used
	// downstream for this prototype.
	ParseInfo gate.ParseInfo `json:"parse_info"`
}

// InvalidPrototypeError reports a prototype the evaluator refuses to touch.
type InvalidPrototypeError struct {
	Index   int
	Message string
}

func (e *InvalidPrototypeError) Error() string {
	return fmt.Sprintf("invalid prototype at index %d: %s", e.Index, e.Message)
}

// IsInvalidPrototype returns true if err is an InvalidPrototypeError.
func IsInvalidPrototype(err error) bool {
	var ipe *InvalidPrototypeError
	return errors.As(err, &ipe)
}

// Pools larger than yieldPoolThreshold get a scheduler yield every
// yieldInterval contexts so one big evaluation cannot starve other work.
const (
	yieldPoolThreshold = 500
	yieldInterval      = 250
)

// Evaluator computes prototype vectors. Stateless; safe for concurrent use.
type Evaluator struct {
	checker *gate.Checker
	calc    *intensity.Calculator
	logger  *slog.Logger
}

// NewEvaluator creates an evaluator. Nil collaborators get defaults.
func NewEvaluator(checker *gate.Checker, calc *intensity.Calculator, logger *slog.Logger) *Evaluator {
	if checker == nil {
		checker = gate.NewChecker(nil)
	}
	if calc == nil {
		calc = intensity.NewCalculator(nil, checker)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Evaluator{checker: checker, calc: calc, logger: logger}
}

// EvaluateAll evaluates every prototype over the shared pool.
//
// Gates are parsed once per prototype, then checked per context. onProgress
// fires once per prototype processed, in order, even when the pool is
// empty. Prototypes lacking an id abort the whole call up front with an
// *InvalidPrototypeError - never silently skipped.
func (e *Evaluator) EvaluateAll(
	ctx context.Context,
	prototypes []model.Prototype,
	pool []*model.AffectContext,
	onProgress func(processed, total int),
) (map[string]*Vector, error) {
	for i, p := range prototypes {
		if p.ID == "" {
			return nil, &InvalidPrototypeError{Index: i, Message: "missing id"}
		}
	}

	// Flatten the pool once; every prototype reuses the views.
	flats := make([]*model.FlatContext, len(pool))
	for i, c := range pool {
		flats[i] = model.Flatten(c)
	}

	out := make(map[string]*Vector, len(prototypes))
	for i, proto := range prototypes {
		vec, err := e.evaluateOne(ctx, proto, flats)
		if err != nil {
			return nil, err
		}
		out[proto.ID] = vec
		if onProgress != nil {
			onProgress(i+1, len(prototypes))
		}
	}
	return out, nil
}

func (e *Evaluator) evaluateOne(ctx context.Context, proto model.Prototype, flats []*model.FlatContext) (*Vector, error) {
	parsed := e.checker.Parse(proto.Gates)

	vec := &Vector{
		PrototypeID: proto.ID,
		GateResults: make([]bool, len(flats)),
		Intensities: make([]float64, len(flats)),
		ParseInfo:   parsed.Info,
	}

	var passCount int
	var sum, sumSq float64
	for i, flat := range flats {
		if len(flats) > yieldPoolThreshold && i > 0 && i%yieldInterval == 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("vector evaluation aborted (prototype=%s, position=%d): %w",
					proto.ID, i, ctx.Err())
			default:
				runtime.Gosched()
			}
		}

		if !e.checker.PassFlat(parsed, flat) {
			continue
		}
		vec.GateResults[i] = true
		v := e.calc.Compute(proto.Weights, flat)
		vec.Intensities[i] = v
		passCount++
		sum += v
		sumSq += v * v
	}

	if len(flats) > 0 {
		vec.ActivationRate = float64(passCount) / float64(len(flats))
	}
	if passCount > 0 {
		mean := sum / float64(passCount)
		vec.MeanIntensity = mean
		variance := sumSq/float64(passCount) - mean*mean
		if variance > 0 {
			vec.StdIntensity = math.Sqrt(variance)
		}
	}
	return vec, nil
}
