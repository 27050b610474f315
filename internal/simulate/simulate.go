// Package simulate drives the external emotion-calculation collaborator
// over randomized context pools.
//
// The simulator owns no emotion formula: it samples contexts, hands each to
// the injected calculator, and aggregates the outputs. Raw samples can be
// retained for downstream sensitivity analysis at the cost of memory.
package simulate

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/hollis-b/affectlens/internal/model"
)

// EmotionCalculator is the injected collaborator that turns an affect
// context into emotion outputs. Its formula is outside this core.
type EmotionCalculator interface {
	CalculateEmotions(ctx *model.AffectContext) (map[string]float64, error)
	CalculateSexualArousal(ctx *model.AffectContext) (float64, error)
	CalculateSexualStates(ctx *model.AffectContext) (map[string]float64, error)
}

// ContextSource produces the sampled contexts. Implemented by
// sample.Generator.
type ContextSource interface {
	Generate() *model.AffectContext
}

// DefaultSamples is the sample count when the caller does not say.
const DefaultSamples = 500

// cancelCheckInterval bounds how long a run can ignore cancellation.
const cancelCheckInterval = 100

// Options configures one simulation run.
type Options struct {
	// Samples is the number of contexts to draw. Zero means DefaultSamples.
	Samples int

	// RetainSamples keeps every raw sample on the summary for downstream
	// sensitivity analysis. Off by default: retention is O(samples).
	RetainSamples bool
}

// Sample is one retained simulation data point.
type Sample struct {
	Context       *model.AffectContext `json:"context"`
	Emotions      map[string]float64   `json:"emotions"`
	SexualArousal float64              `json:"sexual_arousal"`
	SexualStates  map[string]float64   `json:"sexual_states"`
}

// Summary aggregates one simulation run.
type Summary struct {
	Samples int `json:"samples"`
	// FailedSamples counts contexts the calculator rejected; they are
	// logged and skipped, never abort the run.
	FailedSamples int `json:"failed_samples"`

	EmotionMean map[string]float64 `json:"emotion_mean"`
	EmotionMax  map[string]float64 `json:"emotion_max"`
	ArousalMean float64            `json:"arousal_mean"`
	ArousalMax  float64            `json:"arousal_max"`

	// Retained is populated only when Options.RetainSamples is set.
	Retained []Sample `json:"retained,omitempty"`
}

// Simulator runs Monte-Carlo passes over the emotion calculator.
// Not safe for concurrent use (the context source is stateful).
type Simulator struct {
	calc   EmotionCalculator
	source ContextSource
	logger *slog.Logger
}

// NewSimulator creates a simulator. A nil logger discards output.
func NewSimulator(calc EmotionCalculator, source ContextSource, logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Simulator{calc: calc, source: source, logger: logger}
}

// Run draws opts.Samples contexts and aggregates calculator outputs.
//
// A failing calculator call spoils only its own sample: the failure is
// counted, logged, and the run continues. Cancellation is honored between
// samples.
func (s *Simulator) Run(ctx context.Context, opts Options) (*Summary, error) {
	samples := opts.Samples
	if samples <= 0 {
		samples = DefaultSamples
	}

	sum := &Summary{
		EmotionMean: make(map[string]float64),
		EmotionMax:  make(map[string]float64),
	}
	counts := make(map[string]int)
	var arousalSum float64
	var arousalN int

	for i := 0; i < samples; i++ {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("simulation aborted at sample %d: %w", i, err)
			}
		}

		candidate := s.source.Generate()

		emotions, err := s.calc.CalculateEmotions(candidate)
		if err != nil {
			sum.FailedSamples++
			s.logger.Warn("emotion calculation failed", "sample", i, "err", err)
			continue
		}
		arousal, err := s.calc.CalculateSexualArousal(candidate)
		if err != nil {
			sum.FailedSamples++
			s.logger.Warn("arousal calculation failed", "sample", i, "err", err)
			continue
		}
		states, err := s.calc.CalculateSexualStates(candidate)
		if err != nil {
			sum.FailedSamples++
			s.logger.Warn("sexual state calculation failed", "sample", i, "err", err)
			continue
		}

		sum.Samples++
		for name, v := range emotions {
			counts[name]++
			sum.EmotionMean[name] += v
			if cur, ok := sum.EmotionMax[name]; !ok || v > cur {
				sum.EmotionMax[name] = v
			}
		}
		arousalSum += arousal
		arousalN++
		if arousal > sum.ArousalMax || arousalN == 1 {
			sum.ArousalMax = arousal
		}

		if opts.RetainSamples {
			sum.Retained = append(sum.Retained, Sample{
				Context:       candidate,
				Emotions:      emotions,
				SexualArousal: arousal,
				SexualStates:  states,
			})
		}
	}

	for name, total := range sum.EmotionMean {
		sum.EmotionMean[name] = total / float64(counts[name])
	}
	if arousalN > 0 {
		sum.ArousalMean = arousalSum / float64(arousalN)
	}
	return sum, nil
}
