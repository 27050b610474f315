// Package sample produces randomized affect contexts for diagnostic runs.
//
// Generators are seeded explicitly: the same seed and axis set yields the
// same context pool, which keeps witness searches and feasibility scans
// reproducible across runs and makes golden-file comparison possible.
package sample

import (
	"math/rand"

	"github.com/hollis-b/affectlens/internal/model"
)

// AxisSet declares which axes exist per group for generated contexts.
type AxisSet struct {
	Mood   []string
	Sexual []string
	Traits []string
}

// DefaultAxisSet returns the standard axis inventory of the affect model.
func DefaultAxisSet() AxisSet {
	return AxisSet{
		Mood:   []string{"valence", "arousal", "dominance", "tension"},
		Sexual: []string{"excitation", "inhibition", "desire"},
		Traits: []string{"openness", "conscientiousness", "extraversion", "agreeableness", "neuroticism"},
	}
}

// Generator produces randomized AffectContexts within valid domain bounds.
//
// Not safe for concurrent use: the underlying rand.Rand is stateful. Each
// analysis run owns its generator.
type Generator struct {
	rng          *rand.Rand
	domains      map[model.AxisGroup]model.Domain
	axes         AxisSet
	withPrevious bool
}

// Option configures a Generator.
type Option func(*Generator)

// WithAxes replaces the default axis inventory.
func WithAxes(axes AxisSet) Option {
	return func(g *Generator) { g.axes = axes }
}

// WithDomains replaces the default group domains.
func WithDomains(domains map[model.AxisGroup]model.Domain) Option {
	return func(g *Generator) { g.domains = domains }
}

// WithPrevious makes every generated context carry a previous state, so
// delta clauses have something to compare against.
func WithPrevious(enabled bool) Option {
	return func(g *Generator) { g.withPrevious = enabled }
}

// NewGenerator creates a seeded generator.
func NewGenerator(seed int64, opts ...Option) *Generator {
	g := &Generator{
		rng:          rand.New(rand.NewSource(seed)),
		domains:      model.DefaultDomains(),
		axes:         DefaultAxisSet(),
		withPrevious: true,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate produces one randomized context. Every declared axis receives a
// uniform value inside its group domain; when previous states are enabled
// the previous context covers the same axes, independently sampled.
func (g *Generator) Generate() *model.AffectContext {
	ctx := g.generateCurrent()
	if g.withPrevious {
		ctx.Previous = g.generateCurrent()
	}
	return ctx
}

func (g *Generator) generateCurrent() *model.AffectContext {
	return &model.AffectContext{
		Mood:   g.randomAxes(model.GroupMood, g.axes.Mood),
		Sexual: g.randomAxes(model.GroupSexual, g.axes.Sexual),
		Traits: g.randomAxes(model.GroupTraits, g.axes.Traits),
	}
}

func (g *Generator) randomAxes(group model.AxisGroup, names []string) map[string]float64 {
	d, ok := g.domains[group]
	if !ok || len(names) == 0 {
		return map[string]float64{}
	}
	m := make(map[string]float64, len(names))
	for _, name := range names {
		m[name] = d.Min + g.rng.Float64()*d.Span()
	}
	return m
}

// Pool generates n contexts.
func (g *Generator) Pool(n int) []*model.AffectContext {
	pool := make([]*model.AffectContext, 0, n)
	for i := 0; i < n; i++ {
		pool = append(pool, g.Generate())
	}
	return pool
}
