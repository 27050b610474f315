package model

// AxisGroup identifies one of the three axis families of the affect model.
type AxisGroup string

const (
	// GroupMood covers transient mood dimensions (valence, arousal, ...).
	GroupMood AxisGroup = "mood"
	// GroupSexual covers sexual-state dimensions.
	GroupSexual AxisGroup = "sexual"
	// GroupTraits covers slow-moving personality trait dimensions.
	GroupTraits AxisGroup = "traits"
)

// ValidGroups defines the allowed axis groups.
var ValidGroups = map[AxisGroup]bool{
	GroupMood:   true,
	GroupSexual: true,
	GroupTraits: true,
}

// Domain is the inclusive raw value range of an axis group.
type Domain struct {
	Min float64
	Max float64
}

// Span returns the width of the domain.
func (d Domain) Span() float64 { return d.Max - d.Min }

// Contains reports whether v lies inside the domain.
func (d Domain) Contains(v float64) bool { return v >= d.Min && v <= d.Max }

// DefaultDomains returns the standard raw ranges for the three axis groups.
// All groups use the symmetric -100..100 scale.
func DefaultDomains() map[AxisGroup]Domain {
	return map[AxisGroup]Domain{
		GroupMood:   {Min: -100, Max: 100},
		GroupSexual: {Min: -100, Max: 100},
		GroupTraits: {Min: -100, Max: 100},
	}
}

// AffectContext represents one sampled or candidate world state.
//
// Axis maps are keyed by bare axis name ("valence", not "mood.valence").
// Previous, when present, holds the prior state for delta clauses; it may be
// partial (axes missing from Previous resolve as absent, not zero).
//
// Contexts are treated as immutable after construction. Pipeline stages must
// never write to the maps of a context they did not create.
type AffectContext struct {
	Mood     map[string]float64 `json:"mood,omitempty"`
	Sexual   map[string]float64 `json:"sexual,omitempty"`
	Traits   map[string]float64 `json:"traits,omitempty"`
	Previous *AffectContext     `json:"previous,omitempty"`
}

// Axes returns the axis map for the given group, or nil for an unknown group.
func (c *AffectContext) Axes(g AxisGroup) map[string]float64 {
	switch g {
	case GroupMood:
		return c.Mood
	case GroupSexual:
		return c.Sexual
	case GroupTraits:
		return c.Traits
	default:
		return nil
	}
}

// Clone returns a deep copy of the context, including the previous state.
// Used by generators that hand out contexts derived from a template.
func (c *AffectContext) Clone() *AffectContext {
	if c == nil {
		return nil
	}
	out := &AffectContext{
		Mood:   cloneAxisMap(c.Mood),
		Sexual: cloneAxisMap(c.Sexual),
		Traits: cloneAxisMap(c.Traits),
	}
	if c.Previous != nil {
		out.Previous = c.Previous.Clone()
	}
	return out
}

func cloneAxisMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// GateCondition is the uncompiled source form of a gate: a small JSON-like
// tree of comparisons and boolean combinators, as loaded from a registry.
//
// Gates stay in source form on the Prototype so that a checker can report
// per-gate parse failures (GateParseInfo) instead of rejecting the whole
// prototype; deterministic reasoning is only permitted when every gate of a
// prototype parsed.
type GateCondition struct {
	// Raw is the uncompiled condition tree. See ParseLogic for the accepted
	// shape.
	Raw map[string]any
}

// Prototype is a named linear scoring rule restricted by gate conditions.
//
// Weights are keyed by axis path ("mood.valence"). The sign of a weight
// expresses direction; magnitude is irrelevant to intensity thanks to L1
// normalization, but still matters for pairwise weight-vector comparison.
type Prototype struct {
	ID      string
	Weights map[string]float64
	Gates   []GateCondition
}

// Prerequisite is one clause of an expression. Clauses combine with
// implicit AND at the expression level.
type Prerequisite struct {
	Logic LogicExpr
}

// Expression is a named logical prerequisite set over affect-state variables.
type Expression struct {
	ID            string
	Prerequisites []Prerequisite
}
