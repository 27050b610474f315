// Package model defines the affect-state data model shared by every
// diagnostic pipeline in affectlens.
//
// The model has three layers:
//
//   - AffectContext: one sampled or candidate world state, holding mood,
//     sexual, and trait axis values plus an optional previous state. Contexts
//     are immutable once produced; pipeline stages read them, never mutate.
//
//   - Definitions: Prototype (a weighted scoring rule restricted by gates)
//     and Expression (a named logical prerequisite set). Both are loaded
//     read-only from a registry for the duration of one analysis run.
//
//   - Logic: gate conditions and prerequisites share a small tagged-variant
//     AST (LogicExpr) with an explicit evaluator. The AST is sealed so that
//     adding an operator forces every switch in the codebase to be revisited.
//
// AXIS PATHS:
//
// Every scalar dimension is addressed by a dotted path: "mood.valence",
// "sexual.arousal", "traits.openness". A clause may additionally carry the
// delta signal, which compares (current - previous) instead of the raw value.
//
// NORMALIZATION:
//
// Raw axis values live in the domain declared for their group (by default
// -100..100 for all three groups). The Normalizer maps raw values into the
// bounded signed range [-1, 1] used by all scoring. FlatContext caches the
// flattened path -> value view of a context (raw and delta) so batch
// pipelines resolve each path exactly once per context.
package model
