// Package harness runs scenario-driven conformance tests over the
// diagnostic pipelines.
//
// A scenario is a YAML document bundling inline CUE definitions, a seed,
// the pipelines to run, and assertions over the outcome. Scenarios run
// against the real pipelines — compiled definitions, a seeded context
// pool, actual witness search and overlap analysis — so a passing
// scenario certifies end-to-end behavior, not a manufactured trace.
//
// Identical seeds yield identical context pools, so scenario outcomes
// are fully deterministic and suitable for golden-file comparison.
package harness
