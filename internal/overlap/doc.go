// Package overlap detects behaviorally redundant prototype pairs.
//
// The pipeline runs in four stages. A cheap static filter prunes the
// O(n²) pair space using only weight maps. A behavior evaluator compares
// the surviving pairs over a shared context pool, producing co-occurrence
// rates, intensity agreement and conditional pass rates, plus a
// deterministic gate-implication proof where both gate sets are fully
// parsed conjunctions of interval constraints. A classifier turns those
// metrics into an ordered list of relationship categories, and the
// analyzer ranks all pairs by a composite closeness score.
//
// The composite score deliberately weights gate co-occurrence most
// heavily: two prototypes that rarely fire together are never ranked
// closest merely because their intensities correlate on the rare
// occasions both are active.
package overlap
