package harness

import (
	"fmt"

	"github.com/hollis-b/affectlens/internal/feasibility"
	"github.com/hollis-b/affectlens/internal/overlap"
)

// evaluateAssertions checks every scenario assertion against the run
// outcome, returning one failure message per violated assertion.
func evaluateAssertions(scenario *Scenario, res *Result) []string {
	var failures []string
	for i, a := range scenario.Assertions {
		if msg := evaluateAssertion(a, res); msg != "" {
			failures = append(failures, fmt.Sprintf("assertions[%d] (%s): %s", i, a.Type, msg))
		}
	}
	return failures
}

func evaluateAssertion(a Assertion, res *Result) string {
	switch a.Type {
	case "witness_found":
		sr, ok := res.Witness[a.Expression]
		if !ok {
			return fmt.Sprintf("no witness result for expression %q", a.Expression)
		}
		if sr.Found != *a.Found {
			return fmt.Sprintf("expression %q: found=%v, want %v (iterations=%d, best fitness=%.4f)",
				a.Expression, sr.Found, *a.Found, sr.IterationsUsed, sr.BestFitness)
		}
	case "feasibility_class":
		results, ok := res.Feasibility[a.Expression]
		if !ok {
			return fmt.Sprintf("no feasibility results for expression %q", a.Expression)
		}
		if a.Clause >= len(results) {
			return fmt.Sprintf("expression %q has %d clauses, assertion indexes %d",
				a.Expression, len(results), a.Clause)
		}
		got := results[a.Clause].Classification
		if got != feasibility.Classification(a.Classification) {
			return fmt.Sprintf("expression %q clause %d: classification=%s, want %s (pass rate %.4f)",
				a.Expression, a.Clause, got, a.Classification, results[a.Clause].PassRate)
		}
	case "overlap_primary":
		pr := findPair(res.Overlap, a.A, a.B)
		if pr == nil {
			return fmt.Sprintf("pair (%s, %s) not in overlap report", a.A, a.B)
		}
		if got := pr.Primary(); got != overlap.ClassType(a.Classification) {
			return fmt.Sprintf("pair (%s, %s): primary=%s, want %s", a.A, a.B, got, a.Classification)
		}
	case "closest_pair":
		if res.Overlap == nil || res.Overlap.ClosestPair == nil {
			return "no closest pair in overlap report"
		}
		cp := res.Overlap.ClosestPair
		if !samePair(cp.A, cp.B, a.A, a.B) {
			return fmt.Sprintf("closest pair is (%s, %s), want (%s, %s)", cp.A, cp.B, a.A, a.B)
		}
	case "pair_count":
		if res.Overlap == nil {
			if a.Count != 0 {
				return fmt.Sprintf("no overlap report, want %d pairs", a.Count)
			}
			return ""
		}
		if len(res.Overlap.Pairs) != a.Count {
			return fmt.Sprintf("overlap report has %d pairs, want %d", len(res.Overlap.Pairs), a.Count)
		}
	}
	return ""
}

func findPair(rep *overlap.Report, a, b string) *overlap.PairReport {
	if rep == nil {
		return nil
	}
	for i := range rep.Pairs {
		if samePair(rep.Pairs[i].Pair.A, rep.Pairs[i].Pair.B, a, b) {
			return &rep.Pairs[i]
		}
	}
	return nil
}

func samePair(gotA, gotB, wantA, wantB string) bool {
	return (gotA == wantA && gotB == wantB) || (gotA == wantB && gotB == wantA)
}
