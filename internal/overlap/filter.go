package overlap

import (
	"math"
	"sort"

	"github.com/hollis-b/affectlens/internal/model"
)

// FilterConfig holds the pruning thresholds for candidate pair selection.
type FilterConfig struct {
	// MinActiveAxisOverlap is the minimum Jaccard overlap of the two
	// prototypes' active (nonzero-weight) axis sets.
	MinActiveAxisOverlap float64

	// MinSignAgreement is the minimum fraction of shared axes whose
	// weights point the same direction.
	MinSignAgreement float64

	// MinWeightCosine is the minimum cosine similarity between the two
	// weight vectors over the union of their axes.
	MinWeightCosine float64

	// MaxCandidatePairs caps the surviving pair count; the closest pairs
	// by cosine similarity are kept.
	MaxCandidatePairs int
}

// DefaultFilterConfig returns the standard pruning thresholds.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		MinActiveAxisOverlap: 0.2,
		MinSignAgreement:     0.5,
		MinWeightCosine:      0.3,
		MaxCandidatePairs:    250,
	}
}

// PairMetrics holds the static weight-map metrics for one prototype pair.
// Nothing here requires context evaluation.
type PairMetrics struct {
	A string `json:"a"`
	B string `json:"b"`

	ActiveAxisOverlap      float64 `json:"active_axis_overlap"`
	SignAgreement          float64 `json:"sign_agreement"`
	WeightCosineSimilarity float64 `json:"weight_cosine_similarity"`
}

// RejectionCounts reports how many pairs each pruning rule removed.
// A pair is charged to the first rule it fails, in the order listed.
type RejectionCounts struct {
	AxisOverlap   int `json:"axis_overlap"`
	SignAgreement int `json:"sign_agreement"`
	WeightCosine  int `json:"weight_cosine"`
	PairCap       int `json:"pair_cap"`
}

// FilterResult is the outcome of one pruning pass.
type FilterResult struct {
	Pairs      []PairMetrics   `json:"pairs"`
	Rejected   RejectionCounts `json:"rejected"`
	TotalPairs int             `json:"total_pairs"`
}

// Filter prunes the prototype pair space on static weight metrics.
type Filter struct {
	cfg FilterConfig
}

// NewFilter creates a filter with the given thresholds. A zero-valued
// MaxCandidatePairs falls back to the default cap.
func NewFilter(cfg FilterConfig) *Filter {
	if cfg.MaxCandidatePairs <= 0 {
		cfg.MaxCandidatePairs = DefaultFilterConfig().MaxCandidatePairs
	}
	return &Filter{cfg: cfg}
}

// Select enumerates all unordered prototype pairs, computes their static
// metrics and keeps those passing every threshold, capped at
// MaxCandidatePairs. Surviving pairs are ordered by descending cosine
// similarity.
func (f *Filter) Select(prototypes []model.Prototype) FilterResult {
	var res FilterResult
	for i := 0; i < len(prototypes); i++ {
		for j := i + 1; j < len(prototypes); j++ {
			res.TotalPairs++
			m := ComparePair(prototypes[i], prototypes[j])
			switch {
			case m.ActiveAxisOverlap < f.cfg.MinActiveAxisOverlap:
				res.Rejected.AxisOverlap++
			case m.SignAgreement < f.cfg.MinSignAgreement:
				res.Rejected.SignAgreement++
			case m.WeightCosineSimilarity < f.cfg.MinWeightCosine:
				res.Rejected.WeightCosine++
			default:
				res.Pairs = append(res.Pairs, m)
			}
		}
	}

	sort.SliceStable(res.Pairs, func(a, b int) bool {
		if res.Pairs[a].WeightCosineSimilarity != res.Pairs[b].WeightCosineSimilarity {
			return res.Pairs[a].WeightCosineSimilarity > res.Pairs[b].WeightCosineSimilarity
		}
		if res.Pairs[a].A != res.Pairs[b].A {
			return res.Pairs[a].A < res.Pairs[b].A
		}
		return res.Pairs[a].B < res.Pairs[b].B
	})
	if len(res.Pairs) > f.cfg.MaxCandidatePairs {
		res.Rejected.PairCap = len(res.Pairs) - f.cfg.MaxCandidatePairs
		res.Pairs = res.Pairs[:f.cfg.MaxCandidatePairs]
	}
	return res
}

// ComparePair computes the static metrics for one prototype pair.
func ComparePair(a, b model.Prototype) PairMetrics {
	m := PairMetrics{A: a.ID, B: b.ID}

	var shared, union, agree int
	var dot, normA, normB float64
	for path, wa := range a.Weights {
		normA += wa * wa
		if wa == 0 {
			continue
		}
		union++
		wb, ok := b.Weights[path]
		if !ok || wb == 0 {
			continue
		}
		shared++
		if (wa > 0) == (wb > 0) {
			agree++
		}
	}
	for path, wb := range b.Weights {
		normB += wb * wb
		if wb == 0 {
			continue
		}
		if wa, ok := a.Weights[path]; !ok || wa == 0 {
			union++
		}
	}
	for path, wa := range a.Weights {
		if wb, ok := b.Weights[path]; ok {
			dot += wa * wb
		}
	}

	if union > 0 {
		m.ActiveAxisOverlap = float64(shared) / float64(union)
	}
	if shared > 0 {
		m.SignAgreement = float64(agree) / float64(shared)
	}
	if normA > 0 && normB > 0 {
		m.WeightCosineSimilarity = dot / (math.Sqrt(normA) * math.Sqrt(normB))
	}
	return m
}
