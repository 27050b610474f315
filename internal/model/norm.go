package model

// Normalizer maps raw axis values into the bounded signed range [-1, 1]
// used by all scoring. Normalization is per axis group: each group declares
// a raw domain, and values are rescaled linearly with clamping at the rim.
//
// With the default symmetric -100..100 domains this reduces to v/100.
type Normalizer struct {
	domains map[AxisGroup]Domain
}

// NewNormalizer creates a normalizer over the given group domains.
// Passing nil uses DefaultDomains.
func NewNormalizer(domains map[AxisGroup]Domain) *Normalizer {
	if domains == nil {
		domains = DefaultDomains()
	}
	return &Normalizer{domains: domains}
}

// Domain returns the raw domain of a group. Unknown groups report the
// zero Domain and false.
func (n *Normalizer) Domain(g AxisGroup) (Domain, bool) {
	d, ok := n.domains[g]
	return d, ok
}

// DomainForPath returns the raw domain of the group named by an axis path.
func (n *Normalizer) DomainForPath(path string) (Domain, bool) {
	g, _, err := SplitPath(path)
	if err != nil {
		return Domain{}, false
	}
	return n.Domain(g)
}

// Normalize maps a raw value of group g into [-1, 1], clamping out-of-domain
// input to the rim rather than extrapolating.
func (n *Normalizer) Normalize(g AxisGroup, raw float64) float64 {
	d, ok := n.domains[g]
	if !ok || d.Span() <= 0 {
		return 0
	}
	v := 2*(raw-d.Min)/d.Span() - 1
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}

// NormalizePath normalizes a raw value addressed by axis path.
func (n *Normalizer) NormalizePath(path string, raw float64) float64 {
	g, _, err := SplitPath(path)
	if err != nil {
		return 0
	}
	return n.Normalize(g, raw)
}
