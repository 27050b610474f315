// Package report assembles diagnostic outputs into one serializable
// document. Serialization is canonical: identical runs produce identical
// bytes, which the golden-file harness depends on.
package report

import (
	"sync"

	"github.com/google/uuid"

	"github.com/hollis-b/affectlens/internal/feasibility"
	"github.com/hollis-b/affectlens/internal/intensity"
	"github.com/hollis-b/affectlens/internal/overlap"
	"github.com/hollis-b/affectlens/internal/search"
	"github.com/hollis-b/affectlens/internal/simulate"
	"github.com/hollis-b/affectlens/internal/vector"
)

// Diagnostic is the full output of one diagnostic run. Sections are
// optional; a run populates only the pipelines it executed. The document
// carries the seed and sample count instead of wall-clock time, so a
// rerun with the same inputs reproduces the same report apart from RunID.
type Diagnostic struct {
	RunID   string `json:"run_id"`
	Subject string `json:"subject,omitempty"`
	Seed    int64  `json:"seed"`
	Samples int    `json:"samples,omitempty"`

	Witness      *search.Result           `json:"witness,omitempty"`
	Feasibility  []feasibility.Result     `json:"feasibility,omitempty"`
	Distribution *intensity.Distribution  `json:"distribution,omitempty"`
	Simulation   *simulate.Summary        `json:"simulation,omitempty"`
	Vectors      map[string]*vector.Vector `json:"vectors,omitempty"`
	Overlap      *overlap.Report          `json:"overlap,omitempty"`
}

// Marshal renders the diagnostic as canonical JSON.
func (d *Diagnostic) Marshal() ([]byte, error) {
	return MarshalCanonical(d)
}

// MarshalPretty renders the diagnostic indented for terminals.
func (d *Diagnostic) MarshalPretty() ([]byte, error) {
	return MarshalIndented(d)
}

// TokenSource produces run tokens.
type TokenSource interface {
	Generate() string
}

// UUIDv7Source generates time-sortable UUIDv7 run tokens. Stateless and
// safe for concurrent use.
type UUIDv7Source struct{}

// Generate creates a new UUIDv7 as a hyphenated string.
func (UUIDv7Source) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedSource returns predetermined run tokens for testing, enabling
// golden-file comparison of whole reports. Safe for concurrent use.
type FixedSource struct {
	mu     sync.Mutex
	tokens []string
	idx    int
}

// NewFixedSource creates a source over a known token sequence.
func NewFixedSource(tokens ...string) *FixedSource {
	return &FixedSource{tokens: tokens}
}

// Generate returns the next token, repeating the final one when the
// sequence runs out.
func (f *FixedSource) Generate() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.tokens) == 0 {
		return ""
	}
	if f.idx >= len(f.tokens) {
		return f.tokens[len(f.tokens)-1]
	}
	tok := f.tokens[f.idx]
	f.idx++
	return tok
}
