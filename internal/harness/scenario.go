package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Pipeline names a diagnostic pipeline a scenario may run.
const (
	PipelineWitness     = "witness"
	PipelineFeasibility = "feasibility"
	PipelineOverlap     = "overlap"
)

// Scenario defines one conformance test.
type Scenario struct {
	// Name uniquely identifies this scenario; it doubles as the golden
	// file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description,omitempty"`

	// Definitions holds inline CUE definition source.
	Definitions string `yaml:"definitions"`

	// Seed drives the context generator. The same seed always produces
	// the same pool.
	Seed int64 `yaml:"seed"`

	// Samples sizes the context pool for feasibility and overlap runs.
	// Zero means 200.
	Samples int `yaml:"samples,omitempty"`

	// MaxIterations caps witness searches. Zero uses the search default.
	MaxIterations int `yaml:"max_iterations,omitempty"`

	// Pipelines lists which diagnostics to run. Empty means all.
	Pipelines []string `yaml:"pipelines,omitempty"`

	// Expressions restricts witness/feasibility runs to the named
	// expression ids. Empty means every compiled expression.
	Expressions []string `yaml:"expressions,omitempty"`

	// Assertions validate the outcome.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion is one expected property of a scenario outcome.
// Supported types: witness_found, feasibility_class, overlap_primary,
// closest_pair, pair_count.
type Assertion struct {
	Type string `yaml:"type"`

	// Expression scopes witness_found and feasibility_class.
	Expression string `yaml:"expression,omitempty"`

	// Found is the expected witness outcome for witness_found.
	Found *bool `yaml:"found,omitempty"`

	// Clause indexes into an expression's extracted clauses for
	// feasibility_class.
	Clause int `yaml:"clause,omitempty"`

	// Classification is the expected feasibility classification or
	// overlap category, depending on the assertion type.
	Classification string `yaml:"classification,omitempty"`

	// A and B name the prototype pair for overlap_primary and
	// closest_pair.
	A string `yaml:"a,omitempty"`
	B string `yaml:"b,omitempty"`

	// Count is the expected surviving pair count for pair_count.
	Count int `yaml:"count,omitempty"`
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return &s, nil
}

// LoadScenarioDir loads every *.yaml scenario under dir, sorted by path
// for deterministic test ordering.
func LoadScenarioDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var scenarios []*Scenario
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

func (s *Scenario) validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Definitions == "" {
		return fmt.Errorf("definitions are required")
	}
	for _, p := range s.Pipelines {
		switch p {
		case PipelineWitness, PipelineFeasibility, PipelineOverlap:
		default:
			return fmt.Errorf("unknown pipeline %q", p)
		}
	}
	for i, a := range s.Assertions {
		switch a.Type {
		case "witness_found":
			if a.Expression == "" || a.Found == nil {
				return fmt.Errorf("assertions[%d]: witness_found needs expression and found", i)
			}
		case "feasibility_class":
			if a.Expression == "" || a.Classification == "" {
				return fmt.Errorf("assertions[%d]: feasibility_class needs expression and classification", i)
			}
		case "overlap_primary":
			if a.A == "" || a.B == "" || a.Classification == "" {
				return fmt.Errorf("assertions[%d]: overlap_primary needs a, b and classification", i)
			}
		case "closest_pair":
			if a.A == "" || a.B == "" {
				return fmt.Errorf("assertions[%d]: closest_pair needs a and b", i)
			}
		case "pair_count":
		default:
			return fmt.Errorf("assertions[%d]: unknown type %q", i, a.Type)
		}
	}
	return nil
}

// runs reports whether the scenario includes the named pipeline.
func (s *Scenario) runs(pipeline string) bool {
	if len(s.Pipelines) == 0 {
		return true
	}
	for _, p := range s.Pipelines {
		if p == pipeline {
			return true
		}
	}
	return false
}
