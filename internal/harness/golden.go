package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/hollis-b/affectlens/internal/report"
)

// Snapshot is the golden-file form of a scenario outcome: the full
// numeric result plus the assertion verdict, pinned byte for byte.
type Snapshot struct {
	ScenarioName string  `json:"scenario_name"`
	Seed         int64   `json:"seed"`
	Result       *Result `json:"result"`
}

// RunWithGolden executes a scenario and compares its canonical JSON
// outcome against testdata/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) *Result {
	t.Helper()

	res, err := Run(context.Background(), scenario)
	if err != nil {
		t.Fatalf("scenario %s failed to run: %v", scenario.Name, err)
	}

	snap := Snapshot{
		ScenarioName: scenario.Name,
		Seed:         scenario.Seed,
		Result:       res,
	}
	data, err := report.MarshalIndented(snap)
	if err != nil {
		t.Fatalf("scenario %s: marshal snapshot: %v", scenario.Name, err)
	}

	g := goldie.New(t, goldie.WithFixtureDir("testdata"))
	g.Assert(t, scenario.Name, data)
	return res
}
