package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/mxyns/ietf-rfc-dep/internal/engine"
	"github.com/mxyns/ietf-rfc-dep/internal/store"
)

// Snapshot captures everything a scenario execution observably did.
// It is serialised as canonical JSON for deterministic comparison.
type Snapshot struct {
	ScenarioName  string                `json:"scenario_name"`
	Steps         []StepRecord          `json:"steps"`
	Notifications []engine.Notification `json:"notifications"`
	Runs          []RunRecord           `json:"runs"`
	Documents     []DocumentRecord      `json:"documents"`
	FetchCounts   map[string]int        `json:"fetch_counts"`
}

// NewSnapshot builds the snapshot of result.
func NewSnapshot(name string, result *Result) Snapshot {
	return Snapshot{
		ScenarioName:  name,
		Steps:         result.Steps,
		Notifications: result.Notifications,
		Runs:          result.Runs,
		Documents:     result.Documents,
		FetchCounts:   result.FetchCounts,
	}
}

// Marshal returns the canonical JSON bytes of the snapshot.
func (s Snapshot) Marshal() ([]byte, error) {
	return store.MarshalCanonical(s)
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := NewSnapshot(scenarioName, result).Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
