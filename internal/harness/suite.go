package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

// SuiteResult summarises running every scenario of a directory.
type SuiteResult struct {
	Total    int               `json:"total"`
	Passed   int               `json:"passed"`
	Failed   int               `json:"failed"`
	Failures []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure is one failed scenario.
type ScenarioFailure struct {
	Scenario string   `json:"scenario"`
	Path     string   `json:"path"`
	Errors   []string `json:"errors"`
}

// ScenarioNotFoundError is returned when a scenario directory holds no
// scenario file.
type ScenarioNotFoundError struct {
	Dir string
}

func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("no scenario (*.yaml) found in %s", e.Dir)
}

// ScenarioPaths lists the *.yaml files of dir in name order.
func ScenarioPaths(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		if _, statErr := os.Stat(dir); statErr != nil {
			return nil, fmt.Errorf("scenario dir: %w", statErr)
		}
		return nil, &ScenarioNotFoundError{Dir: dir}
	}
	slices.Sort(paths)
	return paths, nil
}

// RunSuite loads and runs every scenario in dir. A scenario that cannot
// be loaded counts as failed.
func RunSuite(dir string) (*SuiteResult, error) {
	paths, err := ScenarioPaths(dir)
	if err != nil {
		return nil, err
	}

	suite := &SuiteResult{}
	for _, path := range paths {
		suite.Total++

		scenario, err := LoadScenario(path)
		if err != nil {
			suite.fail(filepath.Base(path), path, []string{err.Error()})
			continue
		}
		result, err := Run(scenario)
		if err != nil {
			suite.fail(scenario.Name, path, []string{err.Error()})
			continue
		}
		if !result.Pass {
			suite.fail(scenario.Name, path, result.Errors)
			continue
		}
		suite.Passed++
	}
	return suite, nil
}

func (s *SuiteResult) fail(name, path string, errs []string) {
	s.Failed++
	s.Failures = append(s.Failures, ScenarioFailure{Scenario: name, Path: path, Errors: errs})
}
