package harness

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// GoldenSuffix is the extension of golden snapshot files.
const GoldenSuffix = ".golden"

// ScenarioDirError is returned when a scenario directory doesn't exist.
type ScenarioDirError struct {
	Dir string
}

// Error implements the error interface.
func (e *ScenarioDirError) Error() string {
	return "scenario directory " + e.Dir + " does not exist"
}

// SuiteResult summarizes a directory of scenarios.
type SuiteResult struct {
	Total     int               `json:"total"`
	Passed    int               `json:"passed"`
	Failed    int               `json:"failed"`
	Scenarios []ScenarioOutcome `json:"scenarios"`
}

// ScenarioOutcome is the result of one scenario file.
type ScenarioOutcome struct {
	Name          string   `json:"name"`
	Path          string   `json:"path"`
	Pass          bool     `json:"pass"`
	GoldenUpdated bool     `json:"golden_updated,omitempty"`
	Errors        []string `json:"errors,omitempty"`
}

// FindScenarios lists the .yaml and .yml files under dir, in lexical order.
// A non-empty filter is a glob matched against the file name without its
// extension.
func FindScenarios(dir, filter string) ([]string, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, &ScenarioDirError{Dir: dir}
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return errors.Wrap(err, "invalid filter pattern")
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})
	return files, err
}

// GoldenPath returns the golden file of a scenario file:
// {dir}/golden/{basename}.golden.
func GoldenPath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+GoldenSuffix)
}

// RunSuite runs every scenario file.
//
// For each file:
//  1. Load and validate the scenario
//  2. Run it via Run
//  3. Compare its snapshot with the golden file, or rewrite the golden file
//     when update is set; a missing golden file is not a failure
//  4. Record pass or fail with reasons
func RunSuite(files []string, update bool, opts ...Option) *SuiteResult {
	suite := &SuiteResult{Scenarios: make([]ScenarioOutcome, 0, len(files))}

	for _, path := range files {
		outcome := runFile(path, update, opts)
		suite.Total++
		if outcome.Pass {
			suite.Passed++
		} else {
			suite.Failed++
		}
		suite.Scenarios = append(suite.Scenarios, outcome)
	}
	return suite
}

func runFile(path string, update bool, opts []Option) ScenarioOutcome {
	outcome := ScenarioOutcome{Name: filepath.Base(path), Path: path}
	failed := func(msg string) ScenarioOutcome {
		outcome.Errors = append(outcome.Errors, msg)
		return outcome
	}

	scenario, err := LoadScenario(path)
	if err != nil {
		return failed("load scenario: " + err.Error())
	}
	outcome.Name = scenario.Name

	result, err := Run(scenario, opts...)
	if err != nil {
		return failed("execution failed: " + err.Error())
	}
	outcome.Errors = append(outcome.Errors, result.Errors...)

	snapshot, err := Snapshot(scenario.Name, result)
	if err != nil {
		return failed("snapshot: " + err.Error())
	}

	goldenPath := GoldenPath(path)
	if update {
		if err := os.MkdirAll(filepath.Dir(goldenPath), 0755); err != nil {
			return failed("create golden directory: " + err.Error())
		}
		if err := os.WriteFile(goldenPath, snapshot, 0644); err != nil {
			return failed("write golden file: " + err.Error())
		}
		outcome.GoldenUpdated = true
	} else {
		golden, err := os.ReadFile(goldenPath)
		switch {
		case os.IsNotExist(err):
			// Assertions alone decide.
		case err != nil:
			return failed("read golden file: " + err.Error())
		case !bytes.Equal(golden, snapshot):
			return failed("trace does not match golden file " + goldenPath + " (run with --update to regenerate)")
		}
	}

	outcome.Pass = result.Pass
	return outcome
}
