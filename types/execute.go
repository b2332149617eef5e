package types

import (
	"fmt"
	"os"
	"time"
)

// CoverageResult captures code coverage data extracted as a side channel of a
// test execution. A zero Result requires the coverage payload to be complete
// and the data file to exist; a non-zero Result requires it to be absent.
type CoverageResult struct {
	Result        int
	ExecutionTime time.Duration
	ShortDesc     string

	DataFilename string
	Percentage   *float64

	// Percentages holds optional per-component percentages with an optional
	// short description each.
	Percentages map[string]ComponentCoverage
}

// ComponentCoverage is one entry in CoverageResult.Percentages.
type ComponentCoverage struct {
	Percentage float64
	ShortDesc  string
}

// NewCoverageResult validates and returns a coverage extraction result.
// Violations of the completeness invariant are contract violations on the
// part of the executor plugin and panic.
func NewCoverageResult(
	result int,
	executionTime time.Duration,
	shortDesc string,
	dataFilename string,
	percentage *float64,
	percentages map[string]ComponentCoverage,
) CoverageResult {
	if result == 0 {
		if dataFilename == "" {
			panic("coverage result is successful but no coverage data filename was provided")
		}
		if _, err := os.Stat(dataFilename); err != nil {
			panic(fmt.Sprintf("coverage data filename '%s' does not exist", dataFilename))
		}
		if percentage == nil {
			panic("coverage result is successful but no coverage percentage was provided")
		}
		mustBeValidPercentage(*percentage)
		for name, component := range percentages {
			if !isValidPercentage(component.Percentage) {
				panic(fmt.Sprintf("coverage percentage for '%s' is not between 0.0 and 1.0", name))
			}
		}
	} else {
		if dataFilename != "" || percentage != nil || percentages != nil {
			panic("coverage result failed but coverage data was provided")
		}
	}

	return CoverageResult{
		Result:        result,
		ExecutionTime: executionTime,
		ShortDesc:     shortDesc,
		DataFilename:  dataFilename,
		Percentage:    percentage,
		Percentages:   percentages,
	}
}

// ExecuteResult captures the raw outcome of a single test execution.
type ExecuteResult struct {
	Result        int
	ExecutionTime time.Duration
	ShortDesc     string
	Coverage      *CoverageResult
}

// NewExecuteResult returns an execution result. A failed coverage extraction
// promotes an otherwise successful execution to the coverage result so that a
// coverage failure can never hide behind a passing run.
func NewExecuteResult(
	result int,
	executionTime time.Duration,
	shortDesc string,
	coverage *CoverageResult,
) ExecuteResult {
	if coverage != nil && coverage.Result != 0 && result == 0 {
		result = coverage.Result
	}

	return ExecuteResult{
		Result:        result,
		ExecutionTime: executionTime,
		ShortDesc:     shortDesc,
		Coverage:      coverage,
	}
}

func isValidPercentage(value float64) bool {
	return value >= 0.0 && value <= 1.0
}

func mustBeValidPercentage(value float64) {
	if !isValidPercentage(value) {
		panic(fmt.Sprintf("percentage %f is not between 0.0 and 1.0", value))
	}
}
