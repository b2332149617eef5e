package types

import (
	"fmt"
	"time"
)

// CodeCoverageResult is the outcome of comparing a measured coverage
// percentage against a minimum threshold.
type CodeCoverageResult struct {
	ExecutionTime time.Duration

	CoveragePercentage float64
	MinimumPercentage  float64

	Result    int
	ShortDesc string
}

// NewCodeCoverageResult compares measured coverage against the effective
// minimum. Success requires the measured value to strictly exceed the
// minimum; matching the threshold exactly is a failure.
func NewCodeCoverageResult(
	executionTime time.Duration,
	coveragePercentage float64,
	minimumPercentage float64,
) CodeCoverageResult {
	mustBeValidPercentage(coveragePercentage)
	mustBeValidPercentage(minimumPercentage)

	result := 0
	comparison := ">="
	if coveragePercentage <= minimumPercentage {
		result = -1
		comparison = "<"
	}

	return CodeCoverageResult{
		ExecutionTime:      executionTime,
		CoveragePercentage: coveragePercentage,
		MinimumPercentage:  minimumPercentage,
		Result:             result,
		ShortDesc: fmt.Sprintf(
			"%.2f%% %s %.2f%%",
			coveragePercentage*100,
			comparison,
			minimumPercentage*100,
		),
	}
}
