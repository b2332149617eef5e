package standard

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/yaml.v3"

	"github.com/devkit-infra/tester/plugin"
	"github.com/devkit-infra/tester/types"
)

const (
	// DefaultMinCoveragePercentage applies when no override file is found.
	DefaultMinCoveragePercentage = 0.70

	// MinCoveragePercentageFilename is the well-known name of the
	// directory-scoped override file. Its content, trimmed, must be a single
	// float in [0, 1].
	MinCoveragePercentageFilename = "MinCodeCoverage.yaml"

	// PassingPercentageOptionName is the CLI option that overrides the
	// default minimum.
	PassingPercentageOptionName = "passing-percentage"
)

// StandardValidator ensures that measured code coverage strictly exceeds a
// minimum percentage. The minimum can be overridden per directory subtree by
// a MinCodeCoverage.yaml file; the closest ancestor with a valid value wins.
type StandardValidator struct {
	plugin.BaseValidator
	minCoveragePercentage float64
}

// NewStandardValidator creates the validator with the given default minimum.
func NewStandardValidator(minCoveragePercentage float64) *StandardValidator {
	if minCoveragePercentage < 0.0 || minCoveragePercentage > 1.0 {
		panic(fmt.Sprintf("minimum coverage percentage %f is not between 0.0 and 1.0", minCoveragePercentage))
	}

	return &StandardValidator{
		BaseValidator:         plugin.NewBaseValidator("Standard", "Ensures that the measured code coverage is at least N%."),
		minCoveragePercentage: minCoveragePercentage,
	}
}

func (v *StandardValidator) CommandLineOptions() []plugin.OptionSpec {
	return []plugin.OptionSpec{
		{
			Name:  PassingPercentageOptionName,
			Kind:  plugin.OptionFloat,
			Usage: "Minimum passing code coverage percentage (0.0 - 1.0).",
		},
	}
}

// Validate walks filename's ancestor directories for an override file and
// compares the measured coverage against the effective minimum. A malformed
// or out-of-range override is ignored with a warning and the walk continues
// with the next ancestor.
func (v *StandardValidator) Validate(logger log.Logger, filename string, measuredCoverage float64) types.CodeCoverageResult {
	start := time.Now()

	minCoverage := v.minCoveragePercentage

	dir := filepath.Dir(filename)
	for {
		overrideFilename := filepath.Join(dir, MinCoveragePercentageFilename)

		if content, err := os.ReadFile(overrideFilename); err == nil {
			// An empty or null document decodes without error and must not
			// be mistaken for a 0.0 minimum.
			var value *float64
			if err := yaml.Unmarshal(content, &value); err != nil || value == nil {
				logger.Warn("The minimum code coverage percentage is not a valid float value",
					"filename", overrideFilename)
			} else if *value < 0.0 || *value > 1.0 {
				logger.Warn("The minimum code coverage percentage is not between 0.0 and 1.0",
					"filename", overrideFilename, "value", *value)
			} else {
				minCoverage = *value
				break
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return types.NewCodeCoverageResult(time.Since(start), measuredCoverage, minCoverage)
}
