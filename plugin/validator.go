package plugin

import (
	"github.com/ethereum/go-ethereum/log"

	"github.com/devkit-infra/tester/types"
)

// CodeCoverageValidator compares a measured coverage percentage against a
// threshold. Configuration (such as the default minimum) is supplied at
// construction and immutable thereafter.
type CodeCoverageValidator interface {
	Name() string
	Description() string
	ValidateEnvironment() string
	CommandLineOptions() []OptionSpec

	// Validate compares measured coverage for the given filename against the
	// effective minimum. The filename's ancestor directories may carry
	// scoped overrides of the threshold.
	Validate(logger log.Logger, filename string, measuredCoverage float64) types.CodeCoverageResult
}

// BaseValidator supplies the shared capability surface for a validator.
type BaseValidator struct {
	base
}

// NewBaseValidator returns the embeddable defaults for a coverage validator.
func NewBaseValidator(name string, description string) BaseValidator {
	return BaseValidator{base{name: name, description: description}}
}
