package plugin

import (
	"io"

	"github.com/devkit-infra/tester/types"
)

// TestExecutor runs a built artifact and returns raw timing/exit data,
// optionally extracting code coverage as a side channel. It is the only
// capability permitted to run compiled artifacts.
type TestExecutor interface {
	Name() string
	Description() string
	ValidateEnvironment() string
	CommandLineOptions() []OptionSpec

	// IsSupportedCompiler reports whether this executor can run artifacts
	// produced by the given verifier.
	IsSupportedCompiler(verifier Verifier) bool

	// IsCodeCoverageExecutor reports whether Execute additionally extracts
	// coverage data.
	IsCodeCoverageExecutor() bool

	// GetNumSteps returns the number of execution steps for progress sizing,
	// or 0 when unknown.
	GetNumSteps(verifier Verifier, ctx Context) int

	// Execute runs the command line, writing log output to w. The returned
	// string is the raw output to be handed to a TestParser; it is also
	// persisted by the orchestrator. Failures are surfaced through the
	// ExecuteResult, never as a panic.
	Execute(verifier Verifier, ctx Context, commandLine string, w io.Writer, progress ProgressFunc) (types.ExecuteResult, string)
}

// BaseExecutor supplies the defaults for the optional TestExecutor methods.
type BaseExecutor struct {
	base
	isCodeCoverageExecutor bool
}

// NewBaseExecutor returns the embeddable defaults for a test executor.
func NewBaseExecutor(name string, description string, isCodeCoverageExecutor bool) BaseExecutor {
	return BaseExecutor{
		base:                   base{name: name, description: description},
		isCodeCoverageExecutor: isCodeCoverageExecutor,
	}
}

func (e BaseExecutor) IsCodeCoverageExecutor() bool { return e.isCodeCoverageExecutor }

func (BaseExecutor) IsSupportedCompiler(verifier Verifier) bool { return true }

func (BaseExecutor) GetNumSteps(verifier Verifier, ctx Context) int { return 0 }
