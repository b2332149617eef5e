package plugin

import (
	"github.com/devkit-infra/tester/types"
)

// TestParser interprets raw execution output into structured pass/fail,
// subtest, and benchmark data. It is the only capability permitted to turn
// raw text and exit codes into results.
type TestParser interface {
	Name() string
	Description() string
	ValidateEnvironment() string
	CommandLineOptions() []OptionSpec

	// IsSupportedCompiler reports whether the verifier produces output this
	// parser can consume.
	IsSupportedCompiler(verifier Verifier) bool

	// IsSupportedTestItem reports whether the parser recognizes the item,
	// typically by extension or content sniffing.
	IsSupportedTestItem(path string) bool

	// GetNumSteps returns the number of parse steps for progress sizing, or
	// 0 when unknown.
	GetNumSteps(commandLine string, verifier Verifier, ctx Context) int

	// CreateInvokeCommandLine returns the command line used to invoke the
	// test execution engine for the given context.
	CreateInvokeCommandLine(verifier Verifier, ctx Context, debugOnError bool) (string, error)

	// Parse interprets raw output. Format mismatches are surfaced as a
	// negative ParseResult, never as a panic.
	Parse(verifier Verifier, ctx Context, output string, progress ProgressFunc) types.ParseResult

	// RemoveTemporaryArtifacts cleans up anything the test run left behind.
	RemoveTemporaryArtifacts(ctx Context)
}

// BaseParser supplies the defaults for the optional TestParser methods.
type BaseParser struct {
	base
}

// NewBaseParser returns the embeddable defaults for a test parser.
func NewBaseParser(name string, description string) BaseParser {
	return BaseParser{base{name: name, description: description}}
}

func (BaseParser) IsSupportedCompiler(verifier Verifier) bool { return true }

func (BaseParser) GetNumSteps(commandLine string, verifier Verifier, ctx Context) int { return 0 }

// CreateInvokeCommandLine extracts the single input from the context, or the
// first of multiple atomic inputs.
func (p BaseParser) CreateInvokeCommandLine(verifier Verifier, ctx Context, debugOnError bool) (string, error) {
	if input, ok := ctx.SingleInput(); ok {
		return input, nil
	}

	if inputs, ok := ctx.AtomicInputs(); ok && len(inputs) > 0 {
		return inputs[0], nil
	}

	return "", &UnknownInputError{ParserName: p.Name()}
}

func (BaseParser) RemoveTemporaryArtifacts(ctx Context) {}
