package runner

import (
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/devkit-infra/tester/logging"
	"github.com/devkit-infra/tester/plugin"
	"github.com/devkit-infra/tester/registry"
	"github.com/devkit-infra/tester/types"
)

// stubVerifier claims files with a fixed extension.
type stubVerifier struct {
	plugin.BaseVerifier

	extension     string
	compiler      bool
	matching      bool
	envReason     string
	invokeResult  int
	invokeDesc    string
	panicOnInvoke bool
}

func newStubVerifier(name string, extension string) *stubVerifier {
	return &stubVerifier{
		BaseVerifier: plugin.NewBaseVerifier(name, "stub"),
		extension:    extension,
		matching:     true,
	}
}

func (v *stubVerifier) IsSupported(path string) bool {
	return strings.HasSuffix(path, v.extension)
}

func (v *stubVerifier) IsSupportedTestItem(path string) bool {
	return strings.HasSuffix(path, v.extension)
}

func (v *stubVerifier) SupportsTestItemMatching() bool { return v.matching }

func (v *stubVerifier) IsCompiler() bool { return v.compiler }

func (v *stubVerifier) ValidateEnvironment() string { return v.envReason }

func (v *stubVerifier) GetNumSteps(ctx plugin.Context) int { return 1 }

func (v *stubVerifier) Invoke(ctx plugin.Context, w io.Writer, progress plugin.ProgressFunc) (int, string) {
	progress(0, "building")
	fmt.Fprintln(w, "build output")
	if v.panicOnInvoke {
		panic("verifier exploded")
	}
	return v.invokeResult, v.invokeDesc
}

// stubExecutor replays a fixed sequence of execute results, repeating the
// last one when more iterations are requested.
type stubExecutor struct {
	plugin.BaseExecutor

	results []types.ExecuteResult
	output  string
	calls   int
}

func newStubExecutor(results ...types.ExecuteResult) *stubExecutor {
	if len(results) == 0 {
		results = []types.ExecuteResult{{Result: 0}}
	}
	return &stubExecutor{
		BaseExecutor: plugin.NewBaseExecutor("StubExec", "stub", false),
		results:      results,
		output:       "raw output\n",
	}
}

func (e *stubExecutor) GetNumSteps(verifier plugin.Verifier, ctx plugin.Context) int { return 1 }

func (e *stubExecutor) Execute(
	verifier plugin.Verifier,
	ctx plugin.Context,
	commandLine string,
	w io.Writer,
	progress plugin.ProgressFunc,
) (types.ExecuteResult, string) {
	progress(0, "executing")

	index := e.calls
	if index >= len(e.results) {
		index = len(e.results) - 1
	}
	e.calls++

	if w != nil {
		_, _ = io.WriteString(w, e.output)
	}
	return e.results[index], e.output
}

// stubParser recognizes the same extension as the verifier under test.
type stubParser struct {
	plugin.BaseParser

	extension    string
	result       types.ParseResult
	panicOnInput string
}

func newStubParser(name string, extension string) *stubParser {
	return &stubParser{
		BaseParser: plugin.NewBaseParser(name, "stub"),
		extension:  extension,
	}
}

func (p *stubParser) IsSupportedTestItem(path string) bool {
	return strings.HasSuffix(path, p.extension)
}

func (p *stubParser) GetNumSteps(commandLine string, verifier plugin.Verifier, ctx plugin.Context) int {
	return 1
}

func (p *stubParser) Parse(verifier plugin.Verifier, ctx plugin.Context, output string, progress plugin.ProgressFunc) types.ParseResult {
	progress(0, "parsing")
	if input, _ := ctx.SingleInput(); p.panicOnInput != "" && strings.Contains(input, p.panicOnInput) {
		panic("parser exploded")
	}
	return p.result
}

// stubValidator compares against a fixed minimum.
type stubValidator struct {
	plugin.BaseValidator

	minimum float64
}

func newStubValidator(minimum float64) *stubValidator {
	return &stubValidator{
		BaseValidator: plugin.NewBaseValidator("StubValidator", "stub"),
		minimum:       minimum,
	}
}

func (v *stubValidator) Validate(logger log.Logger, filename string, measuredCoverage float64) types.CodeCoverageResult {
	return types.NewCodeCoverageResult(0, measuredCoverage, v.minimum)
}

func newCapabilitySet(t *testing.T, capabilities plugin.Capabilities) *registry.CapabilitySet {
	t.Helper()

	set := registry.NewCapabilitySet()
	require.NoError(t, set.Add(capabilities))
	return set
}

func newFileLogger(t *testing.T) *logging.FileLogger {
	t.Helper()

	fileLogger, err := logging.NewFileLogger(t.TempDir(), "test-run")
	require.NoError(t, err)
	return fileLogger
}

func percentage(value float64) *float64 { return &value }

func coverageExtraction(pct float64, dataFile string) *types.CoverageResult {
	return &types.CoverageResult{
		Result:        0,
		ExecutionTime: time.Millisecond,
		DataFilename:  dataFile,
		Percentage:    percentage(pct),
	}
}
