// Package standard contains the builtin capability plugins: a catch-all
// verifier, a command-line executor, a `go test -json` parser, and the
// threshold-based code coverage validator. They demonstrate the capability
// contracts and cover the common Go workflow; language-specific plugins are
// contributed by other repositories through the registry.
package standard

import (
	"io"
	"os"

	"github.com/devkit-infra/tester/plugin"
)

// Capabilities returns the builtin capability set.
func Capabilities() plugin.Capabilities {
	return plugin.Capabilities{
		Verifiers:  []plugin.Verifier{NewNoopVerifier()},
		Executors:  []plugin.TestExecutor{NewStandardExecutor()},
		Parsers:    []plugin.TestParser{NewGoTestParser()},
		Validators: []plugin.CodeCoverageValidator{NewStandardValidator(DefaultMinCoveragePercentage)},
	}
}

// NoopVerifier claims any file and performs no build work. It exists to run
// interpreted or prebuilt test items through the pipeline.
type NoopVerifier struct {
	plugin.BaseVerifier
}

// NewNoopVerifier creates the catch-all verifier.
func NewNoopVerifier() *NoopVerifier {
	return &NoopVerifier{
		BaseVerifier: plugin.NewBaseVerifier(
			"Noop",
			"Claims any file without building it; intended for test items that are executable as-is.",
		),
	}
}

// IsSupported claims any existing file.
func (v *NoopVerifier) IsSupported(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// SupportsTestItemMatching opts out of match validation: this verifier claims
// everything, so "no tests found" must not be treated as an error.
func (v *NoopVerifier) SupportsTestItemMatching() bool {
	return false
}

func (v *NoopVerifier) GetNumSteps(ctx plugin.Context) int {
	return 1
}

// Invoke has nothing to build.
func (v *NoopVerifier) Invoke(ctx plugin.Context, w io.Writer, progress plugin.ProgressFunc) (int, string) {
	progress(0, "Verifying...")
	return 0, ""
}
