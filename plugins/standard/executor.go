package standard

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/devkit-infra/tester/plugin"
	"github.com/devkit-infra/tester/types"
)

// StandardExecutor invokes the command line it is given as an OS process and
// reports the exit code. It does not extract code coverage information.
type StandardExecutor struct {
	plugin.BaseExecutor
}

// NewStandardExecutor creates the command-line executor.
func NewStandardExecutor() *StandardExecutor {
	return &StandardExecutor{
		BaseExecutor: plugin.NewBaseExecutor(
			"Standard",
			"Executes the test without extracting code coverage information.",
			false,
		),
	}
}

func (e *StandardExecutor) GetNumSteps(verifier plugin.Verifier, ctx plugin.Context) int {
	return 1
}

// Execute runs the command line through the shell, mirroring output to w.
// Failures surface as a negative result, never as an error.
func (e *StandardExecutor) Execute(
	verifier plugin.Verifier,
	ctx plugin.Context,
	commandLine string,
	w io.Writer,
	progress plugin.ProgressFunc,
) (types.ExecuteResult, string) {
	progress(0, "Executing...")

	start := time.Now()

	cmd := exec.Command("/bin/sh", "-c", commandLine)
	output, err := cmd.CombinedOutput()

	result := 0
	shortDesc := ""

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result = exitErr.ExitCode()
			// The sign convention treats positive results as warnings;
			// a non-zero process exit is always an error.
			if result > 0 {
				result = -result
			}
		} else {
			result = -1
			shortDesc = fmt.Sprintf("failed to invoke '%s'", commandLine)
		}
	}

	if w != nil {
		_, _ = w.Write(output)
	}

	return types.NewExecuteResult(result, time.Since(start), shortDesc, nil), string(output)
}
