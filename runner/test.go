package runner

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/devkit-infra/tester/logging"
	"github.com/devkit-infra/tester/types"
)

// Fixed stages of every iteration, in addition to the executor and parser
// supplied step counts.
const (
	iterationStepExecuting = iota
	iterationStepRemovingArtifacts
	iterationStepParsing
	numIterationSteps
)

// runTest performs the test stage for one configuration: N iterations of
// execute plus parse, followed by at most one coverage validation.
func (r *runner) runTest(ctx context.Context, t *task) error {
	testStart := time.Now()

	testLogFilename := logging.TestLogPath(t.ctx.outputDir)
	f, err := os.Create(testLogFilename)
	if err != nil {
		return fmt.Errorf("failed to create test log %q: %w", testLogFilename, err)
	}
	defer f.Close()

	find := t.item.find
	pluginContext := t.ctx.pluginContext
	if pluginContext == nil {
		return fmt.Errorf("test stage reached without a verifier context for %q", find.Path)
	}

	commandLine, err := find.TestParser.CreateInvokeCommandLine(find.Verifier, pluginContext, false)
	if err != nil {
		// Typically an UnknownInputError; fatal for this item.
		return err
	}

	fmt.Fprintf(f, "Command line: %s\n\n", commandLine)

	numExecutorSteps := r.executor.GetNumSteps(find.Verifier, pluginContext)
	numParserSteps := find.TestParser.GetNumSteps(commandLine, find.Verifier, pluginContext)

	stepsPerIteration := numIterationSteps + numExecutorSteps + numParserSteps

	numSteps := stepsPerIteration * r.iterations
	if r.validator != nil {
		numSteps++
	}

	progress := r.progressFor(ctx, t.ctx.displayName, numSteps)

	iterationStatus := func(iteration int, status string) string {
		if r.iterations == 1 {
			return status
		}
		return fmt.Sprintf("Iteration #%d: %s", iteration+1, status)
	}
	executorProgress := func(iteration int) func(step int, status string) bool {
		return func(step int, status string) bool {
			return progress(iteration*stepsPerIteration+step+1, iterationStatus(iteration, status))
		}
	}
	parserProgress := func(iteration int) func(step int, status string) bool {
		return func(step int, status string) bool {
			return progress(iteration*stepsPerIteration+numIterationSteps+numExecutorSteps+step+1, iterationStatus(iteration, status))
		}
	}

	var iterations []types.TestIterationResult

	for iteration := 0; iteration < r.iterations; iteration++ {
		executorProgress(iteration)(iterationStepExecuting, "Testing...")

		executeResult, executeOutput := r.executor.Execute(
			find.Verifier,
			pluginContext,
			commandLine,
			f,
			executorProgress(iteration),
		)

		executorProgress(iteration)(iterationStepRemovingArtifacts, "Removing temporary artifacts...")
		find.TestParser.RemoveTemporaryArtifacts(pluginContext)

		executionLogFilename := logging.ExecutionLogPath(t.ctx.outputDir, iteration, r.iterations)
		if writeErr := os.WriteFile(executionLogFilename, []byte(executeOutput), 0644); writeErr != nil {
			r.log.Error("Failed to write execution log", "file", executionLogFilename, "error", writeErr)
		}

		executeResult.ShortDesc = prefixName(r.executor.Name(), executeResult.ShortDesc)

		fmt.Fprintf(f, "Test execution for iteration #%d:  %5d (%s) -> %s\n",
			iteration+1, executeResult.Result, executeResult.ShortDesc, executionLogFilename)

		executorProgress(iteration)(iterationStepParsing, "Parsing results...")

		parseResult := find.TestParser.Parse(
			find.Verifier,
			pluginContext,
			executeOutput,
			parserProgress(iteration),
		)
		parseResult.ShortDesc = prefixName(find.TestParser.Name(), parseResult.ShortDesc)

		fmt.Fprintf(f, "Test extraction for iteration #%d: %5d (%s)\n\n",
			iteration+1, parseResult.Result, parseResult.ShortDesc)

		iterations = append(iterations, types.NewTestIterationResult(executeResult, parseResult))

		if iterations[len(iterations)-1].Result < 0 && !r.continueIterationsOnError {
			break
		}
	}

	testResult := types.NewTestResult(time.Since(testStart), testLogFilename, iterations, r.iterations != 1)
	t.ctx.testResult = &testResult

	r.validateCoverage(t, f, iterations, progress, stepsPerIteration)

	return nil
}

// validateCoverage runs the coverage validator at most once per
// configuration, against the first iteration's extraction. Whether and how
// coverage is merged across iterations is owned by the executor, not the
// orchestrator.
func (r *runner) validateCoverage(
	t *task,
	f *os.File,
	iterations []types.TestIterationResult,
	progress func(step int, status string) bool,
	stepsPerIteration int,
) {
	if r.validator == nil || len(iterations) == 0 {
		return
	}

	coverage := iterations[0].ExecuteResult.Coverage
	if coverage == nil || coverage.Percentage == nil {
		return
	}
	if t.ctx.buildResult == nil || t.ctx.buildResult.Binary == "" {
		return
	}

	progress(stepsPerIteration*r.iterations+1, "Validating code coverage...")

	coverageResult := r.validator.Validate(r.log, t.ctx.buildResult.Binary, *coverage.Percentage)
	coverageResult.ShortDesc = prefixName(r.validator.Name(), coverageResult.ShortDesc)

	fmt.Fprintf(f, "Code coverage validation: %5d (%s)\n", coverageResult.Result, coverageResult.ShortDesc)

	t.ctx.coverageResult = &coverageResult
}
