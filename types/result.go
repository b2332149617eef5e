package types

import (
	"time"
)

// Fallback short descriptions used when a stage does not provide its own.
const (
	descExecutionFailure  = "Test execution failure"
	descExtractionFailure = "Test extraction failure"
	descExecutionWarning  = "Test execution warning"
	descExtractionWarning = "Test extraction warning"
)

// BuildResult is the outcome of building (or verifying) a test item for one
// configuration.
type BuildResult struct {
	Result        int
	ExecutionTime time.Duration // Includes time spent configuring, waiting, etc
	LogFilename   string

	ShortDesc string

	BuildExecutionTime time.Duration
	OutputDir          string
	Binary             string
}

// TestIterationResult folds one execution and its parse into a single
// per-iteration outcome. The effective result, description, and total time
// are computed once at construction.
type TestIterationResult struct {
	ExecuteResult ExecuteResult
	ParseResult   ParseResult

	Result    int
	ShortDesc string
	TotalTime time.Duration
}

// NewTestIterationResult applies the per-iteration precedence rules: an
// execution error wins, then a parse error, then an execution warning, then a
// parse warning, then the parse result itself. Total time is always the sum
// of both stage durations.
func NewTestIterationResult(executeResult ExecuteResult, parseResult ParseResult) TestIterationResult {
	totalTime := executeResult.ExecutionTime + parseResult.ExecutionTime

	result := TestIterationResult{
		ExecuteResult: executeResult,
		ParseResult:   parseResult,
		TotalTime:     totalTime,
	}

	switch {
	case executeResult.Result < 0:
		result.Result = executeResult.Result
		result.ShortDesc = orDefault(executeResult.ShortDesc, descExecutionFailure)
	case parseResult.Result < 0:
		result.Result = parseResult.Result
		result.ShortDesc = orDefault(parseResult.ShortDesc, descExtractionFailure)
	case executeResult.Result > 0:
		result.Result = executeResult.Result
		result.ShortDesc = orDefault(executeResult.ShortDesc, descExecutionWarning)
	case parseResult.Result > 0:
		result.Result = parseResult.Result
		result.ShortDesc = orDefault(parseResult.ShortDesc, descExtractionWarning)
	default:
		result.Result = parseResult.Result
		result.ShortDesc = parseResult.ShortDesc
	}

	return result
}

// TestResult aggregates the iterations executed for one configuration.
type TestResult struct {
	ExecutionTime time.Duration
	LogFilename   string

	Iterations            []TestIterationResult
	HasMultipleIterations bool

	Result      int
	ShortDesc   string
	AverageTime time.Duration
}

// NewTestResult folds all iterations into one outcome. The scan remembers the
// first error, first warning, and first success encountered; precedence is
// error > warning > success. At least one iteration is required.
func NewTestResult(
	executionTime time.Duration,
	logFilename string,
	iterations []TestIterationResult,
	hasMultipleIterations bool,
) TestResult {
	if len(iterations) == 0 {
		panic("a test result requires at least one iteration")
	}

	var averageTime time.Duration

	var errorInfo, warningInfo, successInfo *TestIterationResult

	for i := range iterations {
		iteration := &iterations[i]
		averageTime += iteration.TotalTime

		switch {
		case iteration.Result < 0 && errorInfo == nil:
			errorInfo = iteration
		case iteration.Result > 0 && warningInfo == nil:
			warningInfo = iteration
		case iteration.Result == 0 && successInfo == nil:
			successInfo = iteration
		}
	}

	averageTime /= time.Duration(len(iterations))

	result := TestResult{
		ExecutionTime:         executionTime,
		LogFilename:           logFilename,
		Iterations:            iterations,
		HasMultipleIterations: hasMultipleIterations,
		AverageTime:           averageTime,
	}

	switch {
	case errorInfo != nil:
		result.Result = errorInfo.Result
		result.ShortDesc = errorInfo.ShortDesc
	case warningInfo != nil:
		result.Result = warningInfo.Result
		result.ShortDesc = warningInfo.ShortDesc
	case successInfo != nil:
		result.Result = successInfo.Result
		result.ShortDesc = successInfo.ShortDesc
	}

	return result
}

// ConfigurationResult is one build configuration's full pipeline outcome.
type ConfigurationResult struct {
	Configuration string
	OutputDir     string
	LogFilename   string

	CompilerName              string
	TestExecutorName          string
	TestParserName            string
	CodeCoverageValidatorName string

	BuildResult    *BuildResult
	TestResult     *TestResult
	CoverageResult *CodeCoverageResult

	HasMultipleIterations bool

	Result        int
	ShortDesc     string
	AverageTime   time.Duration
	ExecutionTime time.Duration
}

// NewConfigurationResult folds the build, test, and coverage stages in that
// fixed order: the first error short-circuits, the first warning is a
// fallback, and the last success description wins. Average time uses the test
// stage's average (typical run); execution time uses its total (wall time
// incurred). A test or coverage result is only legal on top of a successful
// build.
func NewConfigurationResult(
	configuration string,
	outputDir string,
	logFilename string,
	compilerName string,
	testExecutorName string,
	testParserName string,
	codeCoverageValidatorName string,
	buildResult *BuildResult,
	testResult *TestResult,
	coverageResult *CodeCoverageResult,
	hasMultipleIterations bool,
) ConfigurationResult {
	if buildResult != nil && testResult != nil && buildResult.Result != 0 {
		panic("a test result cannot be produced from a failed build")
	}
	if buildResult != nil && coverageResult != nil && buildResult.Result != 0 {
		panic("a coverage result cannot be produced from a failed build")
	}
	if buildResult != nil && coverageResult != nil && codeCoverageValidatorName == "" {
		panic("a coverage result requires a code coverage validator")
	}

	var averageTime, totalTime time.Duration

	if buildResult != nil {
		averageTime = buildResult.ExecutionTime
		totalTime = buildResult.ExecutionTime
	}
	if testResult != nil {
		averageTime += testResult.AverageTime
		totalTime += testResult.ExecutionTime
	}
	if coverageResult != nil {
		averageTime += coverageResult.ExecutionTime
		totalTime += coverageResult.ExecutionTime
	}

	result := ConfigurationResult{
		Configuration:             configuration,
		OutputDir:                 outputDir,
		LogFilename:               logFilename,
		CompilerName:              compilerName,
		TestExecutorName:          testExecutorName,
		TestParserName:            testParserName,
		CodeCoverageValidatorName: codeCoverageValidatorName,
		BuildResult:               buildResult,
		TestResult:                testResult,
		CoverageResult:            coverageResult,
		HasMultipleIterations:     hasMultipleIterations,
		AverageTime:               averageTime,
		ExecutionTime:             totalTime,
	}

	type stageOutcome struct {
		result    int
		shortDesc string
	}

	var stages []stageOutcome
	if buildResult != nil {
		stages = append(stages, stageOutcome{buildResult.Result, buildResult.ShortDesc})
	}
	if testResult != nil {
		stages = append(stages, stageOutcome{testResult.Result, testResult.ShortDesc})
	}
	if coverageResult != nil {
		stages = append(stages, stageOutcome{coverageResult.Result, coverageResult.ShortDesc})
	}

	var warningInfo *stageOutcome
	successDesc := ""

	for i := range stages {
		stage := stages[i]

		if stage.result < 0 {
			result.Result = stage.result
			result.ShortDesc = stage.shortDesc
			return result
		}

		if stage.result > 0 && warningInfo == nil {
			warningInfo = &stages[i]
		} else if stage.result == 0 {
			successDesc = stage.shortDesc
		}
	}

	if warningInfo != nil {
		result.Result = warningInfo.result
		result.ShortDesc = warningInfo.shortDesc
		return result
	}

	result.ShortDesc = successDesc
	return result
}

// Result is the top-level outcome for one test item across configurations.
type Result struct {
	TestItem  string
	OutputDir string

	Debug   *ConfigurationResult
	Release *ConfigurationResult
}

// Result returns the most severe outcome across configurations: an error
// overrides anything already recorded, while a warning only replaces success.
func (r *Result) Result() int {
	result := 0

	for _, configResult := range []*ConfigurationResult{r.Debug, r.Release} {
		if configResult == nil {
			continue
		}

		if configResult.Result < 0 && result >= 0 {
			result = configResult.Result
		} else if configResult.Result > 0 && result == 0 {
			result = configResult.Result
		}
	}

	return result
}

// ShortDesc returns the short description of the configuration that
// determined the top-level result.
func (r *Result) ShortDesc() string {
	result := r.Result()

	for _, configResult := range []*ConfigurationResult{r.Debug, r.Release} {
		if configResult != nil && configResult.Result == result {
			return configResult.ShortDesc
		}
	}

	return ""
}

func orDefault(value string, defaultValue string) string {
	if value != "" {
		return value
	}
	return defaultValue
}
