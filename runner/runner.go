package runner

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/devkit-infra/tester/logging"
	"github.com/devkit-infra/tester/metrics"
	"github.com/devkit-infra/tester/plugin"
	"github.com/devkit-infra/tester/registry"
	"github.com/devkit-infra/tester/types"
)

// CatastrophicTaskFailureResult marks a test item whose processing was
// aborted by a capability contract violation. Sibling items are unaffected.
const CatastrophicTaskFailureResult = -123456789

// Configuration names. Compilers run both; verify-in-place capabilities run
// Debug only.
const (
	ConfigurationDebug   = "Debug"
	ConfigurationRelease = "Release"
)

// ProgressFunc receives orchestrator progress for one test item
// configuration. Step indices increase monotonically per configuration.
// Returning false requests cooperative cancellation, honored at the next
// step boundary.
type ProgressFunc func(displayName string, step int, numSteps int, status string) bool

// TestRunner drives discovered test items through build, execution, parsing,
// and coverage validation.
type TestRunner interface {
	// Discover walks the configured inputs and matches each test item with
	// exactly one verifier and a test parser.
	Discover(ctx context.Context) ([]plugin.FindResult, error)

	// RunAllTests discovers and processes every enabled test item,
	// returning one result per item.
	RunAllTests(ctx context.Context) ([]types.Result, error)

	// RunTestItem processes a single, already discovered test item.
	RunTestItem(ctx context.Context, find plugin.FindResult) (types.Result, error)
}

// runner implements TestRunner.
type runner struct {
	capabilities *registry.CapabilitySet
	executor     plugin.TestExecutor
	validator    plugin.CodeCoverageValidator // nil when coverage validation is disabled

	inputs   []string
	metadata plugin.Context

	log        log.Logger
	runID      string
	fileLogger *logging.FileLogger
	tracer     trace.Tracer

	iterations                int
	continueIterationsOnError bool
	debugOnly                 bool
	releaseOnly               bool
	buildOnly                 bool
	concurrency               int

	onProgress ProgressFunc
}

// Config holds configuration for creating a new runner.
type Config struct {
	Capabilities *registry.CapabilitySet
	Inputs       []string

	ExecutorName  string
	ValidatorName string // empty disables coverage validation

	// Metadata is merged into every verifier context, typically the parsed
	// capability command-line options.
	Metadata plugin.Context

	Log        log.Logger
	FileLogger *logging.FileLogger

	Iterations                int
	ContinueIterationsOnError bool
	DebugOnly                 bool
	ReleaseOnly               bool
	BuildOnly                 bool
	Concurrency               int

	OnProgress ProgressFunc
}

// NewTestRunner creates a new test runner instance.
func NewTestRunner(cfg Config) (TestRunner, error) {
	if cfg.Capabilities == nil {
		return nil, fmt.Errorf("capability set is required")
	}
	if len(cfg.Inputs) == 0 {
		return nil, fmt.Errorf("at least one input is required")
	}
	if cfg.FileLogger == nil {
		return nil, fmt.Errorf("file logger is required")
	}
	if cfg.DebugOnly && cfg.ReleaseOnly {
		return nil, fmt.Errorf("debug only and release only are mutually exclusive")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}

	executor, ok := cfg.Capabilities.Executor(cfg.ExecutorName)
	if !ok {
		return nil, fmt.Errorf("unknown test executor %q", cfg.ExecutorName)
	}
	if reason := executor.ValidateEnvironment(); reason != "" {
		return nil, fmt.Errorf("the test executor %q does not support the current environment: %s", executor.Name(), reason)
	}

	var validator plugin.CodeCoverageValidator
	if cfg.ValidatorName != "" {
		validator, ok = cfg.Capabilities.Validator(cfg.ValidatorName)
		if !ok {
			return nil, fmt.Errorf("unknown code coverage validator %q", cfg.ValidatorName)
		}
		if reason := validator.ValidateEnvironment(); reason != "" {
			return nil, fmt.Errorf("the code coverage validator %q does not support the current environment: %s", validator.Name(), reason)
		}
	}

	if cfg.Iterations < 1 {
		cfg.Iterations = 1
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = runtime.NumCPU()
	}

	return &runner{
		capabilities:              cfg.Capabilities,
		executor:                  executor,
		validator:                 validator,
		inputs:                    cfg.Inputs,
		metadata:                  cfg.Metadata,
		log:                       cfg.Log.New("component", "runner"),
		runID:                     cfg.FileLogger.RunID(),
		fileLogger:                cfg.FileLogger,
		tracer:                    otel.Tracer("tester/runner"),
		iterations:                cfg.Iterations,
		continueIterationsOnError: cfg.ContinueIterationsOnError,
		debugOnly:                 cfg.DebugOnly,
		releaseOnly:               cfg.ReleaseOnly,
		buildOnly:                 cfg.BuildOnly,
		concurrency:               cfg.Concurrency,
		onProgress:                cfg.OnProgress,
	}, nil
}

// RunAllTests discovers test items and processes each enabled one through
// the full pipeline.
func (r *runner) RunAllTests(ctx context.Context) ([]types.Result, error) {
	start := time.Now()

	ctx, span := r.tracer.Start(ctx, "run all tests")
	defer span.End()

	r.log.Info("Starting test run", "runID", r.runID, "inputs", len(r.inputs))

	finds, err := r.Discover(ctx)
	if err != nil {
		metrics.RecordErrorDetails("runner.discover", err)
		return nil, err
	}

	items, err := r.prepareWorkItems(finds)
	if err != nil {
		metrics.RecordErrorDetails("runner.prepare", err)
		return nil, err
	}
	if len(items) == 0 {
		r.log.Info("No test items to process")
		return nil, nil
	}

	r.runStages(ctx, items)

	results := make([]types.Result, 0, len(items))
	for _, item := range items {
		results = append(results, r.assembleResult(item))
	}

	r.recordRun(results, time.Since(start))

	if err := r.writeManifest(items, results, start); err != nil {
		r.log.Error("Failed to write run manifest", "error", err)
		metrics.RecordErrorDetails("runner.manifest", err)
	}

	return results, nil
}

// RunTestItem processes one already discovered test item.
func (r *runner) RunTestItem(ctx context.Context, find plugin.FindResult) (types.Result, error) {
	if !find.IsEnabled {
		return types.Result{}, fmt.Errorf("test item %q is disabled", find.Path)
	}

	items, err := r.prepareWorkItems([]plugin.FindResult{find})
	if err != nil {
		return types.Result{}, err
	}
	if len(items) == 0 {
		return types.Result{}, fmt.Errorf("no runnable configuration for test item %q", find.Path)
	}

	r.runStages(ctx, items)

	return r.assembleResult(items[0]), nil
}

// runStages processes the build stage for every work item, then the test
// stage for every configuration that built cleanly.
func (r *runner) runStages(ctx context.Context, items []*workItem) {
	buildTasks := tasksFor(items, func(c *workContext) bool { return true })
	r.executeTasks(ctx, "Building", buildTasks, r.runBuild, commitBuildPanic)

	if r.buildOnly {
		return
	}

	testTasks := tasksFor(items, func(c *workContext) bool { return !c.hasErrors() })
	r.executeTasks(ctx, "Testing", testTasks, r.runTest, commitTestPanic)
}

func (r *runner) recordRun(results []types.Result, duration time.Duration) {
	errors, warnings, successes := 0, 0, 0

	for i := range results {
		result := &results[i]

		switch value := result.Result(); {
		case value < 0:
			errors++
		case value > 0:
			warnings++
		default:
			successes++
		}

		for _, configResult := range []*types.ConfigurationResult{result.Debug, result.Release} {
			if configResult == nil {
				continue
			}
			metrics.RecordItemResult(r.runID, configResult.Configuration, configResult.Result, configResult.ExecutionTime)
		}
	}

	metrics.RecordRun(r.runID, errors, warnings, successes, duration)

	r.log.Info("Test run complete",
		"runID", r.runID,
		"items", len(results),
		"errors", errors,
		"warnings", warnings,
		"successes", successes,
		"duration", duration,
	)
}

func (r *runner) writeManifest(items []*workItem, results []types.Result, start time.Time) error {
	manifest := logging.RunManifest{
		RunID:       r.runID,
		StartedAt:   start,
		CompletedAt: time.Now(),
	}

	for i := range results {
		result := &results[i]

		entry := logging.ManifestItem{
			Path:      result.TestItem,
			Result:    result.Result(),
			ShortDesc: result.ShortDesc(),
		}

		for _, configResult := range []*types.ConfigurationResult{result.Debug, result.Release} {
			if configResult == nil {
				continue
			}
			entry.Configurations = append(entry.Configurations, logging.ManifestConfiguration{
				Name:          configResult.Configuration,
				Result:        configResult.Result,
				ShortDesc:     configResult.ShortDesc,
				ExecutionTime: configResult.ExecutionTime.String(),
			})
		}

		manifest.Items = append(manifest.Items, entry)
	}

	return r.fileLogger.WriteManifest(manifest)
}

// progressFor adapts the orchestrator-level progress callback for one
// configuration. Context cancellation is surfaced as a cancel request at the
// next step boundary.
func (r *runner) progressFor(ctx context.Context, displayName string, numSteps int) plugin.ProgressFunc {
	return func(step int, status string) bool {
		if ctx.Err() != nil {
			return false
		}
		if r.onProgress == nil {
			return true
		}
		return r.onProgress(displayName, step, numSteps, status)
	}
}

func prefixName(name string, shortDesc string) string {
	if shortDesc == "" {
		return name
	}
	return fmt.Sprintf("%s: %s", name, shortDesc)
}
