// Package tester wires the plugin registry, the test runner, and the result
// reporting together into a runnable service.
package tester

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/devkit-infra/tester/exitcodes"
	"github.com/devkit-infra/tester/logging"
	"github.com/devkit-infra/tester/plugins/standard"
	"github.com/devkit-infra/tester/registry"
	"github.com/devkit-infra/tester/reporting"
	"github.com/devkit-infra/tester/runner"
	"github.com/devkit-infra/tester/types"
)

// Tester discovers test items through the registered capabilities, processes
// them, and reports the results.
type Tester struct {
	ctx     context.Context
	config  *Config
	version string

	registry     *registry.Registry
	capabilities *registry.CapabilitySet
	fileLogger   *logging.FileLogger
	runner       runner.TestRunner

	results  []types.Result
	duration time.Duration

	running atomic.Bool

	shutdownCallback func(error) // Callback to signal application shutdown
}

func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*Tester, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debug("Creating tester with config",
		"inputs", config.Inputs,
		"pluginsEnvVar", config.PluginsEnvVar,
		"executor", config.ExecutorName,
		"codeCoverage", config.CodeCoverage,
		"iterations", config.Iterations,
		"logDir", config.LogDir)

	reg := registry.New(registry.Config{Log: config.Log})

	capabilities, err := LoadCapabilities(reg, config.PluginsEnvVar)
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	fileLogger, err := logging.NewFileLogger(config.LogDir, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to create file logger: %w", err)
	}

	validatorName := ""
	if config.CodeCoverage {
		validatorName = config.ValidatorName
	}

	testRunner, err := runner.NewTestRunner(runner.Config{
		Capabilities:              capabilities,
		Inputs:                    config.Inputs,
		ExecutorName:              config.ExecutorName,
		ValidatorName:             validatorName,
		Metadata:                  config.Metadata,
		Log:                       config.Log,
		FileLogger:                fileLogger,
		Iterations:                config.Iterations,
		ContinueIterationsOnError: config.ContinueIterationsOnError,
		DebugOnly:                 config.DebugOnly,
		ReleaseOnly:               config.ReleaseOnly,
		BuildOnly:                 config.BuildOnly,
		Concurrency:               config.Concurrency,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create test runner: %w", err)
	}
	config.Log.Info("tester.New: created registry and test runner", "run_id", runID)

	return &Tester{
		ctx:              ctx,
		config:           config,
		version:          version,
		registry:         reg,
		capabilities:     capabilities,
		fileLogger:       fileLogger,
		runner:           testRunner,
		shutdownCallback: shutdownCallback,
	}, nil
}

// LoadCapabilities builds the capability set from the builtin capabilities
// plus every plugin listed by the indirection environment variable. An unset
// variable means no plugins are loaded; a set variable that cannot be
// resolved is an error.
func LoadCapabilities(reg *registry.Registry, envVarName string) (*registry.CapabilitySet, error) {
	capabilities := registry.NewCapabilitySet()
	if err := capabilities.Add(standard.Capabilities()); err != nil {
		return nil, fmt.Errorf("failed to add builtin capabilities: %w", err)
	}

	plugins, err := reg.Enumerate(envVarName)
	if err != nil {
		var configErr *registry.ConfigurationError
		if errors.As(err, &configErr) && configErr.Path == "" {
			return capabilities, nil
		}
		return nil, fmt.Errorf("failed to enumerate plugins: %w", err)
	}

	if err := capabilities.AddPlugins(plugins); err != nil {
		return nil, fmt.Errorf("failed to add plugin capabilities: %w", err)
	}
	return capabilities, nil
}

// Start runs the test items once and reports the results.
func (t *Tester) Start(ctx context.Context) error {
	// Set up panic recovery to ensure we exit with code 2 for runtime errors
	defer func() {
		if r := recover(); r != nil {
			t.config.Log.Error("Runtime error occurred", "error", r)
			os.Exit(exitcodes.RuntimeErr)
		}
	}()

	t.ctx = ctx
	t.running.Store(true)
	defer t.running.Store(false)

	t.config.Log.Info("Starting tester", "version", t.version, "run_id", t.fileLogger.RunID())

	if err := t.runTests(ctx); err != nil {
		t.config.Log.Error("Runtime error running tests", "error", err)
		return NewRuntimeError(err)
	}

	if failed := countFailures(t.results); failed > 0 {
		t.config.Log.Warn("Test run completed with failures", "failed", failed, "total", len(t.results))
		return NewTestFailureError(failed, len(t.results))
	}

	t.config.Log.Info("All test items passed", "items", len(t.results))

	go func() {
		t.shutdownCallback(nil)
	}()
	return nil
}

// Stop stops the tester service.
func (t *Tester) Stop(ctx context.Context) error {
	t.config.Log.Info("Stopping tester")
	t.running.Store(false)
	return nil
}

// Stopped returns true if the tester service is stopped.
func (t *Tester) Stopped() bool {
	return !t.running.Load()
}

// runTests runs all tests and processes the results
func (t *Tester) runTests(ctx context.Context) error {
	t.config.Log.Info("Running all tests...")
	start := time.Now()

	results, err := t.runner.RunAllTests(ctx)
	if err != nil {
		return err
	}
	t.results = results
	t.duration = time.Since(start)

	formatter := reporting.NewConsoleResultFormatter(t.config.Log)
	if err := formatter.FormatResults(results, t.duration); err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}

	if err := t.writeReports(ctx, results); err != nil {
		return err
	}

	t.config.Log.Info("Test run completed",
		"run_id", t.fileLogger.RunID(),
		"items", len(results),
		"failed", countFailures(results),
		"duration", t.duration)
	return nil
}

// writeReports emits the optional report artifacts. Benchmarks are only
// written for fully successful runs so that a failing run cannot publish
// misleading timings.
func (t *Tester) writeReports(ctx context.Context, results []types.Result) error {
	g, _ := errgroup.WithContext(ctx)

	if t.config.JUnitXML != "" {
		filename := t.reportPath(t.config.JUnitXML)
		g.Go(func() error {
			hostname, err := os.Hostname()
			if err != nil {
				hostname = "localhost"
			}
			if err := reporting.WriteJUnitXML(filename, results, hostname, time.Now()); err != nil {
				return fmt.Errorf("failed to write JUnit XML report: %w", err)
			}
			t.config.Log.Info("Wrote JUnit XML report", "path", filename)
			return nil
		})
	}

	if t.config.Benchmarks != "" && countFailures(results) == 0 {
		filename := t.reportPath(t.config.Benchmarks)
		g.Go(func() error {
			if err := reporting.WriteBenchmarks(filename, results); err != nil {
				return fmt.Errorf("failed to write benchmarks: %w", err)
			}
			t.config.Log.Info("Wrote benchmarks", "path", filename)
			return nil
		})
	}

	return g.Wait()
}

// reportPath resolves a report filename relative to the run directory.
func (t *Tester) reportPath(filename string) string {
	if filepath.IsAbs(filename) {
		return filename
	}
	return filepath.Join(t.fileLogger.LogDir(), filename)
}

// RunID returns the identifier of this tester's run.
func (t *Tester) RunID() string {
	return t.fileLogger.RunID()
}

// Results returns the results of the most recent run.
func (t *Tester) Results() []types.Result {
	return t.results
}

// Capabilities exposes the loaded capability set.
func (t *Tester) Capabilities() *registry.CapabilitySet {
	return t.capabilities
}

func countFailures(results []types.Result) int {
	failed := 0
	for _, result := range results {
		if result.Result() < 0 {
			failed++
		}
	}
	return failed
}
