package tester

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/devkit-infra/tester/flags"
	capability "github.com/devkit-infra/tester/plugin"
	"github.com/ethereum/go-ethereum/log"
)

// Config holds the application configuration
type Config struct {
	Inputs        []string // Files and directories to search for test items
	PluginsEnvVar string   // Environment variable naming the plugin indirection file

	ExecutorName  string
	CodeCoverage  bool   // Validate extracted code coverage
	ValidatorName string // Code coverage validator, consulted when CodeCoverage is set

	Iterations                int
	ContinueIterationsOnError bool
	DebugOnly                 bool
	ReleaseOnly               bool
	BuildOnly                 bool
	Concurrency               int // Number of concurrent task workers (0 = auto-determine)

	LogDir     string // Directory to store test logs
	JUnitXML   string // JUnit XML report filename within the run directory ("" = disabled)
	Benchmarks string // Benchmark JSON filename within the run directory ("" = disabled)

	// Metadata carries the parsed values of capability-declared command-line
	// options. It is merged into every verifier context.
	Metadata capability.Context

	Log log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	inputs := ctx.StringSlice(flags.Input.Name)
	if len(inputs) == 0 {
		return nil, errors.New("at least one input is required")
	}

	absInputs := make([]string, 0, len(inputs))
	for _, input := range inputs {
		absInput, err := filepath.Abs(input)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for input '%s': %w", input, err)
		}
		absInputs = append(absInputs, absInput)
	}

	iterations := ctx.Int(flags.Iterations.Name)
	if iterations < 1 {
		return nil, fmt.Errorf("iterations must be positive, got %d", iterations)
	}

	if ctx.Bool(flags.DebugOnly.Name) && ctx.Bool(flags.ReleaseOnly.Name) {
		return nil, errors.New("--debug-only and --release-only are mutually exclusive")
	}

	codeCoverage := ctx.Bool(flags.CodeCoverage.Name)
	if codeCoverage && ctx.Bool(flags.BuildOnly.Name) {
		return nil, errors.New("--code-coverage requires test execution and cannot be combined with --build-only")
	}

	// Get log directory, default to "logs" if not specified
	logDir := ctx.String(flags.LogDir.Name)
	if logDir == "" {
		logDir = "logs"
	}
	logDir, err := filepath.Abs(logDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for log directory '%s': %w", logDir, err)
	}

	return &Config{
		Inputs:                    absInputs,
		PluginsEnvVar:             ctx.String(flags.PluginsEnvVar.Name),
		ExecutorName:              ctx.String(flags.Executor.Name),
		CodeCoverage:              codeCoverage,
		ValidatorName:             ctx.String(flags.CoverageValidator.Name),
		Iterations:                iterations,
		ContinueIterationsOnError: ctx.Bool(flags.ContinueIterationsOnError.Name),
		DebugOnly:                 ctx.Bool(flags.DebugOnly.Name),
		ReleaseOnly:               ctx.Bool(flags.ReleaseOnly.Name),
		BuildOnly:                 ctx.Bool(flags.BuildOnly.Name),
		Concurrency:               ctx.Int(flags.Concurrency.Name),
		LogDir:                    logDir,
		JUnitXML:                  ctx.String(flags.JUnitXML.Name),
		Benchmarks:                ctx.String(flags.Benchmarks.Name),
		Log:                       log,
	}, nil
}
