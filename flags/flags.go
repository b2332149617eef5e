package flags

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	capability "github.com/devkit-infra/tester/plugin"
)

const EnvVarPrefix = "TESTER"

// prefixEnvVar names the environment variable backing a flag.
func prefixEnvVar(name string) []string {
	return []string{EnvVarPrefix + "_" + name}
}

var (
	Input = &cli.StringSliceFlag{
		Name:    "input",
		EnvVars: prefixEnvVar("INPUT"),
		Usage:   "File or directory to search for test items (repeatable)",
	}
	PluginsEnvVar = &cli.StringFlag{
		Name:    "plugins-env-var",
		Value:   DefaultPluginsEnvVar,
		EnvVars: prefixEnvVar("PLUGINS_ENV_VAR"),
		Usage:   "Environment variable naming the plugin indirection file",
	}
	Executor = &cli.StringFlag{
		Name:    "executor",
		Value:   "Standard",
		EnvVars: prefixEnvVar("EXECUTOR"),
		Usage:   "Name of the test executor capability to run command lines with",
	}
	CodeCoverage = &cli.BoolFlag{
		Name:    "code-coverage",
		Value:   false,
		EnvVars: prefixEnvVar("CODE_COVERAGE"),
		Usage:   "Validate extracted code coverage against the configured minimum",
	}
	CoverageValidator = &cli.StringFlag{
		Name:    "coverage-validator",
		Value:   "Standard",
		EnvVars: prefixEnvVar("COVERAGE_VALIDATOR"),
		Usage:   "Name of the code coverage validator capability (requires --code-coverage)",
	}
	Iterations = &cli.IntFlag{
		Name:    "iterations",
		Value:   1,
		EnvVars: prefixEnvVar("ITERATIONS"),
		Usage:   "Number of times to execute each test item",
	}
	ContinueIterationsOnError = &cli.BoolFlag{
		Name:    "continue-iterations-on-error",
		Value:   false,
		EnvVars: prefixEnvVar("CONTINUE_ITERATIONS_ON_ERROR"),
		Usage:   "Keep iterating after a failing iteration instead of stopping",
	}
	DebugOnly = &cli.BoolFlag{
		Name:    "debug-only",
		Value:   false,
		EnvVars: prefixEnvVar("DEBUG_ONLY"),
		Usage:   "Restrict compiled test items to the Debug configuration",
	}
	ReleaseOnly = &cli.BoolFlag{
		Name:    "release-only",
		Value:   false,
		EnvVars: prefixEnvVar("RELEASE_ONLY"),
		Usage:   "Restrict compiled test items to the Release configuration",
	}
	BuildOnly = &cli.BoolFlag{
		Name:    "build-only",
		Value:   false,
		EnvVars: prefixEnvVar("BUILD_ONLY"),
		Usage:   "Build test items without executing them",
	}
	Concurrency = &cli.IntFlag{
		Name:    "concurrency",
		Value:   0,
		EnvVars: prefixEnvVar("CONCURRENCY"),
		Usage:   "Number of concurrent task workers (0 = number of CPUs)",
	}
	LogDir = &cli.StringFlag{
		Name:    "log-dir",
		Value:   "logs",
		EnvVars: prefixEnvVar("LOG_DIR"),
		Usage:   "Directory to store per-run test logs in",
	}
	LogLevel = &cli.StringFlag{
		Name:    "log-level",
		Value:   "info",
		EnvVars: prefixEnvVar("LOG_LEVEL"),
		Usage:   "Log level (trace, debug, info, warn, error, crit)",
	}
	JUnitXML = &cli.StringFlag{
		Name:    "junit-xml",
		Value:   "",
		EnvVars: prefixEnvVar("JUNIT_XML"),
		Usage:   "Write a JUnit XML report to this file within the run directory",
	}
	Benchmarks = &cli.StringFlag{
		Name:    "benchmarks",
		Value:   "",
		EnvVars: prefixEnvVar("BENCHMARKS"),
		Usage:   "Write extracted benchmarks to this JSON file within the run directory (fully successful runs only)",
	}
)

// Flags for the register subcommand.
var (
	PluginDir = &cli.StringFlag{
		Name:    "plugin-dir",
		EnvVars: prefixEnvVar("PLUGIN_DIR"),
		Usage:   "Directory to scan for plugin modules",
	}
	PluginExtension = &cli.StringFlag{
		Name:    "plugin-extension",
		Value:   ".so",
		EnvVars: prefixEnvVar("PLUGIN_EXTENSION"),
		Usage:   "File extension identifying plugin modules during registration",
	}
	Force = &cli.BoolFlag{
		Name:    "force",
		Value:   false,
		EnvVars: prefixEnvVar("FORCE"),
		Usage:   "Create a fresh indirection file even when the environment variable is already set",
	}
)

// DefaultPluginsEnvVar is the indirection environment variable consulted when
// --plugins-env-var is not given.
const DefaultPluginsEnvVar = "TESTER_PLUGINS"

var requiredFlags = []cli.Flag{
	Input,
}

var optionalFlags = []cli.Flag{
	PluginsEnvVar,
	Executor,
	CodeCoverage,
	CoverageValidator,
	Iterations,
	ContinueIterationsOnError,
	DebugOnly,
	ReleaseOnly,
	BuildOnly,
	Concurrency,
	LogDir,
	LogLevel,
	JUnitXML,
	Benchmarks,
}

var Flags []cli.Flag

var requiredRegisterFlags = []cli.Flag{
	PluginDir,
}

var RegisterFlags []cli.Flag

func init() {
	Flags = append(requiredFlags, optionalFlags...)
	RegisterFlags = append(requiredRegisterFlags, PluginsEnvVar, PluginExtension, Force, LogLevel)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}

func CheckRequiredRegister(ctx *cli.Context) error {
	for _, f := range requiredRegisterFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}

// CapabilityFlags converts the command-line options declared by loaded
// capabilities into CLI flags so that plugins can extend the invocation
// surface without code changes here.
func CapabilityFlags(specs []capability.OptionSpec) []cli.Flag {
	converted := make([]cli.Flag, 0, len(specs))
	for _, spec := range specs {
		envVars := prefixEnvVar(strings.ToUpper(strings.ReplaceAll(spec.Name, "-", "_")))
		switch spec.Kind {
		case capability.OptionBool:
			converted = append(converted, &cli.BoolFlag{Name: spec.Name, EnvVars: envVars, Usage: spec.Usage})
		case capability.OptionInt:
			converted = append(converted, &cli.IntFlag{Name: spec.Name, EnvVars: envVars, Usage: spec.Usage})
		case capability.OptionFloat:
			converted = append(converted, &cli.Float64Flag{Name: spec.Name, EnvVars: envVars, Usage: spec.Usage})
		default:
			converted = append(converted, &cli.StringFlag{Name: spec.Name, EnvVars: envVars, Usage: spec.Usage})
		}
	}
	return converted
}

// CapabilityContext gathers the values of capability-declared flags that were
// set on the command line into a metadata context for the runner.
func CapabilityContext(ctx *cli.Context, specs []capability.OptionSpec) capability.Context {
	metadata := capability.Context{}
	for _, spec := range specs {
		if !ctx.IsSet(spec.Name) {
			continue
		}
		switch spec.Kind {
		case capability.OptionBool:
			metadata[spec.Name] = ctx.Bool(spec.Name)
		case capability.OptionInt:
			metadata[spec.Name] = ctx.Int(spec.Name)
		case capability.OptionFloat:
			metadata[spec.Name] = ctx.Float64(spec.Name)
		default:
			metadata[spec.Name] = ctx.String(spec.Name)
		}
	}
	return metadata
}
