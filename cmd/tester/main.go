package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	tester "github.com/devkit-infra/tester"
	"github.com/devkit-infra/tester/flags"
	capability "github.com/devkit-infra/tester/plugin"
	"github.com/devkit-infra/tester/registry"
	"github.com/devkit-infra/tester/service"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	svc := service.New(Version)

	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "tester"
	app.Usage = "Plugin-driven test orchestration service"
	app.Description = "tester discovers, builds, executes, and parses test items through loadable capability plugins"
	app.Commands = []*cli.Command{
		{
			Name:  "run",
			Usage: "Discover and process every test item under the configured inputs",
			Flags: append(flags.Flags, flags.CapabilityFlags(capabilityOptions())...),
			Action: func(ctx *cli.Context) error {
				return run(ctx, svc)
			},
		},
		{
			Name:   "register",
			Usage:  "Register plugin modules with the indirection environment variable",
			Flags:  flags.RegisterFlags,
			Action: register,
		},
	}
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			// Use the exit code from the ExitCoder
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			if tester.IsRuntimeError(err) {
				// For runtime errors, use exit code 2
				cli.HandleExitCoder(cli.Exit(err.Error(), 2))
			} else if tester.IsTestFailureError(err) {
				// For test failures, use exit code 1
				cli.HandleExitCoder(cli.Exit(err.Error(), 1))
			} else {
				// For other unspecified errors, default to exit code 1
				cli.HandleExitCoder(cli.Exit(err.Error(), 1))
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start the healthz and metrics servers
	svc.Start(ctx)
	defer svc.Shutdown()

	// Start CLI
	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Crit("Application failed", "message", err)
	}
}

func run(ctx *cli.Context, svc *service.Service) error {
	logger := newLogger(ctx)

	cfg, err := tester.NewConfig(ctx, logger)
	if err != nil {
		// Wrap in RuntimeError to signal this should exit with code 2
		return tester.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}
	cfg.Metadata = flags.CapabilityContext(ctx, capabilityOptions())

	cfg.Log.Debug("Config", "config", cfg)

	testerService, err := tester.New(ctx.Context, cfg, Version, func(error) {})
	if err != nil {
		return tester.NewRuntimeError(fmt.Errorf("failed to create tester: %w", err))
	}

	svc.Healthz.SetRunStatus(testerService.RunID(), true)
	defer svc.Healthz.SetRunStatus(testerService.RunID(), false)

	return testerService.Start(ctx.Context)
}

func register(ctx *cli.Context) error {
	logger := newLogger(ctx)

	if err := flags.CheckRequiredRegister(ctx); err != nil {
		return tester.NewRuntimeError(fmt.Errorf("missing required flags: %w", err))
	}

	extension := ctx.String(flags.PluginExtension.Name)
	reg := registry.New(registry.Config{Log: logger})

	registration, err := reg.Register(
		ctx.String(flags.PluginsEnvVar.Name),
		ctx.String(flags.PluginDir.Name),
		func(path string) bool { return strings.HasSuffix(path, extension) },
		ctx.Bool(flags.Force.Name),
	)
	if err != nil {
		return tester.NewRuntimeError(fmt.Errorf("failed to register plugins: %w", err))
	}

	// Emit environment mutations so that activation scripts can apply them.
	for _, command := range registration.Commands {
		fmt.Printf("export %s=%s\n", command.Name, command.Value)
	}

	logger.Info("Plugin registration complete",
		"found", registration.NumFound, "added", registration.NumAdded)
	return nil
}

// capabilityOptions collects the command-line options declared by the builtin
// capabilities and any plugins already visible through the default
// indirection environment variable. Resolution failures are deferred to the
// run action, which reports them properly.
func capabilityOptions() []capability.OptionSpec {
	reg := registry.New(registry.Config{Log: log.NewLogger(log.DiscardHandler())})

	envVarName := os.Getenv(flags.EnvVarPrefix + "_PLUGINS_ENV_VAR")
	if envVarName == "" {
		envVarName = flags.DefaultPluginsEnvVar
	}

	capabilities, err := tester.LoadCapabilities(reg, envVarName)
	if err != nil {
		return nil
	}
	return capabilities.CommandLineOptions()
}

// lvlFromString reproduces the level-name mapping of the former
// go-ethereum log.LvlFromString, which was removed in the slog migration.
func lvlFromString(lvlString string) (slog.Level, error) {
	switch lvlString {
	case "trace", "trce":
		return log.LevelTrace, nil
	case "debug", "dbug":
		return log.LevelDebug, nil
	case "info":
		return log.LevelInfo, nil
	case "warn":
		return log.LevelWarn, nil
	case "error", "eror":
		return log.LevelError, nil
	case "crit":
		return log.LevelCrit, nil
	default:
		return log.LevelDebug, fmt.Errorf("unknown level: %v", lvlString)
	}
}

func newLogger(ctx *cli.Context) log.Logger {
	level, err := lvlFromString(ctx.String(flags.LogLevel.Name))
	if err != nil {
		level = log.LevelInfo
	}

	logger := log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, level, true))
	log.SetDefault(logger)
	return logger
}
