// Package registry resolves environment-scoped plugin indirection files and
// loads the capability plugins they name.
//
// A repository contributes capabilities to a consumer defined in a different
// repository without a build-time dependency edge: the consumer names an
// environment variable, the variable points at a text file, and each line of
// that file is the absolute path of a loadable plugin module. Arbitrarily
// many repositories can append to the same file at environment-activation
// time while the consumer stays ignorant of how many contributors exist.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"plugin"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/log"

	capability "github.com/devkit-infra/tester/plugin"
)

// ConfigurationError indicates a missing or invalid piece of the plugin
// indirection configuration: an unset environment variable, a missing
// indirection file, or a missing plugin file.
type ConfigurationError struct {
	EnvVarName string
	Path       string
	Reason     string
}

func (e *ConfigurationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("configuration error for '%s': %s (%s)", e.EnvVarName, e.Reason, e.Path)
	}
	return fmt.Sprintf("configuration error for '%s': %s", e.EnvVarName, e.Reason)
}

// LoadedPlugin pairs a resolved plugin path with the capabilities it
// contributed.
type LoadedPlugin struct {
	Path         string
	Capabilities capability.Capabilities
}

// LoaderFunc loads the capabilities exported by the plugin module at path.
type LoaderFunc func(path string) (capability.Capabilities, error)

// Registry resolves indirection files and loads plugins.
type Registry struct {
	log    log.Logger
	loader LoaderFunc
}

// Config contains registry configuration.
type Config struct {
	Log log.Logger

	// Loader overrides how a plugin file is loaded. Defaults to the shared
	// library loader.
	Loader LoaderFunc
}

// New creates a registry instance.
func New(cfg Config) *Registry {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Loader == nil {
		cfg.Loader = LoadSharedLibrary
	}

	return &Registry{
		log:    cfg.Log,
		loader: cfg.Loader,
	}
}

// Enumerate resolves the indirection file named by the environment variable
// and loads every plugin it lists. All listed paths are validated before any
// plugin is loaded, so a missing entry fails the whole enumeration without
// side effects.
func (r *Registry) Enumerate(envVarName string) ([]*LoadedPlugin, error) {
	paths, err := r.resolvePluginPaths(envVarName)
	if err != nil {
		return nil, err
	}

	plugins := make([]*LoadedPlugin, 0, len(paths))
	for _, path := range paths {
		capabilities, err := r.loader(path)
		if err != nil {
			return nil, fmt.Errorf("loading plugin '%s': %w", path, err)
		}

		r.log.Debug("Loaded plugin", "path", path,
			"verifiers", len(capabilities.Verifiers), "executors", len(capabilities.Executors),
			"parsers", len(capabilities.Parsers), "validators", len(capabilities.Validators))

		plugins = append(plugins, &LoadedPlugin{Path: path, Capabilities: capabilities})
	}

	return plugins, nil
}

// resolvePluginPaths reads and validates the indirection file.
func (r *Registry) resolvePluginPaths(envVarName string) ([]string, error) {
	filename, ok := os.LookupEnv(envVarName)
	if !ok || filename == "" {
		return nil, &ConfigurationError{
			EnvVarName: envVarName,
			Reason:     "the environment variable is not defined",
		}
	}

	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, &ConfigurationError{
			EnvVarName: envVarName,
			Path:       filename,
			Reason:     "the indirection file associated with the environment variable does not exist",
		}
	}

	var paths []string
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if info, err := os.Stat(line); err != nil || info.IsDir() {
			return nil, &ConfigurationError{
				EnvVarName: envVarName,
				Path:       line,
				Reason:     "a plugin associated with the environment variable does not exist",
			}
		}

		paths = append(paths, line)
	}

	return paths, nil
}

// LoadSharedLibrary loads a Go plugin (buildmode=plugin shared library) and
// looks up its exported capabilities symbol.
func LoadSharedLibrary(path string) (capability.Capabilities, error) {
	module, err := plugin.Open(path)
	if err != nil {
		return capability.Capabilities{}, fmt.Errorf("opening plugin: %w", err)
	}

	symbol, err := module.Lookup(capability.CapabilitiesSymbol)
	if err != nil {
		return capability.Capabilities{}, fmt.Errorf("plugin does not export '%s': %w", capability.CapabilitiesSymbol, err)
	}

	capabilities, ok := symbol.(*capability.Capabilities)
	if !ok {
		return capability.Capabilities{}, fmt.Errorf("symbol '%s' has unexpected type %T", capability.CapabilitiesSymbol, symbol)
	}

	return *capabilities, nil
}

// Registration reports the outcome of a Register call.
type Registration struct {
	NumFound int
	NumAdded int

	// Commands are environment mutations downstream processes must apply to
	// observe a newly created indirection file.
	Commands []SetEnvCommand
}

// SetEnvCommand instructs an activation script to set an environment
// variable.
type SetEnvCommand struct {
	Name  string
	Value string
}

// Register scans dir for plugin files satisfying predicate and merges their
// absolute paths into the indirection file named by the environment variable.
// If the variable is unset, or force is true, a fresh indirection file is
// created and a SetEnvCommand is emitted (and applied to this process) so
// later activation steps can append to it.
//
// Concurrent Register calls against the same indirection file must be
// serialized by the caller.
func (r *Registry) Register(envVarName string, dir string, predicate func(string) bool, force bool) (*Registration, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("'%s' is not a valid directory", dir)
	}

	filenames := make(map[string]struct{})

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading '%s': %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		if predicate != nil && !predicate(path) {
			continue
		}

		resolved, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolving '%s': %w", path, err)
		}
		filenames[resolved] = struct{}{}
	}

	registration := &Registration{NumFound: len(filenames)}
	originalNumPlugins := 0

	indirectionFile := os.Getenv(envVarName)
	if force || indirectionFile == "" {
		created, err := os.CreateTemp("", "tester-plugins-*.txt")
		if err != nil {
			return nil, fmt.Errorf("creating indirection file: %w", err)
		}
		if err := created.Close(); err != nil {
			return nil, fmt.Errorf("closing indirection file: %w", err)
		}

		indirectionFile = created.Name()

		registration.Commands = append(registration.Commands, SetEnvCommand{Name: envVarName, Value: indirectionFile})

		// Update this process too so that later activation steps observe the
		// new file.
		if err := os.Setenv(envVarName, indirectionFile); err != nil {
			return nil, fmt.Errorf("setting '%s': %w", envVarName, err)
		}

		r.log.Debug("Created indirection file", "envVar", envVarName, "path", indirectionFile)
	} else {
		content, err := os.ReadFile(indirectionFile)
		if err != nil {
			return nil, fmt.Errorf("reading indirection file '%s': %w", indirectionFile, err)
		}

		for _, line := range strings.Split(string(content), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			if info, err := os.Stat(line); err != nil || info.IsDir() {
				continue
			}

			resolved, err := filepath.Abs(line)
			if err != nil {
				continue
			}

			filenames[resolved] = struct{}{}
			originalNumPlugins++
		}
	}

	registration.NumAdded = len(filenames) - originalNumPlugins

	sorted := make([]string, 0, len(filenames))
	for filename := range filenames {
		sorted = append(sorted, filename)
	}
	sort.Strings(sorted)

	if err := os.WriteFile(indirectionFile, []byte(strings.Join(sorted, "\n")), 0o644); err != nil {
		return nil, fmt.Errorf("writing indirection file '%s': %w", indirectionFile, err)
	}

	r.log.Info("Registered plugins", "envVar", envVarName,
		"found", registration.NumFound, "added", registration.NumAdded)

	return registration, nil
}
