package registry

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	capability "github.com/devkit-infra/tester/plugin"
)

const testEnvVar = "TESTER_TEST_PLUGINS"

func newTestRegistry(loader LoaderFunc) *Registry {
	return New(Config{Log: log.New(), Loader: loader})
}

func writePluginFiles(t *testing.T, dir string, names ...string) []string {
	t.Helper()

	paths := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("plugin"), 0o644))
		paths = append(paths, path)
	}
	return paths
}

func TestEnumerate(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("environment variable unset", func(t *testing.T) {
		os.Unsetenv(testEnvVar)

		registry := newTestRegistry(nil)
		_, err := registry.Enumerate(testEnvVar)

		var cfgErr *ConfigurationError
		require.True(t, errors.As(err, &cfgErr))
		assert.Contains(t, cfgErr.Error(), "not defined")
	})

	t.Run("indirection file missing", func(t *testing.T) {
		t.Setenv(testEnvVar, filepath.Join(tmpDir, "nonexistent.txt"))

		registry := newTestRegistry(nil)
		_, err := registry.Enumerate(testEnvVar)

		var cfgErr *ConfigurationError
		require.True(t, errors.As(err, &cfgErr))
		assert.Contains(t, cfgErr.Error(), "does not exist")
	})

	t.Run("missing plugin fails before any load", func(t *testing.T) {
		plugins := writePluginFiles(t, tmpDir, "first.so", "third.so")
		missing := filepath.Join(tmpDir, "second.so")

		indirectionFile := filepath.Join(tmpDir, "plugins.txt")
		content := strings.Join([]string{plugins[0], missing, plugins[1]}, "\n")
		require.NoError(t, os.WriteFile(indirectionFile, []byte(content), 0o644))
		t.Setenv(testEnvVar, indirectionFile)

		loads := 0
		registry := newTestRegistry(func(path string) (capability.Capabilities, error) {
			loads++
			return capability.Capabilities{}, nil
		})

		_, err := registry.Enumerate(testEnvVar)

		var cfgErr *ConfigurationError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, missing, cfgErr.Path)
		assert.Zero(t, loads, "no plugin should be loaded when validation fails")
	})

	t.Run("blank lines are skipped", func(t *testing.T) {
		plugins := writePluginFiles(t, t.TempDir(), "a.so", "b.so")

		indirectionFile := filepath.Join(tmpDir, "plugins-blank.txt")
		content := plugins[0] + "\n\n   \n" + plugins[1] + "\n"
		require.NoError(t, os.WriteFile(indirectionFile, []byte(content), 0o644))
		t.Setenv(testEnvVar, indirectionFile)

		registry := newTestRegistry(func(path string) (capability.Capabilities, error) {
			return capability.Capabilities{
				Verifiers: []capability.Verifier{stubVerifier{name: filepath.Base(path)}},
			}, nil
		})

		loaded, err := registry.Enumerate(testEnvVar)
		require.NoError(t, err)
		require.Len(t, loaded, 2)
		assert.Equal(t, plugins[0], loaded[0].Path)
		assert.Equal(t, plugins[1], loaded[1].Path)
	})
}

func TestRegister(t *testing.T) {
	isPlugin := func(path string) bool {
		return strings.HasSuffix(path, ".so")
	}

	t.Run("creates indirection file when env var unset", func(t *testing.T) {
		pluginDir := t.TempDir()
		writePluginFiles(t, pluginDir, "one.so", "two.so", "ignored.txt")

		os.Unsetenv(testEnvVar)
		t.Cleanup(func() { os.Unsetenv(testEnvVar) })

		registry := newTestRegistry(nil)
		registration, err := registry.Register(testEnvVar, pluginDir, isPlugin, false)
		require.NoError(t, err)

		assert.Equal(t, 2, registration.NumFound)
		assert.Equal(t, 2, registration.NumAdded)
		require.Len(t, registration.Commands, 1)
		assert.Equal(t, testEnvVar, registration.Commands[0].Name)

		// The process environment was updated alongside the command.
		indirectionFile := os.Getenv(testEnvVar)
		assert.Equal(t, registration.Commands[0].Value, indirectionFile)

		content, err := os.ReadFile(indirectionFile)
		require.NoError(t, err)

		lines := strings.Split(strings.TrimSpace(string(content)), "\n")
		assert.Len(t, lines, 2)
		assert.True(t, sortedLines(lines))
	})

	t.Run("merges into existing file without duplicates", func(t *testing.T) {
		pluginDir := t.TempDir()
		existing := writePluginFiles(t, pluginDir, "one.so")[0]

		indirectionFile := filepath.Join(t.TempDir(), "plugins.txt")
		require.NoError(t, os.WriteFile(indirectionFile, []byte(existing+"\n"), 0o644))
		t.Setenv(testEnvVar, indirectionFile)

		writePluginFiles(t, pluginDir, "two.so")

		registry := newTestRegistry(nil)
		registration, err := registry.Register(testEnvVar, pluginDir, isPlugin, false)
		require.NoError(t, err)

		assert.Equal(t, 2, registration.NumFound)
		assert.Equal(t, 1, registration.NumAdded)
		assert.Empty(t, registration.Commands)

		content, err := os.ReadFile(indirectionFile)
		require.NoError(t, err)

		lines := strings.Split(strings.TrimSpace(string(content)), "\n")
		assert.Len(t, lines, 2)
		assert.True(t, sortedLines(lines))
	})

	t.Run("force replaces the indirection file", func(t *testing.T) {
		pluginDir := t.TempDir()
		writePluginFiles(t, pluginDir, "one.so")

		staleFile := filepath.Join(t.TempDir(), "stale.txt")
		require.NoError(t, os.WriteFile(staleFile, []byte("/stale/path.so\n"), 0o644))
		t.Setenv(testEnvVar, staleFile)

		registry := newTestRegistry(nil)
		registration, err := registry.Register(testEnvVar, pluginDir, isPlugin, true)
		require.NoError(t, err)

		require.Len(t, registration.Commands, 1)
		assert.NotEqual(t, staleFile, registration.Commands[0].Value)
		assert.Equal(t, 1, registration.NumFound)
		assert.Equal(t, 1, registration.NumAdded)
	})

	t.Run("invalid directory", func(t *testing.T) {
		registry := newTestRegistry(nil)
		_, err := registry.Register(testEnvVar, "/nonexistent/plugins", isPlugin, false)
		require.Error(t, err)
	})
}

func TestCapabilitySet(t *testing.T) {
	set := NewCapabilitySet()

	require.NoError(t, set.Add(capability.Capabilities{
		Verifiers: []capability.Verifier{stubVerifier{name: "Python"}},
	}))

	t.Run("lookup by name", func(t *testing.T) {
		verifier, ok := set.Verifier("Python")
		require.True(t, ok)
		assert.Equal(t, "Python", verifier.Name())

		_, ok = set.Verifier("C++")
		assert.False(t, ok)
	})

	t.Run("duplicate names are rejected", func(t *testing.T) {
		err := set.Add(capability.Capabilities{
			Verifiers: []capability.Verifier{stubVerifier{name: "Python"}},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate verifier")
	})

	t.Run("command line options are deduplicated", func(t *testing.T) {
		optioned := NewCapabilitySet()
		require.NoError(t, optioned.Add(capability.Capabilities{
			Verifiers: []capability.Verifier{
				stubVerifier{name: "A", options: []capability.OptionSpec{{Name: "shared"}, {Name: "a-only"}}},
				stubVerifier{name: "B", options: []capability.OptionSpec{{Name: "shared"}, {Name: "b-only"}}},
			},
		}))

		specs := optioned.CommandLineOptions()
		names := make([]string, 0, len(specs))
		for _, spec := range specs {
			names = append(names, spec.Name)
		}
		assert.Equal(t, []string{"shared", "a-only", "b-only"}, names)
	})

	t.Run("enumeration is name ordered", func(t *testing.T) {
		require.NoError(t, set.Add(capability.Capabilities{
			Verifiers: []capability.Verifier{stubVerifier{name: "Cpp"}},
		}))

		verifiers := set.Verifiers()
		require.Len(t, verifiers, 2)
		assert.Equal(t, "Cpp", verifiers[0].Name())
		assert.Equal(t, "Python", verifiers[1].Name())
	})
}

func sortedLines(lines []string) bool {
	for i := 1; i < len(lines); i++ {
		if lines[i-1] > lines[i] {
			return false
		}
	}
	return true
}

// stubVerifier is a minimal Verifier for registry tests.
type stubVerifier struct {
	capability.BaseVerifier
	name    string
	options []capability.OptionSpec
}

func (s stubVerifier) Name() string                 { return s.name }
func (s stubVerifier) IsSupported(path string) bool { return true }
func (s stubVerifier) CommandLineOptions() []capability.OptionSpec {
	return s.options
}
func (s stubVerifier) Invoke(ctx capability.Context, w io.Writer, progress capability.ProgressFunc) (int, string) {
	return 0, ""
}
