package tester

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devkit-infra/tester/registry"
	"github.com/devkit-infra/tester/types"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	return &Config{
		Inputs:        []string{t.TempDir()},
		PluginsEnvVar: "TESTER_TEST_PLUGINS_UNSET",
		ExecutorName:  "Standard",
		Iterations:    1,
		LogDir:        t.TempDir(),
		Log:           log.New(),
	}
}

func TestNew(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		tester, err := New(context.Background(), testConfig(t), "v0.1.0", func(error) {})
		require.NoError(t, err)
		require.NotNil(t, tester)

		assert.True(t, tester.Stopped())
		assert.Nil(t, tester.Results())
		require.NotNil(t, tester.Capabilities())

		_, ok := tester.Capabilities().Executor("Standard")
		assert.True(t, ok)
	})

	t.Run("nil config", func(t *testing.T) {
		_, err := New(context.Background(), nil, "v0.1.0", func(error) {})
		require.Error(t, err)
	})

	t.Run("unknown executor", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.ExecutorName = "DoesNotExist"
		_, err := New(context.Background(), cfg, "v0.1.0", func(error) {})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "test runner")
	})

	t.Run("unknown coverage validator", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.CodeCoverage = true
		cfg.ValidatorName = "DoesNotExist"
		_, err := New(context.Background(), cfg, "v0.1.0", func(error) {})
		require.Error(t, err)
	})
}

func TestLoadCapabilities(t *testing.T) {
	reg := registry.New(registry.Config{Log: log.New()})

	t.Run("builtins only when env var is unset", func(t *testing.T) {
		capabilities, err := LoadCapabilities(reg, "TESTER_TEST_PLUGINS_UNSET")
		require.NoError(t, err)

		_, ok := capabilities.Executor("Standard")
		assert.True(t, ok)
		_, ok = capabilities.Verifier("Noop")
		assert.True(t, ok)
		_, ok = capabilities.Parser("GoTest")
		assert.True(t, ok)
		_, ok = capabilities.Validator("Standard")
		assert.True(t, ok)
	})

	t.Run("broken indirection file is an error", func(t *testing.T) {
		t.Setenv("TESTER_TEST_PLUGINS_BROKEN", filepath.Join(t.TempDir(), "missing.txt"))

		_, err := LoadCapabilities(reg, "TESTER_TEST_PLUGINS_BROKEN")
		require.Error(t, err)
	})

	t.Run("empty indirection file loads no plugins", func(t *testing.T) {
		indirectionFile := filepath.Join(t.TempDir(), "plugins.txt")
		require.NoError(t, os.WriteFile(indirectionFile, []byte("\n"), 0o644))
		t.Setenv("TESTER_TEST_PLUGINS_EMPTY", indirectionFile)

		capabilities, err := LoadCapabilities(reg, "TESTER_TEST_PLUGINS_EMPTY")
		require.NoError(t, err)

		_, ok := capabilities.Executor("Standard")
		assert.True(t, ok)
	})
}

func TestCountFailures(t *testing.T) {
	results := []types.Result{
		{Debug: &types.ConfigurationResult{Result: 0}},
		{Debug: &types.ConfigurationResult{Result: -1}},
		{Debug: &types.ConfigurationResult{Result: 0}, Release: &types.ConfigurationResult{Result: -2}},
		{Debug: &types.ConfigurationResult{Result: 1}},
	}

	assert.Equal(t, 2, countFailures(results))
}
