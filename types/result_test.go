package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execResult(result int, desc string) ExecuteResult {
	return NewExecuteResult(result, 10*time.Millisecond, desc, nil)
}

func parseResult(result int, desc string) ParseResult {
	return NewParseResult(result, 5*time.Millisecond, desc, nil, nil)
}

func TestTestIterationResult(t *testing.T) {
	tests := []struct {
		name          string
		execute       ExecuteResult
		parse         ParseResult
		wantResult    int
		wantShortDesc string
	}{
		{
			name:          "execute error wins",
			execute:       execResult(-1, "exec boom"),
			parse:         parseResult(-2, "parse boom"),
			wantResult:    -1,
			wantShortDesc: "exec boom",
		},
		{
			name:          "parse error beats execute warning",
			execute:       execResult(2, "exec warn"),
			parse:         parseResult(-1, "parse boom"),
			wantResult:    -1,
			wantShortDesc: "parse boom",
		},
		{
			name:          "execute warning beats parse warning",
			execute:       execResult(1, "exec warn"),
			parse:         parseResult(2, "parse warn"),
			wantResult:    1,
			wantShortDesc: "exec warn",
		},
		{
			name:          "parse warning beats success",
			execute:       execResult(0, ""),
			parse:         parseResult(3, "parse warn"),
			wantResult:    3,
			wantShortDesc: "parse warn",
		},
		{
			name:          "success uses parse description",
			execute:       execResult(0, "executed"),
			parse:         parseResult(0, "all passed"),
			wantResult:    0,
			wantShortDesc: "all passed",
		},
		{
			name:          "execute failure default description",
			execute:       execResult(-1, ""),
			parse:         parseResult(0, ""),
			wantResult:    -1,
			wantShortDesc: "Test execution failure",
		},
		{
			name:          "parse failure default description",
			execute:       execResult(0, ""),
			parse:         parseResult(-1, ""),
			wantResult:    -1,
			wantShortDesc: "Test extraction failure",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewTestIterationResult(tt.execute, tt.parse)
			assert.Equal(t, tt.wantResult, result.Result)
			assert.Equal(t, tt.wantShortDesc, result.ShortDesc)
			assert.Equal(t, 15*time.Millisecond, result.TotalTime)
		})
	}
}

func TestTestIterationResultTimeIncludesBothStages(t *testing.T) {
	// Total time is the sum of both stage durations even when the execution
	// failed and the parse contributed nothing to the outcome.
	result := NewTestIterationResult(execResult(-1, "boom"), parseResult(0, "ok"))
	assert.Equal(t, 15*time.Millisecond, result.TotalTime)
}

func TestTestResultAggregation(t *testing.T) {
	success := NewTestIterationResult(execResult(0, ""), parseResult(0, "passed"))
	failure := NewTestIterationResult(execResult(-1, "broken"), parseResult(0, ""))
	warning := NewTestIterationResult(execResult(0, ""), parseResult(1, "flaky"))

	t.Run("error beats success", func(t *testing.T) {
		result := NewTestResult(time.Second, "test.log", []TestIterationResult{success, failure}, true)
		assert.Equal(t, -1, result.Result)
		assert.Equal(t, "broken", result.ShortDesc)
	})

	t.Run("error beats warning", func(t *testing.T) {
		result := NewTestResult(time.Second, "test.log", []TestIterationResult{warning, failure}, true)
		assert.Equal(t, -1, result.Result)
		assert.Equal(t, "broken", result.ShortDesc)
	})

	t.Run("warning beats success", func(t *testing.T) {
		result := NewTestResult(time.Second, "test.log", []TestIterationResult{success, warning}, true)
		assert.Equal(t, 1, result.Result)
		assert.Equal(t, "flaky", result.ShortDesc)
	})

	t.Run("first iteration of a category wins", func(t *testing.T) {
		otherFailure := NewTestIterationResult(execResult(-2, "also broken"), parseResult(0, ""))

		result := NewTestResult(time.Second, "test.log", []TestIterationResult{failure, otherFailure}, true)
		assert.Equal(t, -1, result.Result)
		assert.Equal(t, "broken", result.ShortDesc)

		reordered := NewTestResult(time.Second, "test.log", []TestIterationResult{otherFailure, failure}, true)
		assert.Equal(t, -2, reordered.Result)
		assert.Equal(t, "also broken", reordered.ShortDesc)
	})

	t.Run("average time", func(t *testing.T) {
		result := NewTestResult(time.Second, "test.log", []TestIterationResult{success, failure}, true)
		assert.Equal(t, 15*time.Millisecond, result.AverageTime)
	})

	t.Run("zero iterations panics", func(t *testing.T) {
		assert.Panics(t, func() {
			NewTestResult(time.Second, "test.log", nil, false)
		})
	})
}

func newConfigResult(t *testing.T, build *BuildResult, test *TestResult, coverage *CodeCoverageResult) ConfigurationResult {
	t.Helper()

	validatorName := ""
	if coverage != nil {
		validatorName = "Standard"
	}

	return NewConfigurationResult(
		"Debug",
		"/tmp/out",
		"/tmp/out/test.log",
		"compiler",
		"executor",
		"parser",
		validatorName,
		build,
		test,
		coverage,
		false,
	)
}

func TestConfigurationResult(t *testing.T) {
	passingBuild := &BuildResult{
		Result:             0,
		ExecutionTime:      100 * time.Millisecond,
		BuildExecutionTime: 80 * time.Millisecond,
		ShortDesc:          "built",
	}
	failingBuild := &BuildResult{
		Result:        -1,
		ExecutionTime: 100 * time.Millisecond,
		ShortDesc:     "link error",
	}

	passingTest := func() *TestResult {
		result := NewTestResult(
			time.Second,
			"test.log",
			[]TestIterationResult{NewTestIterationResult(execResult(0, ""), parseResult(0, "passed"))},
			false,
		)
		return &result
	}()

	warningTest := func() *TestResult {
		result := NewTestResult(
			time.Second,
			"test.log",
			[]TestIterationResult{NewTestIterationResult(execResult(0, ""), parseResult(2, "slow"))},
			false,
		)
		return &result
	}()

	t.Run("build failure short circuits", func(t *testing.T) {
		result := newConfigResult(t, failingBuild, nil, nil)
		assert.Equal(t, -1, result.Result)
		assert.Equal(t, "link error", result.ShortDesc)
	})

	t.Run("test result on failed build panics", func(t *testing.T) {
		assert.Panics(t, func() {
			newConfigResult(t, failingBuild, passingTest, nil)
		})
	})

	t.Run("coverage result on failed build panics", func(t *testing.T) {
		coverage := NewCodeCoverageResult(time.Millisecond, 0.9, 0.7)
		assert.Panics(t, func() {
			newConfigResult(t, failingBuild, nil, &coverage)
		})
	})

	t.Run("warning is remembered but scan continues", func(t *testing.T) {
		result := newConfigResult(t, passingBuild, warningTest, nil)
		assert.Equal(t, 2, result.Result)
		assert.Equal(t, "slow", result.ShortDesc)
	})

	t.Run("last success description wins", func(t *testing.T) {
		result := newConfigResult(t, passingBuild, passingTest, nil)
		assert.Equal(t, 0, result.Result)
		assert.Equal(t, "passed", result.ShortDesc)
	})

	t.Run("coverage failure is reported", func(t *testing.T) {
		coverage := NewCodeCoverageResult(time.Millisecond, 0.5, 0.7)
		result := newConfigResult(t, passingBuild, passingTest, &coverage)
		assert.Equal(t, -1, result.Result)
		assert.Equal(t, "50.00% < 70.00%", result.ShortDesc)
	})

	t.Run("time accounting", func(t *testing.T) {
		// Average accumulates the test stage's average time; execution
		// accumulates its total time.
		iterations := []TestIterationResult{
			NewTestIterationResult(execResult(0, ""), parseResult(0, "passed")),
			NewTestIterationResult(execResult(0, ""), parseResult(0, "passed")),
		}
		test := NewTestResult(2*time.Second, "test.log", iterations, true)

		result := NewConfigurationResult(
			"Release", "/tmp/out", "/tmp/out/test.log",
			"compiler", "executor", "parser", "",
			passingBuild, &test, nil, true,
		)

		require.Equal(t, 15*time.Millisecond, test.AverageTime)
		assert.Equal(t, 100*time.Millisecond+15*time.Millisecond, result.AverageTime)
		assert.Equal(t, 100*time.Millisecond+2*time.Second, result.ExecutionTime)
	})
}

func TestResultAcrossConfigurations(t *testing.T) {
	makeConfig := func(result int, desc string) *ConfigurationResult {
		return &ConfigurationResult{Result: result, ShortDesc: desc}
	}

	tests := []struct {
		name    string
		debug   *ConfigurationResult
		release *ConfigurationResult
		want    int
	}{
		{"both pass", makeConfig(0, ""), makeConfig(0, ""), 0},
		{"debug error beats release warning", makeConfig(-1, "boom"), makeConfig(2, "warn"), -1},
		{"release error beats debug warning", makeConfig(2, "warn"), makeConfig(-1, "boom"), -1},
		{"first warning is kept", makeConfig(1, "first"), makeConfig(2, "second"), 1},
		{"missing debug", nil, makeConfig(3, "warn"), 3},
		{"missing release", makeConfig(0, ""), nil, 0},
		{"both missing", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Result{TestItem: "item", Debug: tt.debug, Release: tt.release}
			assert.Equal(t, tt.want, result.Result())
		})
	}
}
