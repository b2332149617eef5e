package reporting

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devkit-infra/tester/types"
)

func makeConfigurationResult(
	configuration string,
	subtests map[string]types.SubtestResult,
	benchmarks []types.BenchmarkStat,
) *types.ConfigurationResult {
	buildResult := &types.BuildResult{
		Result:        0,
		ExecutionTime: 250 * time.Millisecond,
		LogFilename:   "build.log",
	}

	parseResult := types.NewParseResult(0, 100*time.Millisecond, "parsed", subtests, benchmarks)
	executeResult := types.NewExecuteResult(0, 400*time.Millisecond, "", nil)
	iteration := types.NewTestIterationResult(executeResult, parseResult)
	testResult := types.NewTestResult(500*time.Millisecond, "test.log", []types.TestIterationResult{iteration}, false)

	configResult := types.NewConfigurationResult(
		configuration,
		"out",
		"test.log",
		"Stub",
		"StubExec",
		"StubParser",
		"",
		buildResult,
		&testResult,
		nil,
		false,
	)
	return &configResult
}

func makeResult(path string, subtests map[string]types.SubtestResult, benchmarks []types.BenchmarkStat) types.Result {
	return types.Result{
		TestItem: path,
		Debug:    makeConfigurationResult("Debug", subtests, benchmarks),
	}
}

func TestFormatResults(t *testing.T) {
	results := []types.Result{
		makeResult("/repo/pkg/one_test.go", nil, nil),
		makeResult("/repo/pkg/sub/two_test.go", nil, nil),
	}

	var buf bytes.Buffer
	formatter := NewConsoleResultFormatter(log.New())
	formatter.out = &buf

	require.NoError(t, formatter.FormatResults(results, 3*time.Second))

	output := buf.String()
	assert.Contains(t, output, "one_test.go")
	assert.Contains(t, output, filepath.Join("sub", "two_test.go"))
	assert.Contains(t, output, "Debug")
	assert.Contains(t, output, "2 succeeded, 0 failed, 0 with warnings")
}

func TestWriteJUnitXML(t *testing.T) {
	subtests := map[string]types.SubtestResult{
		"TestPass": {Result: 0, ExecutionTime: time.Second},
		"TestFail": {Result: -1, ExecutionTime: 2 * time.Second},
		"TestSkip": {Result: 1, ExecutionTime: time.Second},
	}

	results := []types.Result{
		makeResult("/repo/pkg/one_test.go", subtests, nil),
	}

	filename := filepath.Join(t.TempDir(), "results.xml")
	require.NoError(t, WriteJUnitXML(filename, results, "host-1", time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)))

	data, err := os.ReadFile(filename)
	require.NoError(t, err)

	var document junitTestSuites
	require.NoError(t, xml.Unmarshal(data, &document))

	require.Len(t, document.Suites, 1)
	suite := document.Suites[0]
	assert.Equal(t, "one_test.go", suite.Name)
	assert.Equal(t, "host-1", suite.Hostname)

	require.Len(t, suite.TestCases, 1)
	testCase := suite.TestCases[0]
	assert.Equal(t, "Debug", testCase.Name)

	// Only the failing subtest produces a failure element; the passing and
	// the skipped subtests do not.
	require.Len(t, testCase.Failures, 1)
	assert.Contains(t, testCase.Failures[0].Message, "TestFail")
	assert.Equal(t, "Subtest failure", testCase.Failures[0].Type)
}

func TestCollectBenchmarks(t *testing.T) {
	benchmarks := []types.BenchmarkStat{
		{
			Name:       "BenchmarkParse",
			Extractor:  "gotest",
			MinValue:   1034,
			MaxValue:   1034,
			MeanValue:  1034,
			Samples:    1,
			Units:      types.UnitNanoseconds,
			Iterations: 1000000,
		},
	}

	results := []types.Result{
		makeResult("/repo/pkg/bench_test.go", nil, benchmarks),
		makeResult("/repo/pkg/plain_test.go", nil, nil),
	}

	collected := CollectBenchmarks(results)
	require.Len(t, collected, 1)
	require.Contains(t, collected, "bench_test.go")
	assert.Len(t, collected["bench_test.go"]["Debug"], 1)

	filename := filepath.Join(t.TempDir(), "Benchmarks.json")
	require.NoError(t, WriteBenchmarks(filename, results))

	data, err := os.ReadFile(filename)
	require.NoError(t, err)

	var parsed map[string]map[string][]types.BenchmarkStat
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, "BenchmarkParse", parsed["bench_test.go"]["Debug"][0].Name)
}
