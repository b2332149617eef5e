package reporting

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/devkit-infra/tester/types"
)

// CollectBenchmarks gathers the first iteration's benchmark statistics per
// test item and configuration. Items without benchmarks are omitted.
func CollectBenchmarks(results []types.Result) map[string]map[string][]types.BenchmarkStat {
	names := displayNames(results)

	benchmarks := make(map[string]map[string][]types.BenchmarkStat)

	for i := range results {
		result := &results[i]

		perConfiguration := make(map[string][]types.BenchmarkStat)

		for _, configResult := range []*types.ConfigurationResult{result.Debug, result.Release} {
			if configResult == nil || configResult.TestResult == nil {
				continue
			}

			parseResult := configResult.TestResult.Iterations[0].ParseResult
			if len(parseResult.Benchmarks) > 0 {
				perConfiguration[configResult.Configuration] = parseResult.Benchmarks
			}
		}

		if len(perConfiguration) > 0 {
			benchmarks[names[i]] = perConfiguration
		}
	}

	return benchmarks
}

// WriteBenchmarks writes the collected benchmark statistics as JSON. It is
// only meaningful for fully successful runs; the caller gates on that.
func WriteBenchmarks(filename string, results []types.Result) error {
	data, err := json.MarshalIndent(CollectBenchmarks(results), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal benchmarks: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write benchmarks %s: %w", filename, err)
	}
	return nil
}
