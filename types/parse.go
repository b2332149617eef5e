package types

import (
	"fmt"
	"time"
)

// SubtestResult is a fine-grained outcome inside one test run.
type SubtestResult struct {
	Result        int
	ExecutionTime time.Duration
}

// Unit is a benchmark time unit.
type Unit string

const (
	UnitNanoseconds  Unit = "ns"
	UnitMicroseconds Unit = "us"
	UnitMilliseconds Unit = "ms"
	UnitSeconds      Unit = "s"
)

// BenchmarkStat is a single benchmark measurement extracted by a test parser.
type BenchmarkStat struct {
	Name              string
	SourceFilename    string
	SourceLine        int
	Extractor         string
	MinValue          float64
	MaxValue          float64
	MeanValue         float64
	StandardDeviation float64
	Samples           int
	Units             Unit
	Iterations        int
}

// ConvertTime converts value between benchmark time units. Conversions to a
// coarser unit truncate at each ladder step, so a value converted to a coarser
// unit and back loses any sub-unit remainder.
func ConvertTime(value int64, current Unit, dest Unit) int64 {
	if current == dest {
		return value
	}

	if current == UnitSeconds {
		value *= 1000
		current = UnitMilliseconds
	}

	if current == UnitMilliseconds {
		value *= 1000
		current = UnitMicroseconds
	}

	if current == UnitMicroseconds {
		value *= 1000
		current = UnitNanoseconds
	}

	if current != UnitNanoseconds {
		panic(fmt.Sprintf("unrecognized benchmark unit '%s'", current))
	}

	if dest == UnitNanoseconds {
		return value
	}

	value /= 1000
	if dest == UnitMicroseconds {
		return value
	}

	value /= 1000
	if dest == UnitMilliseconds {
		return value
	}

	value /= 1000

	if dest != UnitSeconds {
		panic(fmt.Sprintf("unrecognized benchmark unit '%s'", dest))
	}
	return value
}

// ParseResult is the structured interpretation of one test run's raw output.
type ParseResult struct {
	Result        int
	ExecutionTime time.Duration
	ShortDesc     string

	// Subtests and Benchmarks are either nil or non-empty.
	Subtests   map[string]SubtestResult
	Benchmarks []BenchmarkStat
}

// NewParseResult returns a parse result. Empty (but non-nil) subtest or
// benchmark collections are parser contract violations.
func NewParseResult(
	result int,
	executionTime time.Duration,
	shortDesc string,
	subtests map[string]SubtestResult,
	benchmarks []BenchmarkStat,
) ParseResult {
	if subtests != nil && len(subtests) == 0 {
		panic("subtest results must be nil or non-empty")
	}
	if benchmarks != nil && len(benchmarks) == 0 {
		panic("benchmarks must be nil or non-empty")
	}

	return ParseResult{
		Result:        result,
		ExecutionTime: executionTime,
		ShortDesc:     shortDesc,
		Subtests:      subtests,
		Benchmarks:    benchmarks,
	}
}
