package standard

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/acarl005/stripansi"

	"github.com/devkit-infra/tester/plugin"
	"github.com/devkit-infra/tester/types"
)

// Go test2json action constants.
// See https://cs.opensource.google/go/go/+/master:src/cmd/test2json/main.go
const (
	actionRun    = "run"
	actionPass   = "pass"
	actionFail   = "fail"
	actionSkip   = "skip"
	actionOutput = "output"
)

// testEvent is one line of `go test -json` output.
type testEvent struct {
	Time    time.Time `json:"Time"`
	Action  string    `json:"Action"`
	Package string    `json:"Package"`
	Test    string    `json:"Test"`
	Elapsed float64   `json:"Elapsed"`
	Output  string    `json:"Output"`
}

// benchmarkRegex matches standard Go benchmark output lines, e.g.
// "BenchmarkParse-8   1000000   1034 ns/op".
var benchmarkRegex = regexp.MustCompile(`^(Benchmark\S+?)(?:-\d+)?\s+(\d+)\s+([0-9.]+) ns/op`)

// GoTestParser interprets `go test -json` event streams.
type GoTestParser struct {
	plugin.BaseParser
}

// NewGoTestParser creates the Go test output parser.
func NewGoTestParser() *GoTestParser {
	return &GoTestParser{
		BaseParser: plugin.NewBaseParser("GoTest", "Parses 'go test -json' output."),
	}
}

// IsSupportedTestItem recognizes Go test files and directories containing
// them.
func (p *GoTestParser) IsSupportedTestItem(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	if !info.IsDir() {
		return strings.HasSuffix(path, "_test.go")
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), "_test.go") {
			return true
		}
	}
	return false
}

func (p *GoTestParser) GetNumSteps(commandLine string, verifier plugin.Verifier, ctx plugin.Context) int {
	return 1
}

// CreateInvokeCommandLine wraps the context's input in a `go test` invocation.
func (p *GoTestParser) CreateInvokeCommandLine(verifier plugin.Verifier, ctx plugin.Context, debugOnError bool) (string, error) {
	input, err := p.BaseParser.CreateInvokeCommandLine(verifier, ctx, debugOnError)
	if err != nil {
		return "", err
	}

	// `go test` operates on packages; point it at the directory of the item.
	if info, statErr := os.Stat(input); statErr == nil && !info.IsDir() {
		input = filepath.Dir(input)
	}

	return fmt.Sprintf("go test -json -count=1 %q", input), nil
}

// Parse walks the event stream and folds it into a ParseResult.
func (p *GoTestParser) Parse(verifier plugin.Verifier, ctx plugin.Context, output string, progress plugin.ProgressFunc) types.ParseResult {
	start := time.Now()
	progress(0, "Parsing results...")

	if strings.TrimSpace(output) == "" {
		return types.NewParseResult(-1, time.Since(start), "no test output", nil, nil)
	}

	subtests := make(map[string]types.SubtestResult)
	var benchmarks []types.BenchmarkStat
	startTimes := make(map[string]time.Time)

	packageResult := 0
	sawEvent := false

	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		var event testEvent
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			continue
		}
		sawEvent = true

		if event.Test == "" {
			if event.Action == actionFail {
				packageResult = -1
			}
			continue
		}

		switch event.Action {
		case actionRun:
			startTimes[event.Test] = event.Time
		case actionPass, actionFail, actionSkip:
			subtests[event.Test] = types.SubtestResult{
				Result:        subtestResultFor(event.Action),
				ExecutionTime: subtestDuration(event, startTimes),
			}
		case actionOutput:
			if stat, ok := parseBenchmarkLine(stripansi.Strip(event.Output), event.Package); ok {
				benchmarks = append(benchmarks, stat)
			}
		}
	}

	if !sawEvent {
		return types.NewParseResult(-1, time.Since(start), "output is not a 'go test -json' event stream", nil, nil)
	}

	failed := 0
	for _, subtest := range subtests {
		if subtest.Result < 0 {
			failed++
		}
	}

	result := packageResult
	shortDesc := ""

	switch {
	case failed > 0:
		result = -1
		shortDesc = fmt.Sprintf("%d of %d tests failed", failed, len(subtests))
	case packageResult < 0:
		shortDesc = "package failed"
	case len(subtests) > 0:
		shortDesc = fmt.Sprintf("%d tests passed", len(subtests))
	}

	if len(subtests) == 0 {
		subtests = nil
	}

	return types.NewParseResult(result, time.Since(start), shortDesc, subtests, benchmarks)
}

func subtestResultFor(action string) int {
	switch action {
	case actionFail:
		return -1
	case actionSkip:
		return 1
	default:
		return 0
	}
}

func subtestDuration(event testEvent, startTimes map[string]time.Time) time.Duration {
	// Prefer the calculated time difference over the Elapsed field when a
	// start time is available.
	if startTime, ok := startTimes[event.Test]; ok && !event.Time.IsZero() && event.Time.After(startTime) {
		return event.Time.Sub(startTime)
	}
	return time.Duration(event.Elapsed * float64(time.Second))
}

func parseBenchmarkLine(line string, pkg string) (types.BenchmarkStat, bool) {
	matches := benchmarkRegex.FindStringSubmatch(strings.TrimSpace(line))
	if matches == nil {
		return types.BenchmarkStat{}, false
	}

	iterations, err := strconv.Atoi(matches[2])
	if err != nil {
		return types.BenchmarkStat{}, false
	}

	value, err := strconv.ParseFloat(matches[3], 64)
	if err != nil {
		return types.BenchmarkStat{}, false
	}

	return types.BenchmarkStat{
		Name:           matches[1],
		SourceFilename: pkg,
		Extractor:      "gotest",
		MinValue:       value,
		MaxValue:       value,
		MeanValue:      value,
		Samples:        1,
		Units:          types.UnitNanoseconds,
		Iterations:     iterations,
	}, true
}
