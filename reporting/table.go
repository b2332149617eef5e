// Package reporting renders completed test runs: a console summary table, a
// JUnit XML file for CI consumption, and a benchmark statistics file.
package reporting

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/devkit-infra/tester/logging"
	"github.com/devkit-infra/tester/types"
)

// ResultFormatter is responsible for formatting and displaying test results.
type ResultFormatter interface {
	FormatResults(results []types.Result, duration time.Duration) error
}

// ConsoleResultFormatter implements the ResultFormatter interface.
type ConsoleResultFormatter struct {
	logger log.Logger
	out    io.Writer
}

// NewConsoleResultFormatter creates a new ConsoleResultFormatter writing to
// stdout.
func NewConsoleResultFormatter(logger log.Logger) *ConsoleResultFormatter {
	return &ConsoleResultFormatter{
		logger: logger,
		out:    os.Stdout,
	}
}

// FormatResults formats and displays the test results.
func (f *ConsoleResultFormatter) FormatResults(results []types.Result, duration time.Duration) error {
	f.logger.Info("Printing results...")

	names := displayNames(results)

	t := table.NewWriter()
	t.SetOutputMirror(f.out)
	t.SetTitle(fmt.Sprintf("Test Results (%s)", formatDuration(duration)))

	t.AppendHeader(table.Row{
		"Test Item", "Configuration", "Duration", "Average", "Result", "Description",
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Test Item", AutoMerge: true, WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Average", Align: text.AlignRight},
		{Name: "Result", Align: text.AlignRight},
		{Name: "Description", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
	})

	errors, warnings, successes := 0, 0, 0

	for i := range results {
		result := &results[i]

		switch value := result.Result(); {
		case value < 0:
			errors++
		case value > 0:
			warnings++
		default:
			successes++
		}

		for _, configResult := range []*types.ConfigurationResult{result.Debug, result.Release} {
			if configResult == nil {
				continue
			}
			t.AppendRow(table.Row{
				names[i],
				configResult.Configuration,
				formatDuration(configResult.ExecutionTime),
				formatDuration(configResult.AverageTime),
				configResult.Result,
				configResult.ShortDesc,
			})
		}
	}

	switch {
	case errors > 0:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	case warnings > 0:
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	}

	t.AppendFooter(table.Row{
		fmt.Sprintf("%d items", len(results)),
		"",
		"",
		"",
		"",
		fmt.Sprintf("%d succeeded, %d failed, %d with warnings", successes, errors, warnings),
	})

	t.Render()
	return nil
}

// formatDuration trims sub-millisecond noise from the display.
func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}

// displayNames returns each result's test item path relative to the deepest
// common directory.
func displayNames(results []types.Result) []string {
	if len(results) == 0 {
		return nil
	}

	paths := make([]string, len(results))
	for i, result := range results {
		paths[i] = result.TestItem
	}
	common := logging.CommonDir(paths)

	names := make([]string, len(results))
	for i, result := range results {
		if rel, err := filepath.Rel(common, result.TestItem); err == nil {
			names[i] = rel
		} else {
			names[i] = result.TestItem
		}
	}
	return names
}
