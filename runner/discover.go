package runner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/devkit-infra/tester/plugin"
)

// Well-known marker files controlling discovery.
const (
	// IgnoreFilename disables the test items of the directory it appears in.
	IgnoreFilename = "Tester-ignore"

	// DoNotParseFilename excludes a directory and all of its descendants
	// from discovery entirely.
	DoNotParseFilename = "Tester-DoNotParse"

	// ignoreSuffix disables a single test item when a sibling file with the
	// item's name plus this suffix exists.
	ignoreSuffix = "-ignore"
)

// Discover walks the configured inputs and produces one FindResult per test
// item claimed by exactly one verifier and at least one test parser. Items
// disabled by ignore markers are returned with IsEnabled false.
func (r *runner) Discover(ctx context.Context) ([]plugin.FindResult, error) {
	_, span := r.tracer.Start(ctx, "discover test items")
	defer span.End()

	var results []plugin.FindResult
	var ambiguous []error

	for _, input := range r.inputs {
		info, err := os.Stat(input)
		if err != nil {
			return nil, fmt.Errorf("failed to read input %q: %w", input, err)
		}

		if !info.IsDir() {
			find, matched, err := r.matchTestItem(input)
			if err != nil {
				ambiguous = append(ambiguous, err)
				continue
			}
			if matched {
				results = append(results, find)
			} else {
				r.log.Debug("Input is not a recognized test item", "input", input)
			}
			continue
		}

		err = filepath.WalkDir(input, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if d.IsDir() {
				if _, statErr := os.Stat(filepath.Join(path, DoNotParseFilename)); statErr == nil {
					r.log.Info("Skipping directory and its descendants", "directory", path, "marker", DoNotParseFilename)
					return fs.SkipDir
				}
				return nil
			}

			if strings.HasSuffix(path, ignoreSuffix) || d.Name() == IgnoreFilename {
				return nil
			}

			find, matched, matchErr := r.matchTestItem(path)
			if matchErr != nil {
				ambiguous = append(ambiguous, matchErr)
				return nil
			}
			if matched {
				results = append(results, find)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk input %q: %w", input, err)
		}
	}

	if len(ambiguous) > 0 {
		return nil, errors.Join(ambiguous...)
	}

	r.log.Info("Discovery complete", "found", len(results))
	return results, nil
}

// matchTestItem selects the verifier and test parser for one candidate path.
// More than one verifier participating in test item matching claiming the
// same item is a configuration problem, not a tie to arbitrate. Catch-all
// verifiers act as a fallback when no matching verifier claims the item.
func (r *runner) matchTestItem(path string) (plugin.FindResult, bool, error) {
	var matching []plugin.Verifier
	var fallback []plugin.Verifier

	for _, verifier := range r.capabilities.Verifiers() {
		if !verifier.IsSupported(path) || !verifier.IsSupportedTestItem(path) {
			continue
		}
		if reason := verifier.ValidateEnvironment(); reason != "" {
			r.log.Debug("Verifier does not support the current environment",
				"verifier", verifier.Name(), "reason", reason)
			continue
		}

		if verifier.SupportsTestItemMatching() {
			matching = append(matching, verifier)
		} else {
			fallback = append(fallback, verifier)
		}
	}

	if len(matching) > 1 {
		names := make([]string, 0, len(matching))
		for _, verifier := range matching {
			names = append(names, verifier.Name())
		}
		return plugin.FindResult{}, false, fmt.Errorf(
			"test item %q is claimed by multiple verifiers (%s); disambiguate by restricting the loaded plugins",
			path, strings.Join(names, ", "))
	}

	var verifier plugin.Verifier
	switch {
	case len(matching) == 1:
		verifier = matching[0]
	case len(fallback) > 0:
		verifier = fallback[0]
	default:
		return plugin.FindResult{}, false, nil
	}

	parser, ok := r.matchTestParser(verifier, path)
	if !ok {
		r.log.Debug("No test parser recognizes the item", "item", path, "verifier", verifier.Name())
		return plugin.FindResult{}, false, nil
	}

	configurations := []string{ConfigurationDebug}
	if verifier.IsCompiler() {
		configurations = []string{ConfigurationDebug, ConfigurationRelease}
	}

	return plugin.FindResult{
		Verifier:       verifier,
		TestParser:     parser,
		Configurations: configurations,
		TestType:       filepath.Base(filepath.Dir(path)),
		Path:           path,
		IsEnabled:      r.isEnabled(path),
	}, true, nil
}

func (r *runner) matchTestParser(verifier plugin.Verifier, path string) (plugin.TestParser, bool) {
	for _, parser := range r.capabilities.Parsers() {
		if !parser.IsSupportedCompiler(verifier) {
			continue
		}
		if !parser.IsSupportedTestItem(path) {
			continue
		}
		if reason := parser.ValidateEnvironment(); reason != "" {
			r.log.Debug("Test parser does not support the current environment",
				"parser", parser.Name(), "reason", reason)
			continue
		}
		return parser, true
	}
	return nil, false
}

// isEnabled checks the per-directory and per-item ignore markers.
func (r *runner) isEnabled(path string) bool {
	if _, err := os.Stat(filepath.Join(filepath.Dir(path), IgnoreFilename)); err == nil {
		r.log.Info("Test item excluded by directory ignore marker", "item", path)
		return false
	}
	if _, err := os.Stat(path + ignoreSuffix); err == nil {
		r.log.Info("Test item excluded by ignore marker", "item", path)
		return false
	}
	return true
}
