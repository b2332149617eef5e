package runner

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/devkit-infra/tester/logging"
	"github.com/devkit-infra/tester/plugin"
	"github.com/devkit-infra/tester/types"
)

// workContext tracks one configuration of one test item through the stages.
// The stage results are written exactly once, by the worker processing the
// configuration.
type workContext struct {
	displayName   string
	configuration string
	isDebug       bool
	outputDir     string

	pluginContext plugin.Context

	buildResult    *types.BuildResult
	testResult     *types.TestResult
	coverageResult *types.CodeCoverageResult
}

// hasErrors reports whether any committed stage failed. A configuration with
// errors does not advance to later stages.
func (c *workContext) hasErrors() bool {
	if c.buildResult != nil && c.buildResult.Result != 0 {
		return true
	}
	if c.testResult != nil && c.testResult.Result != 0 {
		return true
	}
	if c.coverageResult != nil && c.coverageResult.Result != 0 {
		return true
	}
	return false
}

// workItem is one discovered test item plus its per-configuration contexts.
type workItem struct {
	find    plugin.FindResult
	relName string

	debug   *workContext
	release *workContext

	// mu serializes the configurations of one item; two workers never
	// process the same item concurrently.
	mu sync.Mutex
}

func (w *workItem) contexts() []*workContext {
	var contexts []*workContext
	if w.debug != nil {
		contexts = append(contexts, w.debug)
	}
	if w.release != nil {
		contexts = append(contexts, w.release)
	}
	return contexts
}

// task pairs a work item with one of its configurations for a stage pass.
type task struct {
	item *workItem
	ctx  *workContext
}

func tasksFor(items []*workItem, include func(*workContext) bool) []*task {
	var tasks []*task
	for _, item := range items {
		for _, ctx := range item.contexts() {
			if include(ctx) {
				tasks = append(tasks, &task{item: item, ctx: ctx})
			}
		}
	}
	return tasks
}

// prepareWorkItems creates the output directories and per-configuration
// contexts for the enabled test items.
func (r *runner) prepareWorkItems(finds []plugin.FindResult) ([]*workItem, error) {
	var paths []string
	for _, find := range finds {
		paths = append(paths, find.Path)
	}
	commonDir := logging.CommonDir(paths)

	var items []*workItem

	for _, find := range finds {
		if !find.IsEnabled {
			r.log.Info("Skipping disabled test item", "item", find.Path)
			continue
		}

		relName := find.Path
		if commonDir != "" {
			if rel, err := filepath.Rel(commonDir, find.Path); err == nil {
				relName = rel
			}
		}

		item := &workItem{find: find, relName: relName}

		for _, configuration := range find.Configurations {
			isDebug := configuration == ConfigurationDebug

			if isDebug && r.releaseOnly {
				r.log.Debug("Skipping configuration due to command line options", "item", find.Path, "configuration", configuration)
				continue
			}
			if !isDebug && r.debugOnly {
				r.log.Debug("Skipping configuration due to command line options", "item", find.Path, "configuration", configuration)
				continue
			}

			outputDir, err := r.fileLogger.ConfigurationDir(relName, configuration)
			if err != nil {
				return nil, fmt.Errorf("failed to prepare output directory for %q: %w", find.Path, err)
			}

			ctx := &workContext{
				displayName:   fmt.Sprintf("%s (%s)", relName, configuration),
				configuration: configuration,
				isDebug:       isDebug,
				outputDir:     outputDir,
			}

			if isDebug {
				item.debug = ctx
			} else {
				item.release = ctx
			}
		}

		if item.debug != nil || item.release != nil {
			items = append(items, item)
		}
	}

	return items, nil
}

// assembleResult folds one work item's committed stage results into the
// top-level per-item result.
func (r *runner) assembleResult(item *workItem) types.Result {
	result := types.Result{
		TestItem: item.find.Path,
	}

	if item.debug != nil {
		configResult := r.configurationResult(item, item.debug)
		result.Debug = &configResult
		result.OutputDir = filepath.Dir(item.debug.outputDir)
	}
	if item.release != nil {
		configResult := r.configurationResult(item, item.release)
		result.Release = &configResult
		result.OutputDir = filepath.Dir(item.release.outputDir)
	}

	return result
}

func (r *runner) configurationResult(item *workItem, ctx *workContext) types.ConfigurationResult {
	logFilename := logging.BuildLogPath(ctx.outputDir)
	if ctx.testResult != nil {
		logFilename = ctx.testResult.LogFilename
	}

	validatorName := ""
	if ctx.coverageResult != nil {
		validatorName = r.validator.Name()
	}

	return types.NewConfigurationResult(
		ctx.configuration,
		ctx.outputDir,
		logFilename,
		item.find.Verifier.Name(),
		r.executor.Name(),
		item.find.TestParser.Name(),
		validatorName,
		ctx.buildResult,
		ctx.testResult,
		ctx.coverageResult,
		r.iterations != 1,
	)
}

// commitBuildPanic records a catastrophic outcome for a build stage that
// panicked or returned an error.
func commitBuildPanic(t *task, elapsed time.Duration, logFilename string) {
	t.ctx.buildResult = &types.BuildResult{
		Result:        CatastrophicTaskFailureResult,
		ExecutionTime: elapsed,
		LogFilename:   logFilename,
		ShortDesc:     "Building failed spectacularly",
		OutputDir:     t.ctx.outputDir,
	}
}

// commitTestPanic records a catastrophic outcome for a test stage that
// panicked or returned an error. The synthesized result flows through the
// normal constructors so downstream folds see a well-formed value.
func commitTestPanic(t *task, elapsed time.Duration, logFilename string) {
	if t.ctx.testResult == nil {
		executeResult := types.ExecuteResult{
			Result:        CatastrophicTaskFailureResult,
			ExecutionTime: elapsed,
			ShortDesc:     "Testing failed spectacularly",
		}
		iteration := types.NewTestIterationResult(executeResult, types.ParseResult{})

		testResult := types.NewTestResult(elapsed, logFilename, []types.TestIterationResult{iteration}, false)
		t.ctx.testResult = &testResult
		return
	}

	t.ctx.coverageResult = &types.CodeCoverageResult{
		Result:        CatastrophicTaskFailureResult,
		ExecutionTime: elapsed,
		ShortDesc:     "Validating code coverage failed spectacularly",
	}
}
