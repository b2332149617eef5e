package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/devkit-infra/tester/logging"
	"github.com/devkit-infra/tester/plugin"
	"github.com/devkit-infra/tester/types"
)

// Context keys the orchestrator contributes to every verifier context.
const (
	ContextKeyDebugBuild     = "debug_build"
	ContextKeyProfileBuild   = "profile_build"
	ContextKeyOutputFilename = "output_filename"
	ContextKeyOutputDir      = "output_dir"
)

// runBuild performs the build stage for one configuration: create the
// verifier context, invoke the verifier, and commit the build result.
func (r *runner) runBuild(ctx context.Context, t *task) error {
	start := time.Now()

	logFilename := logging.BuildLogPath(t.ctx.outputDir)
	f, err := os.Create(logFilename)
	if err != nil {
		return fmt.Errorf("failed to create build log %q: %w", logFilename, err)
	}
	defer f.Close()

	verifier := t.item.find.Verifier

	// Compilers produce an artifact under the output directory; verifiers
	// run the item in place.
	binary := t.item.find.Path
	if verifier.IsCompiler() {
		binary = filepath.Join(t.ctx.outputDir, "test_artifact")
	}

	metadata := plugin.Context{}
	for key, value := range r.metadata {
		metadata[key] = value
	}
	metadata[ContextKeyDebugBuild] = t.ctx.isDebug
	metadata[ContextKeyProfileBuild] = r.validator != nil
	metadata[ContextKeyOutputFilename] = binary
	metadata[ContextKeyOutputDir] = t.ctx.outputDir

	progress := r.progressFor(ctx, t.ctx.displayName, 0)
	progress(0, "Configuring...")

	pluginContext, err := verifier.CreateContext(t.item.find.Path, metadata)
	if err != nil {
		fmt.Fprintf(f, "Context generation failed: %v\n", err)

		t.ctx.buildResult = &types.BuildResult{
			Result:        -1,
			ExecutionTime: time.Since(start),
			LogFilename:   logFilename,
			ShortDesc:     prefixName(verifier.Name(), "Context generation failed"),
			OutputDir:     t.ctx.outputDir,
			Binary:        binary,
		}
		return nil
	}

	if pluginContext == nil {
		fmt.Fprintln(f, "The verifier returned an empty context.")

		t.ctx.buildResult = &types.BuildResult{
			Result:        0,
			ExecutionTime: time.Since(start),
			LogFilename:   logFilename,
			ShortDesc:     prefixName(verifier.Name(), "Skipped by the verifier"),
			OutputDir:     t.ctx.outputDir,
			Binary:        binary,
		}
		return nil
	}

	t.ctx.pluginContext = pluginContext

	numSteps := verifier.GetNumSteps(pluginContext)
	progress = r.progressFor(ctx, t.ctx.displayName, numSteps)

	buildStart := time.Now()
	result, shortDesc := verifier.Invoke(pluginContext, f, func(step int, status string) bool {
		return progress(step+1, status)
	})
	buildTime := time.Since(buildStart)

	if shortDesc != "" {
		shortDesc = prefixName(verifier.Name(), shortDesc)
	}

	t.ctx.buildResult = &types.BuildResult{
		Result:             result,
		ExecutionTime:      time.Since(start),
		LogFilename:        logFilename,
		ShortDesc:          shortDesc,
		BuildExecutionTime: buildTime,
		OutputDir:          t.ctx.outputDir,
		Binary:             binary,
	}

	r.log.Debug("Build complete",
		"item", t.ctx.displayName,
		"result", result,
		"duration", buildTime,
	)
	return nil
}
