package runner

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/devkit-infra/tester/logging"
	"github.com/devkit-infra/tester/metrics"
)

// stageFunc processes one task for a stage, committing its results into the
// task's work context. A returned error means the task could not produce a
// result through normal means and is treated like a contract violation.
type stageFunc func(ctx context.Context, t *task) error

// panicFunc commits a catastrophic result for a task whose stage panicked or
// errored.
type panicFunc func(t *task, elapsed time.Duration, logFilename string)

// executeTasks runs a stage over every task using a bounded worker pool.
// Workers never share a work item: a per-item mutex serializes the
// configurations of the same item.
func (r *runner) executeTasks(ctx context.Context, desc string, tasks []*task, run stageFunc, onPanic panicFunc) {
	if len(tasks) == 0 {
		return
	}

	concurrency := min(r.concurrency, len(tasks))

	r.log.Info("Starting stage", "stage", desc, "tasks", len(tasks), "concurrency", concurrency)

	bufferSize := min(concurrency*2, 100)
	workChan := make(chan *task, bufferSize)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range workChan {
				r.runTask(ctx, desc, t, run, onPanic)
			}
		}()
	}

	for _, t := range tasks {
		select {
		case workChan <- t:
		case <-ctx.Done():
			r.log.Debug("Context cancelled while sending tasks", "stage", desc)
			close(workChan)
			wg.Wait()
			return
		}
	}
	close(workChan)

	wg.Wait()
}

// runTask runs one stage invocation with panic confinement: a contract
// violation aborts this task only and is committed as a catastrophic result.
func (r *runner) runTask(ctx context.Context, desc string, t *task, run stageFunc, onPanic panicFunc) {
	start := time.Now()

	ctx, span := r.tracer.Start(ctx, fmt.Sprintf("%s %s", desc, t.ctx.displayName))
	defer span.End()

	t.item.mu.Lock()
	defer t.item.mu.Unlock()

	defer func() {
		if rec := recover(); rec != nil {
			r.confineFailure(desc, t, start, fmt.Sprintf("%v", rec), onPanic)
		}
	}()

	if err := run(ctx, t); err != nil {
		r.confineFailure(desc, t, start, err.Error(), onPanic)
	}
}

func (r *runner) confineFailure(desc string, t *task, start time.Time, detail string, onPanic panicFunc) {
	r.log.Error("Stage aborted for test item",
		"stage", desc,
		"item", t.ctx.displayName,
		"error", detail,
	)
	metrics.RecordError("runner.catastrophic_failure")

	logFilename := logging.BuildLogPath(t.ctx.outputDir)
	if desc != "Building" {
		logFilename = logging.TestLogPath(t.ctx.outputDir)
	}

	f, err := os.OpenFile(logFilename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(f, "\n\n%s\n", detail)
		_ = f.Close()
	}

	onPanic(t, time.Since(start), logFilename)
}
