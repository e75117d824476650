// Package fanout runs a dynamic set of independent tasks concurrently and
// joins their results by correlation id. Individual task failures are
// contained: they are recorded in the joined results and never fail the
// fan-out as a whole.
package fanout

import (
	"context"

	"go.uber.org/zap"

	"github.com/perspectivelab/perspective/pkg/concurrency"
	"github.com/perspectivelab/perspective/pkg/task"
)

// Job is one unit of fan-out work with its correlation id.
type Job struct {
	// ID correlates the outcome back to the submitter; it is the only
	// reliable join key, outcome order is not guaranteed.
	ID int
	// Input is passed to the task unchanged
	Input any
	// Task is the unit of work to execute
	Task task.Task
}

// Outcome pairs a correlation id with its task result.
type Outcome struct {
	ID     int
	Result task.Result
}

// Executor dispatches fan-out jobs, bounded by a shared limiter.
type Executor struct {
	limiter *concurrency.Limiter
	mode    concurrency.FanoutMode
	logger  *zap.Logger
}

// NewExecutor creates an executor. A nil limiter disables slot bounding; a
// nil logger falls back to a no-op logger.
func NewExecutor(limiter *concurrency.Limiter, mode concurrency.FanoutMode, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mode != concurrency.FanoutModeSequential {
		mode = concurrency.FanoutModeParallel
	}
	return &Executor{
		limiter: limiter,
		mode:    mode,
		logger:  logger,
	}
}

// RunAll executes every job and returns one outcome per job. A failing task
// yields a Failed outcome with its id preserved; siblings run to completion
// regardless. Outcomes arrive in completion order. An empty job list returns
// an empty slice without spawning goroutines.
func (e *Executor) RunAll(ctx context.Context, jobs []Job) []Outcome {
	if len(jobs) == 0 {
		return []Outcome{}
	}

	if e.mode == concurrency.FanoutModeSequential {
		return e.runSequential(ctx, jobs)
	}
	return e.runParallel(ctx, jobs)
}

func (e *Executor) runParallel(ctx context.Context, jobs []Job) []Outcome {
	outcomeChan := make(chan Outcome, len(jobs))

	for _, job := range jobs {
		go func(j Job) {
			outcomeChan <- e.runOne(ctx, j)
		}(job)
	}

	// Drain every sibling; dispatched work is awaited, never cancelled,
	// even when some of it has already failed.
	outcomes := make([]Outcome, 0, len(jobs))
	for range jobs {
		outcomes = append(outcomes, <-outcomeChan)
	}
	return outcomes
}

func (e *Executor) runSequential(ctx context.Context, jobs []Job) []Outcome {
	outcomes := make([]Outcome, 0, len(jobs))
	for _, job := range jobs {
		outcomes = append(outcomes, e.runOne(ctx, job))
	}
	return outcomes
}

func (e *Executor) runOne(ctx context.Context, job Job) Outcome {
	if e.limiter != nil {
		if err := e.limiter.Acquire(ctx); err != nil {
			e.logger.Warn("fan-out job rejected before dispatch",
				zap.Int("job_id", job.ID),
				zap.Error(err))
			return Outcome{ID: job.ID, Result: task.Fail(err.Error())}
		}
		defer e.limiter.Release()
	}

	result := task.Run(ctx, job.Task, job.Input)
	if result.Failed() {
		e.logger.Warn("fan-out job failed",
			zap.Int("job_id", job.ID),
			zap.String("reason", result.Reason()))
	}
	if e.limiter != nil {
		if result.Failed() {
			e.limiter.RecordFailure()
		} else {
			e.limiter.RecordSuccess()
		}
	}
	return Outcome{ID: job.ID, Result: result}
}
