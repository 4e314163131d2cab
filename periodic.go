package threadpool

import (
	"context"
	"time"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

// RunnerOperation is a named function literal for use in the
// PeriodicRunnerOperation function. Typically these functions submit
// jobs to a runner, or report on its state.
type RunnerOperation func(Runner) error

// SubmitJobFactory produces a RunnerOperation that calls a single
// function which returns a Job and submits that job to the runner.
func SubmitJobFactory(op func() Job) RunnerOperation {
	return func(r Runner) error {
		return r.Put(op())
	}
}

// SubmitManyJobsFactory produces a runner operation that calls a
// single function which returns a slice of jobs and submits those
// jobs. The operation attempts to submit all jobs in the slice and
// returns an aggregated error if any submission failed
// (e.g. continue-on-error semantics).
func SubmitManyJobsFactory(op func() []Job) RunnerOperation {
	return func(r Runner) error {
		catcher := grip.NewBasicCatcher()
		for _, j := range op() {
			catcher.Add(r.Put(j))
		}
		return catcher.Resolve()
	}
}

// GroupRunnerOperationFactory produces a RunnerOperation that
// aggregates and runs one or more RunnerOperations, with
// continue-on-error semantics.
func GroupRunnerOperationFactory(first RunnerOperation, ops ...RunnerOperation) RunnerOperation {
	return func(r Runner) error {
		catcher := grip.NewBasicCatcher()

		catcher.Add(first(r))

		for _, op := range ops {
			catcher.Add(op(r))
		}

		return catcher.Resolve()
	}
}

// LogStatsOperation produces a RunnerOperation that logs the runner's
// current stats at info level.
func LogStatsOperation() RunnerOperation {
	return func(r Runner) error {
		stats := r.Stats()
		grip.Info(message.Fields{
			"message":   "pool stats",
			"pool":      stats.Name,
			"live":      stats.Live,
			"size":      stats.Size,
			"submitted": stats.Submitted,
			"completed": stats.Completed,
			"faulted":   stats.Faulted,
			"pending":   stats.Pending,
			"running":   stats.Running,
			"avg_secs":  stats.AverageRuntime.Seconds(),
		})
		return nil
	}
}

// PeriodicRunnerOperation launches a goroutine that runs the
// RunnerOperation on the specified Runner at the specified
// interval. If ignoreErrors is true, then an operation that returns
// an error will *not* interrupt the background process. Otherwise, the
// background process will exit if an operation fails. Use the context
// to terminate the background process.
func PeriodicRunnerOperation(ctx context.Context, r Runner, op RunnerOperation, interval time.Duration, ignoreErrors bool) {
	go func() {
		timer := time.NewTimer(0)
		defer timer.Stop()
		count := 0

		for {
			select {
			case <-ctx.Done():
				grip.Info(message.Fields{
					"msg":        "exiting periodic runner operation",
					"numPeriods": count,
				})
				return
			case <-timer.C:
				err := errors.Wrap(op(r), "problem encountered by runner operation")
				if err != nil {
					if ignoreErrors {
						grip.Warning(err)
					} else {
						grip.Critical(err)
						return
					}
				}

				count++
				timer.Reset(interval)
			}
		}
	}()
}
