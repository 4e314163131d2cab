/*
Waiting for Jobs to Finish

The threadpool package provides a number of generic methods that, using
the Runner.Stats() method, block until all submitted jobs have either
completed or faulted. These helpers do not close the runner and don't
prevent other goroutines from submitting jobs after beginning to
wait; use Runner.Shutdown to stop the workers.
*/
package threadpool

import (
	"context"
	"time"
)

// Wait takes a runner and blocks until all submitted jobs are
// finished. This operation runs in a tight-loop, which means that the
// Wait will return *as soon* as possible, but frequent calls to Stats()
// may contend with workers.
func Wait(r Runner) {
	for {
		if r.Stats().isComplete() {
			break
		}
	}
}

// WaitCtx makes it possible to cancel, either directly or using a
// deadline or timeout, a Wait operation using a context object. The
// return value is true if all jobs are finished, and false if the
// operation returns early because it was canceled.
func WaitCtx(ctx context.Context, r Runner) bool {
	for {
		if ctx.Err() != nil {
			return false
		}

		if r.Stats().isComplete() {
			return true
		}
	}
}

// WaitInterval adds a sleep between stats calls, as a way of
// throttling the impact of repeated Stats calls to the runner.
func WaitInterval(r Runner, interval time.Duration) {
	for {
		if r.Stats().isComplete() {
			break
		}

		time.Sleep(interval)
	}
}

// WaitCtxInterval provides the Wait operation and accepts a context
// for cancellation while also waiting for an interval between stats
// calls. The return value reports if the operation was canceled or if
// all jobs are finished.
func WaitCtxInterval(ctx context.Context, r Runner, interval time.Duration) bool {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			if r.Stats().isComplete() {
				return true
			}

			timer.Reset(interval)
		}
	}
}
