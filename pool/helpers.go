package pool

import (
	"context"
	"sync"
	"time"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/mongodb/grip/recovery"
	"github.com/mongodb/threadpool"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type worker struct {
	id   int
	pool *LocalWorkers

	mu      sync.RWMutex
	state   threadpool.WorkerState
	jobsRun int
	current string
	handle  chan struct{}
}

func newWorker(id int, p *LocalWorkers) *worker {
	return &worker{
		id:    id,
		pool:  p,
		state: threadpool.WorkerCreated,
	}
}

func (w *worker) start() {
	done := make(chan struct{})

	w.mu.Lock()
	w.handle = done
	w.state = threadpool.WorkerIdle
	w.mu.Unlock()

	go func() {
		defer close(done)
		defer w.pool.live.Add(-1)

		w.loop()
	}()
}

func (w *worker) loop() {
	for {
		j, ok := w.pool.queue.Next()
		if !ok {
			w.setState(threadpool.WorkerTerminated, "")
			grip.Debug(message.Fields{
				"message": "worker disconnected; shutting down",
				"pool":    w.pool.name,
				"worker":  w.id,
			})
			return
		}

		if err := executeJob(w, j); err != nil {
			return
		}
	}
}

// join blocks until the worker's goroutine has returned and releases
// the handle. Joining a worker that has already been joined, or that
// was never started, returns immediately.
func (w *worker) join() {
	w.mu.Lock()
	handle := w.handle
	w.handle = nil
	w.mu.Unlock()

	if handle != nil {
		<-handle
	}
}

func (w *worker) setState(state threadpool.WorkerState, current string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.state = state
	w.current = current
}

func (w *worker) info() threadpool.WorkerInfo {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return threadpool.WorkerInfo{
		ID:      w.id,
		State:   w.state,
		JobsRun: w.jobsRun,
		Current: w.current,
	}
}

// executeJob runs the job on behalf of the worker, and returns a
// non-nil JobExecutionFault if the job panicked. A job that exits its
// goroutine without returning, as runtime.Goexit does, is recorded as
// a fault before the worker goroutine unwinds.
func executeJob(w *worker, j threadpool.Job) (err error) {
	p := w.pool

	grip.Debug(message.Fields{
		"message": "worker got a job; executing",
		"pool":    p.name,
		"worker":  w.id,
		"job":     j.ID(),
	})

	w.setState(threadpool.WorkerExecuting, j.ID())
	p.counters.running.Add(1)
	defer p.counters.running.Add(-1)

	_, span := p.tracer.Start(context.Background(), "threadpool.job",
		trace.WithAttributes(
			attribute.String("threadpool.pool", p.name),
			attribute.Int("threadpool.worker", w.id),
			attribute.String("threadpool.job", j.ID()),
		))
	defer span.End()

	startAt := time.Now()
	returned := false

	defer func() {
		err = recovery.HandlePanicWithError(recover(), nil, "job execution")
		if err == nil && !returned {
			err = errors.New("job exited its goroutine without returning")
		}

		duration := time.Since(startAt)

		w.mu.Lock()
		w.jobsRun++
		w.mu.Unlock()

		r := message.Fields{
			"job":           j.ID(),
			"pool":          p.name,
			"worker":        w.id,
			"duration_secs": duration.Seconds(),
		}

		if err != nil {
			// a fault aborts this worker; the pool does not replace it
			err = threadpool.NewJobExecutionFault(j.ID(), w.id, err)
			p.counters.faulted.Add(1)
			p.catcher.Add(err)
			w.setState(threadpool.WorkerFaulted, "")

			span.RecordError(err)
			span.SetStatus(codes.Error, "job aborted worker")

			grip.Error(message.WrapError(err, r))
			return
		}

		p.counters.completed.Add(1)
		p.recordRuntime(duration)
		w.setState(threadpool.WorkerIdle, "")

		grip.Debug(r)
	}()

	j.Run()
	returned = true

	return nil
}
