/*
Local Workers Pool

LocalWorkers spawns a collection of (n) workers at construction time,
and dispatches jobs to worker goroutines which consume work items from
the dispatcher's Next() method.
*/
package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/VividCortex/ewma"
	"github.com/google/uuid"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/mongodb/threadpool"
	"github.com/mongodb/threadpool/job"
	"github.com/mongodb/threadpool/queue"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/mongodb/threadpool/pool"

// LocalWorkers is a fixed-size worker pool. It owns its workers and
// the submitting end of its dispatcher; Shutdown releases both.
type LocalWorkers struct {
	name    string
	workers []*worker
	queue   threadpool.Dispatcher
	tracer  trace.Tracer
	catcher grip.Catcher

	live     atomic.Int64
	counters struct {
		submitted atomic.Int64
		completed atomic.Int64
		faulted   atomic.Int64
		running   atomic.Int64
	}
	runtime struct {
		avg ewma.MovingAverage
		sync.Mutex
	}

	closer sync.Once
	joined chan struct{}
}

// NewLocalWorkers is a constructor for LocalWorkers objects, and
// takes the number of workers and any options. Returns an
// InvalidSize error, and starts no workers, if numWorkers is not
// positive. Otherwise every worker is running when the constructor
// returns.
func NewLocalWorkers(numWorkers int, opts ...Option) (*LocalWorkers, error) {
	if numWorkers <= 0 {
		return nil, threadpool.NewInvalidSizeError(numWorkers)
	}

	conf := &options{}
	for _, opt := range opts {
		opt(conf)
	}

	if conf.name == "" {
		conf.name = fmt.Sprintf("pool.%s", uuid.New().String())
	}
	if conf.tracer == nil {
		conf.tracer = otel.Tracer(tracerName)
	}
	if conf.dispatcher == nil {
		conf.dispatcher = queue.NewUnbounded()
	}

	if conf.dispatcher.Closed() {
		return nil, errors.New("cannot construct a pool with a closed dispatcher")
	}

	p := &LocalWorkers{
		name:    conf.name,
		queue:   conf.dispatcher,
		tracer:  conf.tracer,
		catcher: grip.NewBasicCatcher(),
		workers: make([]*worker, 0, numWorkers),
		joined:  make(chan struct{}),
	}
	p.runtime.avg = ewma.NewMovingAverage()

	p.live.Store(int64(numWorkers))
	for id := 1; id <= numWorkers; id++ {
		w := newWorker(id, p)
		p.workers = append(p.workers, w)
		w.start()
	}

	grip.Debug(message.Fields{
		"message": "started worker pool",
		"pool":    p.name,
		"size":    numWorkers,
	})

	return p, nil
}

// Name returns the name of the pool.
func (p *LocalWorkers) Name() string { return p.name }

// Size returns the number of workers the pool was created with.
func (p *LocalWorkers) Size() int { return len(p.workers) }

// Live returns the number of workers that have not exited. Live is
// smaller than Size after a job fault or once shutdown has begun.
func (p *LocalWorkers) Live() int { return int(p.live.Load()) }

// Execute wraps fn as a job and submits it to the pool.
func (p *LocalWorkers) Execute(fn func()) error {
	if fn == nil {
		return errors.New("cannot execute a nil function")
	}

	return p.Put(job.NewFunc(fn))
}

// Put submits a job to the pool. It is safe to call from many
// goroutines. Once shutdown has begun Put returns a ChannelClosed
// error and the job never runs.
func (p *LocalWorkers) Put(j threadpool.Job) error {
	if j == nil {
		return errors.New("cannot submit a nil job")
	}

	// count before enqueuing so stats never report more finished
	// jobs than submitted ones
	p.counters.submitted.Add(1)
	if err := p.queue.Put(j); err != nil {
		p.counters.submitted.Add(-1)
		return errors.Wrapf(err, "problem submitting job '%s' to pool '%s'", j.ID(), p.name)
	}

	return nil
}

// Stats returns a snapshot of the pool's counters.
func (p *LocalWorkers) Stats() threadpool.PoolStats {
	p.runtime.Lock()
	avg := time.Duration(p.runtime.avg.Value())
	p.runtime.Unlock()

	return threadpool.PoolStats{
		Name:           p.name,
		Size:           p.Size(),
		Live:           p.Live(),
		Submitted:      int(p.counters.submitted.Load()),
		Completed:      int(p.counters.completed.Load()),
		Faulted:        int(p.counters.faulted.Load()),
		Running:        int(p.counters.running.Load()),
		Pending:        p.queue.Len(),
		AverageRuntime: avg,
		Closed:         p.queue.Closed(),
	}
}

// Workers returns the state of every worker, ordered by id.
func (p *LocalWorkers) Workers() []threadpool.WorkerInfo {
	out := make([]threadpool.WorkerInfo, 0, len(p.workers))
	for _, w := range p.workers {
		out = append(out, w.info())
	}
	return out
}

// Error returns an error object with the concatenated contents of all
// job faults, if there are any.
func (p *LocalWorkers) Error() error {
	return p.catcher.Resolve()
}

// Shutdown closes the dispatcher and blocks until every worker has
// exited. Workers finish the jobs already queued before they exit. A
// job that never returns makes Shutdown block forever. Only the first
// call closes the pool; later calls wait for the same join.
func (p *LocalWorkers) Shutdown() {
	p.startShutdown()
	<-p.joined
}

// ShutdownCtx begins the same shutdown as Shutdown, but returns the
// context's error if the workers have not all exited before the
// context is done. Workers are not interrupted: a later call to
// Shutdown still waits for them.
func (p *LocalWorkers) ShutdownCtx(ctx context.Context) error {
	p.startShutdown()

	select {
	case <-p.joined:
		return nil
	case <-ctx.Done():
		return errors.Wrapf(ctx.Err(), "waiting for workers in pool '%s'", p.name)
	}
}

func (p *LocalWorkers) startShutdown() {
	p.closer.Do(func() {
		p.queue.Close()

		go func() {
			defer close(p.joined)

			for _, w := range p.workers {
				grip.Debug(message.Fields{
					"message": "shutting down worker",
					"pool":    p.name,
					"worker":  w.id,
				})
				w.join()
			}

			grip.Info(message.Fields{
				"message":   "all workers have exited",
				"pool":      p.name,
				"size":      p.Size(),
				"completed": p.counters.completed.Load(),
				"faulted":   p.counters.faulted.Load(),
			})
		}()
	})
}

func (p *LocalWorkers) recordRuntime(d time.Duration) {
	p.runtime.Lock()
	defer p.runtime.Unlock()

	p.runtime.avg.Add(float64(d))
}

var _ threadpool.Runner = &LocalWorkers{}
