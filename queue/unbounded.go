/*
Local Unbounded Dispatcher

The unbounded dispatcher is the in-process queue that carries jobs from
submitters to the workers of a pool. It has no capacity limit, so Put
never blocks, and it dispatches jobs in first-in-first-out order: the
head of the queue goes to whichever waiting worker acquires the lock
first. Closing the dispatcher stops new submissions but lets workers
drain everything already queued before they observe end-of-stream.
*/
package queue

import (
	"sync"

	"github.com/mongodb/grip"
	"github.com/mongodb/threadpool"
	"github.com/pkg/errors"
)

// Unbounded implements threadpool.Dispatcher with a slice guarded by
// a mutex and a condition variable. The zero value is not usable;
// construct instances with NewUnbounded.
type Unbounded struct {
	mu     sync.Mutex
	ready  *sync.Cond
	jobs   []threadpool.Job
	head   int
	closed bool

	counters struct {
		put       int
		delivered int
	}
}

// NewUnbounded constructs an open, empty dispatcher.
func NewUnbounded() *Unbounded {
	q := &Unbounded{}
	q.ready = sync.NewCond(&q.mu)
	return q
}

// Put adds a job to the tail of the queue and wakes one waiting
// worker. Returns a ChannelClosed error if the dispatcher is closed.
func (q *Unbounded) Put(j threadpool.Job) error {
	if j == nil {
		return errors.New("cannot dispatch a nil job")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return threadpool.NewChannelClosedErrorf("cannot dispatch '%s', dispatcher is closed", j.ID())
	}

	q.jobs = append(q.jobs, j)
	q.counters.put++
	q.ready.Signal()

	return nil
}

// Next removes and returns the job at the head of the queue, blocking
// while the queue is empty and open. Returns nil and false once the
// queue is closed and empty.
func (q *Unbounded) Next() (threadpool.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.head == len(q.jobs) && !q.closed {
		q.ready.Wait()
	}

	if q.head == len(q.jobs) {
		return nil, false
	}

	j := q.jobs[q.head]
	q.jobs[q.head] = nil
	q.head++
	q.counters.delivered++

	// reclaim the consumed prefix once it dominates the backing array
	if q.head > 64 && q.head*2 >= len(q.jobs) {
		n := copy(q.jobs, q.jobs[q.head:])
		for i := n; i < len(q.jobs); i++ {
			q.jobs[i] = nil
		}
		q.jobs = q.jobs[:n]
		q.head = 0
	}

	return j, true
}

// Close marks the dispatcher closed and wakes every waiting worker.
// Subsequent calls are no-ops.
func (q *Unbounded) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	q.ready.Broadcast()

	grip.Debugf("dispatcher closed with %d pending jobs", len(q.jobs)-q.head)
}

// Closed reports if Close has been called.
func (q *Unbounded) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.closed
}

// Len returns the number of jobs waiting for a worker.
func (q *Unbounded) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.jobs) - q.head
}

// counts returns the total number of jobs accepted by Put and the
// number handed to workers by Next.
func (q *Unbounded) counts() (put, delivered int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.counters.put, q.counters.delivered
}

var _ threadpool.Dispatcher = &Unbounded{}
