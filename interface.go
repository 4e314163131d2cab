package threadpool

// Job describes a single deferred unit of work. Implementations of
// Job are the content of a Dispatcher. A Job is handed to exactly one
// worker and its Run method is called at most once; nothing is
// returned to the submitter, so Jobs are responsible for reporting
// their own failures (e.g. by logging).
type Job interface {
	// Provides an identifier for the job, used in log messages and
	// fault reports. Identifiers need not be unique.
	ID() string

	// The primary execution method for the job. A panic in Run is
	// fatal to the worker executing the job.
	Run()
}

// Dispatcher describes the queue that carries Jobs from submitters to
// workers. Many submitters may call Put and many workers may call
// Next concurrently; every Job that Put accepts is returned by exactly
// one call to Next.
type Dispatcher interface {
	// Put adds a job to the tail of the queue. Returns a
	// ChannelClosed error if Close has been called. Put does not
	// block.
	Put(Job) error

	// Next blocks until a job is available, and returns it with a
	// true value. Once the dispatcher is closed and drained, Next
	// returns nil and false, signaling end-of-stream.
	Next() (Job, bool)

	// Close stops the dispatcher from accepting new jobs. Jobs that
	// are already queued are still delivered. Close is idempotent.
	Close()

	// Closed reports if Close has been called.
	Closed() bool

	// Len returns the number of queued jobs that no worker has
	// received yet.
	Len() int
}

// Runner describes a fixed set of workers that execute jobs drawn
// from a shared Dispatcher. The pool/LocalWorkers type is the primary
// implementation.
type Runner interface {
	// Execute wraps the function as a Job and submits it.
	Execute(func()) error

	// Put submits a job. Returns a ChannelClosed error once
	// shutdown has begun.
	Put(Job) error

	// Size returns the number of workers the runner was created
	// with.
	Size() int

	// Live returns the number of workers that have not exited.
	Live() int

	// Stats returns a snapshot of the runner's counters.
	Stats() PoolStats

	// Workers returns a snapshot of the state of every worker,
	// ordered by worker id.
	Workers() []WorkerInfo

	// Shutdown closes submission and blocks until every worker has
	// exited. Only the first call has any effect.
	Shutdown()

	// Error returns an aggregated error for all job faults
	// observed by the runner, or nil.
	Error() error
}
