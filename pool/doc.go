/*
Package pool provides LocalWorkers, the fixed-size worker pool that
executes threadpool.Job values drawn from a shared Dispatcher.

Intentionally, the workers are simple: each one loops on the
dispatcher's Next method, runs the job it receives to completion, and
exits when the dispatcher reports end-of-stream. Shutdown closes the
dispatcher and joins the workers in ascending id order, so no job is
still running once it returns.

Job Faults

A job that panics aborts the worker running it. The panic is recovered
at the worker boundary, recorded as a threadpool.JobExecutionFault, and
the worker exits without being replaced. The pool's live capacity
drops by one for every fault; Live() and Stats().Faulted report it.
*/
package pool

// this file is intentional documentation only.
