package threadpool

import (
	"fmt"

	"github.com/pkg/errors"
)

type invalidSizeError struct {
	size int
}

func (e *invalidSizeError) Error() string {
	return fmt.Sprintf("invalid pool size %d, pools must have at least one worker", e.size)
}

// NewInvalidSizeError creates an error that reports an attempt to
// construct a pool with a size that is not strictly positive.
func NewInvalidSizeError(size int) error { return &invalidSizeError{size: size} }

// IsInvalidSizeError tests an error object to see if it is an invalid
// size error.
func IsInvalidSizeError(err error) bool {
	if err == nil {
		return false
	}

	_, ok := errors.Cause(err).(*invalidSizeError)
	return ok
}

type channelClosedError struct {
	msg string
}

func (e *channelClosedError) Error() string { return e.msg }

// NewChannelClosedError creates an error object to represent a
// submission to a dispatcher that no longer accepts jobs.
func NewChannelClosedError(msg string) error { return &channelClosedError{msg: msg} }

// NewChannelClosedErrorf creates a channel closed error with a
// formatted message.
func NewChannelClosedErrorf(msg string, args ...interface{}) error {
	return NewChannelClosedError(fmt.Sprintf(msg, args...))
}

// IsChannelClosedError tests an error object to see if it is a
// channel closed error.
func IsChannelClosedError(err error) bool {
	if err == nil {
		return false
	}

	_, ok := errors.Cause(err).(*channelClosedError)
	return ok
}

// JobExecutionFault records a job that aborted the worker running
// it. Faults are never returned to submitters; runners collect them
// and expose them through their Error method.
type JobExecutionFault struct {
	JobID    string
	WorkerID int
	Cause    error
}

func (e *JobExecutionFault) Error() string {
	return fmt.Sprintf("job '%s' aborted worker %d: %v", e.JobID, e.WorkerID, e.Cause)
}

// NewJobExecutionFault constructs a fault for the named job and
// worker from the error recovered while running the job.
func NewJobExecutionFault(jobID string, workerID int, cause error) error {
	return &JobExecutionFault{JobID: jobID, WorkerID: workerID, Cause: cause}
}

// IsJobExecutionFault tests an error object to see if it is a job
// execution fault.
func IsJobExecutionFault(err error) bool {
	if err == nil {
		return false
	}

	_, ok := errors.Cause(err).(*JobExecutionFault)
	return ok
}
