package threadpool

import (
	"time"

	"github.com/mongodb/grip"
)

// PoolStats is a simple structure that the Stats() method in the
// Runner interface returns and tracks the state of the pool, and
// provides a common format for reporting on it.
type PoolStats struct {
	Name           string        `bson:"name" json:"name" yaml:"name"`
	Size           int           `bson:"size" json:"size" yaml:"size"`
	Live           int           `bson:"live" json:"live" yaml:"live"`
	Submitted      int           `bson:"submitted" json:"submitted" yaml:"submitted"`
	Completed      int           `bson:"completed" json:"completed" yaml:"completed"`
	Faulted        int           `bson:"faulted" json:"faulted" yaml:"faulted"`
	Running        int           `bson:"running" json:"running" yaml:"running"`
	Pending        int           `bson:"pending" json:"pending" yaml:"pending"`
	AverageRuntime time.Duration `bson:"average_runtime" json:"average_runtime" yaml:"average_runtime"`
	Closed         bool          `bson:"closed" json:"closed" yaml:"closed"`
}

// Finished returns the number of submitted jobs that will never run
// again, either because they completed or because they aborted their
// worker.
func (s PoolStats) Finished() int { return s.Completed + s.Faulted }

func (s PoolStats) isComplete() bool {
	grip.Debugf("%d jobs finished of %d submitted", s.Finished(), s.Submitted)
	return s.Submitted == s.Finished()
}

// WorkerState names a stage in a worker's lifecycle.
type WorkerState string

// Worker lifecycle states. Idle workers are blocked waiting for the
// dispatcher, and faulted workers exited because a job panicked.
const (
	WorkerCreated    WorkerState = "created"
	WorkerIdle       WorkerState = "idle"
	WorkerExecuting  WorkerState = "executing"
	WorkerTerminated WorkerState = "terminated"
	WorkerFaulted    WorkerState = "faulted"
)

// Exited reports if the state is terminal.
func (s WorkerState) Exited() bool {
	return s == WorkerTerminated || s == WorkerFaulted
}

// WorkerInfo is a point-in-time description of one worker.
type WorkerInfo struct {
	ID      int         `bson:"id" json:"id" yaml:"id"`
	State   WorkerState `bson:"state" json:"state" yaml:"state"`
	JobsRun int         `bson:"jobs_run" json:"jobs_run" yaml:"jobs_run"`
	Current string      `bson:"current,omitempty" json:"current,omitempty" yaml:"current,omitempty"`
}
