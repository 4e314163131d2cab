// Package job provides generic implementations of the threadpool.Job
// interface.
package job

import "sync/atomic"

var jobIDSource atomic.Int64

// GetNumber is a source of safe monotonically increasing integers
// for use in Job ids.
func GetNumber() int {
	return int(jobIDSource.Add(1))
}
