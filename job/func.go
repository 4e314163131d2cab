package job

import (
	"fmt"
	"sync"

	"github.com/mongodb/threadpool"
)

// Func is a threadpool.Job implementation that wraps a function with
// no arguments and no return value. The wrapped function is called at
// most once, even if Run is called more than once.
type Func struct {
	name string
	fn   func()
	once sync.Once
}

// NewFunc constructs a Func job with an automatically assigned id.
func NewFunc(fn func()) *Func {
	return NewNamedFunc(fmt.Sprintf("%d.func-job", GetNumber()), fn)
}

// NewNamedFunc constructs a Func job with the specified id.
func NewNamedFunc(name string, fn func()) *Func {
	return &Func{name: name, fn: fn}
}

// ID returns the name of the job, and is a component of the Job
// interface.
func (j *Func) ID() string { return j.name }

// Run calls the wrapped function the first time it is called. A nil
// function is a no-op.
func (j *Func) Run() {
	j.once.Do(func() {
		if j.fn != nil {
			j.fn()
		}
	})
}

var _ threadpool.Job = &Func{}
