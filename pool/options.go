package pool

import (
	"github.com/mongodb/threadpool"
	"go.opentelemetry.io/otel/trace"
)

// Option is a functional option for configuring LocalWorkers.
type Option func(*options)

type options struct {
	name       string
	tracer     trace.Tracer
	dispatcher threadpool.Dispatcher
}

// WithName sets the name the pool uses in log messages and
// stats. Defaults to a name derived from a random UUID.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithTracer sets the tracer used to record a span for every job
// execution. Defaults to the tracer from the global otel provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithDispatcher injects the dispatcher the workers consume
// from. The dispatcher must be open and must not be shared with
// another pool. Defaults to a new queue.Unbounded.
func WithDispatcher(d threadpool.Dispatcher) Option {
	return func(o *options) {
		if d != nil {
			o.dispatcher = d
		}
	}
}
