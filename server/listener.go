// Package server provides a minimal TCP web server that hands every
// accepted connection to a threadpool.Runner as a single job.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/mongodb/threadpool"
	"github.com/mongodb/threadpool/job"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const (
	defaultReadTimeout = 30 * time.Second

	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// Option is a functional option for configuring a Listener.
type Option func(*Listener)

// WithRoot sets the directory that hello.html and 404.html are read
// from. Defaults to the working directory.
func WithRoot(dir string) Option {
	return func(l *Listener) {
		if dir != "" {
			l.root = dir
		}
	}
}

// WithAcceptRate limits how many accepted connections per second are
// submitted to the runner, allowing bursts of the given size.
func WithAcceptRate(perSecond float64, burst int) Option {
	return func(l *Listener) {
		if perSecond > 0 && burst > 0 {
			l.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithReadTimeout bounds how long a connection job waits for the
// client to send its request. Zero disables the deadline.
func WithReadTimeout(d time.Duration) Option {
	return func(l *Listener) {
		if d >= 0 {
			l.readTimeout = d
		}
	}
}

// Listener accepts TCP connections and submits one job per connection
// to its runner. The runner is owned by the caller: Listener never
// shuts it down.
type Listener struct {
	addr        string
	root        string
	readTimeout time.Duration
	limiter     *rate.Limiter
	runner      threadpool.Runner

	mu    sync.Mutex
	ln    net.Listener
	ready chan struct{}
}

// NewListener constructs a listener for the address. The listener
// does not bind until Serve is called.
func NewListener(addr string, r threadpool.Runner, opts ...Option) (*Listener, error) {
	if r == nil {
		return nil, errors.New("cannot construct a listener without a runner")
	}

	l := &Listener{
		addr:        addr,
		root:        ".",
		readTimeout: defaultReadTimeout,
		runner:      r,
		ready:       make(chan struct{}),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l, nil
}

// Ready returns a channel that is closed once Serve has bound its
// socket.
func (l *Listener) Ready() <-chan struct{} { return l.ready }

// Addr returns the bound address, or nil before Serve has bound.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// Serve binds the listener and accepts connections until the context
// is canceled, in which case it returns nil. Accept errors are logged
// and do not stop the loop. Serve returns an error if the socket
// cannot be bound or the runner stops accepting jobs.
func (l *Listener) Serve(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", l.addr)
	if err != nil {
		return errors.Wrapf(err, "problem listening on '%s'", l.addr)
	}

	l.mu.Lock()
	l.ln = ln
	l.mu.Unlock()
	close(l.ready)

	grip.Info(message.Fields{
		"message": "listening for connections",
		"addr":    ln.Addr().String(),
		"root":    l.root,
	})

	return l.serve(ctx, ln)
}

// serve runs the accept loop on a bound listener and closes it when
// the loop exits.
func (l *Listener) serve(ctx context.Context, ln net.Listener) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		grip.Warning(message.WrapError(ln.Close(), "problem closing listener"))
	}()

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			delay = nextAcceptDelay(delay)
			grip.Warning(message.WrapError(err, message.Fields{
				"message": "failed accepting connection; retrying",
				"addr":    l.addr,
				"delay":   delay.String(),
			}))

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
			continue
		}
		delay = 0

		if l.limiter != nil {
			if err := l.limiter.Wait(ctx); err != nil {
				_ = conn.Close()
				return nil
			}
		}

		if err := l.dispatch(conn); err != nil {
			_ = conn.Close()
			if threadpool.IsChannelClosedError(err) {
				return errors.Wrap(err, "runner stopped accepting connections")
			}
			grip.Warning(err)
		}
	}
}

// nextAcceptDelay doubles the wait after a failed accept, starting at
// minAcceptDelay and capped at maxAcceptDelay.
func nextAcceptDelay(prev time.Duration) time.Duration {
	if prev <= 0 {
		return minAcceptDelay
	}
	if next := 2 * prev; next < maxAcceptDelay {
		return next
	}
	return maxAcceptDelay
}

func (l *Listener) dispatch(conn net.Conn) error {
	name := fmt.Sprintf("conn.%s.%d", conn.RemoteAddr(), job.GetNumber())

	return l.runner.Put(job.NewNamedFunc(name, func() {
		l.handleConnection(conn)
	}))
}
