package threadpool_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/level"
	"github.com/mongodb/grip/send"
	"github.com/mongodb/threadpool"
	"github.com/mongodb/threadpool/job"
	"github.com/mongodb/threadpool/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	grip.SetName("threadpool.tests")
	grip.Error(grip.SetSender(send.MakeNative()))

	lvl := grip.GetSender().Level()
	lvl.Threshold = level.Emergency
	_ = grip.GetSender().SetLevel(lvl)
}

func newPool(t *testing.T, size int) *pool.LocalWorkers {
	p, err := pool.NewLocalWorkers(size)
	require.NoError(t, err)
	t.Cleanup(p.Shutdown)
	return p
}

func TestWaitHelpers(t *testing.T) {
	for name, wait := range map[string]func(threadpool.Runner){
		"Wait":         threadpool.Wait,
		"WaitInterval": func(r threadpool.Runner) { threadpool.WaitInterval(r, time.Millisecond) },
		"WaitCtx": func(r threadpool.Runner) {
			assert.True(t, threadpool.WaitCtx(context.Background(), r))
		},
		"WaitCtxInterval": func(r threadpool.Runner) {
			assert.True(t, threadpool.WaitCtxInterval(context.Background(), r, time.Millisecond))
		},
	} {
		t.Run(name, func(t *testing.T) {
			p := newPool(t, 4)
			var count atomic.Int64
			for i := 0; i < 50; i++ {
				require.NoError(t, p.Execute(func() {
					time.Sleep(time.Millisecond)
					count.Add(1)
				}))
			}

			wait(p)

			assert.Equal(t, int64(50), count.Load())
			assert.Equal(t, 4, p.Live())
		})
	}
}

func TestWaitCountsFaultsAsFinished(t *testing.T) {
	p := newPool(t, 2)
	require.NoError(t, p.Execute(func() { panic("fault") }))
	require.NoError(t, p.Execute(func() {}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.True(t, threadpool.WaitCtxInterval(ctx, p, time.Millisecond))

	stats := p.Stats()
	assert.Equal(t, 2, stats.Finished())
}

func TestWaitCtxReturnsFalseWhenCanceled(t *testing.T) {
	p := newPool(t, 1)
	release := make(chan struct{})
	require.NoError(t, p.Execute(func() { <-release }))
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.False(t, threadpool.WaitCtx(ctx, p))

	ctx, cancel = context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.False(t, threadpool.WaitCtxInterval(ctx, p, time.Millisecond))
}

func TestRunnerOperations(t *testing.T) {
	t.Run("SubmitJob", func(t *testing.T) {
		p := newPool(t, 2)
		var count atomic.Int64
		op := threadpool.SubmitJobFactory(func() threadpool.Job {
			return job.NewFunc(func() { count.Add(1) })
		})
		require.NoError(t, op(p))
		threadpool.WaitInterval(p, time.Millisecond)
		assert.Equal(t, int64(1), count.Load())
	})
	t.Run("SubmitManyJobs", func(t *testing.T) {
		p := newPool(t, 2)
		var count atomic.Int64
		op := threadpool.SubmitManyJobsFactory(func() []threadpool.Job {
			out := []threadpool.Job{}
			for i := 0; i < 10; i++ {
				out = append(out, job.NewFunc(func() { count.Add(1) }))
			}
			return out
		})
		require.NoError(t, op(p))
		threadpool.WaitInterval(p, time.Millisecond)
		assert.Equal(t, int64(10), count.Load())
	})
	t.Run("SubmitManyJobsAggregatesErrors", func(t *testing.T) {
		p := newPool(t, 2)
		p.Shutdown()
		op := threadpool.SubmitManyJobsFactory(func() []threadpool.Job {
			return []threadpool.Job{job.NewFunc(nil), job.NewFunc(nil)}
		})
		assert.Error(t, op(p))
	})
	t.Run("Group", func(t *testing.T) {
		p := newPool(t, 1)
		calls := 0
		counter := func(threadpool.Runner) error { calls++; return nil }
		op := threadpool.GroupRunnerOperationFactory(counter, counter, threadpool.LogStatsOperation())
		require.NoError(t, op(p))
		assert.Equal(t, 2, calls)
	})
	t.Run("Periodic", func(t *testing.T) {
		p := newPool(t, 1)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var calls atomic.Int64
		threadpool.PeriodicRunnerOperation(ctx, p, func(threadpool.Runner) error {
			calls.Add(1)
			return nil
		}, time.Millisecond, false)

		require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	})
}
