package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
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
	grip.SetName("threadpool.rest.tests")
	grip.Error(grip.SetSender(send.MakeNative()))

	lvl := grip.GetSender().Level()
	lvl.Threshold = level.Error
	_ = grip.GetSender().SetLevel(lvl)
}

func newRunner(t *testing.T, size int) threadpool.Runner {
	p, err := pool.NewLocalWorkers(size, pool.WithName("rest-test"))
	require.NoError(t, err)
	t.Cleanup(p.Shutdown)
	return p
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	c, err := NewClientFromExisting(srv.Client(), "http://"+u.Hostname(), port)
	require.NoError(t, err)
	return c
}

func TestNewStatusServiceRequiresRunner(t *testing.T) {
	s, err := NewStatusService(nil)
	assert.Error(t, err)
	assert.Nil(t, s)
}

func TestStatusHandlers(t *testing.T) {
	r := newRunner(t, 3)
	require.NoError(t, r.Execute(func() {}))
	threadpool.WaitInterval(r, 5*time.Millisecond)

	s, err := NewStatusService(r)
	require.NoError(t, err)

	t.Run("Status", func(t *testing.T) {
		rw := httptest.NewRecorder()
		s.Status(rw, httptest.NewRequest(http.MethodGet, "/v1/status", nil))
		require.Equal(t, http.StatusOK, rw.Code)

		stats := threadpool.PoolStats{}
		require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &stats))
		assert.Equal(t, "rest-test", stats.Name)
		assert.Equal(t, 3, stats.Size)
		assert.Equal(t, 1, stats.Submitted)
		assert.Equal(t, 1, stats.Completed)
	})
	t.Run("Workers", func(t *testing.T) {
		rw := httptest.NewRecorder()
		s.Workers(rw, httptest.NewRequest(http.MethodGet, "/v1/workers", nil))
		require.Equal(t, http.StatusOK, rw.Code)

		workers := []threadpool.WorkerInfo{}
		require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &workers))
		require.Len(t, workers, 3)
		for idx, w := range workers {
			assert.Equal(t, idx+1, w.ID)
		}
	})
	t.Run("Routing", func(t *testing.T) {
		handler, err := s.Handler()
		require.NoError(t, err)

		rw := httptest.NewRecorder()
		handler.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/v1/status", nil))
		assert.Equal(t, http.StatusOK, rw.Code)

		rw = httptest.NewRecorder()
		handler.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/v1/missing", nil))
		assert.Equal(t, http.StatusNotFound, rw.Code)
	})
}

func TestClientRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r := newRunner(t, 2)
	s, err := NewStatusService(r)
	require.NoError(t, err)

	handler, err := s.Handler()
	require.NoError(t, err)

	srv := httptest.NewServer(handler)
	defer srv.Close()

	c := newTestClient(t, srv)

	release := make(chan struct{})
	require.NoError(t, r.Put(job.NewNamedFunc("blocker", func() { <-release })))

	t.Run("Status", func(t *testing.T) {
		stats, err := c.Status(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.Size)
		assert.Equal(t, 1, stats.Submitted)
	})
	t.Run("Workers", func(t *testing.T) {
		workers, err := c.Workers(ctx)
		require.NoError(t, err)
		assert.Len(t, workers, 2)
	})
	t.Run("WaitAllTimesOutWhileJobRuns", func(t *testing.T) {
		wctx, wcancel := context.WithTimeout(ctx, 250*time.Millisecond)
		defer wcancel()
		assert.False(t, c.WaitAll(wctx))
	})
	t.Run("WaitAllReturnsWhenDone", func(t *testing.T) {
		close(release)
		assert.True(t, c.WaitAll(ctx))
	})
}

func TestClientReportsHTTPErrors(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := newTestClient(t, srv)

	stats, err := c.Status(ctx)
	assert.Error(t, err)
	assert.Nil(t, stats)

	workers, err := c.Workers(ctx)
	assert.Error(t, err)
	assert.Nil(t, workers)
}

func TestClientConfiguration(t *testing.T) {
	t.Run("RejectsNonHTTPHost", func(t *testing.T) {
		c, err := NewClient("localhost", 3000)
		assert.Error(t, err)
		assert.Nil(t, c)
	})
	t.Run("InvalidPortFallsBack", func(t *testing.T) {
		c, err := NewClient("http://localhost", 3000)
		require.NoError(t, err)

		for _, p := range []int{0, -1, maxClientPort + 1} {
			assert.Error(t, c.SetPort(p))
			assert.Equal(t, defaultClientPort, c.Port())
		}

		assert.NoError(t, c.SetPort(maxClientPort))
		assert.Equal(t, maxClientPort, c.Port())

		assert.NoError(t, c.SetPort(8080))
		assert.Equal(t, 8080, c.Port())
	})
	t.Run("RequiresExistingClient", func(t *testing.T) {
		c, err := NewClientFromExisting(nil, "http://localhost", 3000)
		assert.Error(t, err)
		assert.Nil(t, c)
	})
	t.Run("URLConstruction", func(t *testing.T) {
		c, err := NewClient("http://localhost/", 80)
		require.NoError(t, err)
		assert.Equal(t, "http://localhost", c.Host())
		assert.Equal(t, "http://localhost/v1/status", c.getURL("/v1/status"))

		require.NoError(t, c.SetPort(2285))
		assert.Equal(t, "http://localhost:2285/v1/status", c.getURL("v1/status/"))
		assert.Equal(t, "http://localhost:2285", c.getURL(""))
	})
}
