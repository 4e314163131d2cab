// Package rest provides a read-only HTTP interface to a running
// threadpool.Runner, and a client for it.
package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/evergreen-ci/gimlet"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/mongodb/threadpool"
	"github.com/pkg/errors"
)

// StatusService exposes the stats of a runner over HTTP.
type StatusService struct {
	runner threadpool.Runner
	app    *gimlet.APIApp
}

// NewStatusService constructs a service for the runner.
func NewStatusService(r threadpool.Runner) (*StatusService, error) {
	if r == nil {
		return nil, errors.New("cannot construct a status service without a runner")
	}

	return &StatusService{runner: r}, nil
}

// App provides access to the gimlet.APIApp instance which builds the
// REST API. Use this method if you want to combine the routes in this
// Service with another service.
func (s *StatusService) App() *gimlet.APIApp {
	if s.app == nil {
		s.app = gimlet.NewApp()

		s.app.AddRoute("/status").Version(1).Get().Handler(s.Status)
		s.app.AddRoute("/workers").Version(1).Get().Handler(s.Workers)
	}

	return s.app
}

// Handler resolves the application and returns its router.
func (s *StatusService) Handler() (http.Handler, error) {
	app := s.App()
	if err := app.Resolve(); err != nil {
		return nil, errors.Wrap(err, "problem resolving status application")
	}

	router, err := app.Router()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return router, nil
}

// Run serves the status API on the port until the context is
// canceled.
func (s *StatusService) Run(ctx context.Context, port int) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		grip.Warning(message.WrapError(srv.Shutdown(sctx), "problem shutting down status service"))
	}()

	grip.Info(message.Fields{
		"message": "starting status service",
		"port":    port,
	})

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrapf(err, "status service on port %d", port)
	}

	return nil
}

// Status writes the runner's PoolStats as JSON.
func (s *StatusService) Status(rw http.ResponseWriter, r *http.Request) {
	gimlet.WriteJSON(rw, s.runner.Stats())
}

// Workers writes the runner's worker states as JSON.
func (s *StatusService) Workers(rw http.ResponseWriter, r *http.Request) {
	gimlet.WriteJSON(rw, s.runner.Workers())
}
