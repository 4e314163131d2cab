package operations

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/mongodb/threadpool"
	"github.com/mongodb/threadpool/pool"
	"github.com/mongodb/threadpool/rest"
	"github.com/mongodb/threadpool/server"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"
)

const (
	workersFlagName    = "workers"
	addrFlagName       = "addr"
	rootFlagName       = "root"
	statusPortFlagName = "status-port"
	acceptRateFlagName = "accept-rate"
	burstFlagName      = "burst"
	configFlagName     = "config"
	logLevelFlagName   = "log-level"

	statsLogInterval = time.Minute
)

// Serve returns the command that serves pages through a worker pool.
func Serve() cli.Command {
	return cli.Command{
		Name:  "serve",
		Usage: "serve pages, handling every connection on a fixed-size worker pool",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  configFlagName,
				Usage: "path to a YAML config file; flags override its values",
			},
			cli.IntFlag{
				Name:  workersFlagName,
				Usage: "number of workers in the pool (defaults to the number of CPUs)",
			},
			cli.StringFlag{
				Name:  addrFlagName,
				Usage: "address to accept connections on (default " + defaultAddr + ")",
			},
			cli.StringFlag{
				Name:  rootFlagName,
				Usage: "directory containing hello.html and 404.html",
			},
			cli.IntFlag{
				Name:  statusPortFlagName,
				Usage: "port for the status service",
			},
			cli.Float64Flag{
				Name:  acceptRateFlagName,
				Usage: "maximum connections accepted per second (0 is unlimited)",
			},
			cli.IntFlag{
				Name:  burstFlagName,
				Usage: "connections accepted in a burst above the accept rate",
			},
			cli.StringFlag{
				Name:  logLevelFlagName,
				Usage: "log threshold (debug, info, notice, warning, error)",
			},
		},
		Action: func(c *cli.Context) error {
			conf, err := configFromContext(c)
			if err != nil {
				return err
			}

			if err := setupLogging("threadpool", conf.Log); err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return serve(ctx, conf)
		},
	}
}

func configFromContext(c *cli.Context) (*Config, error) {
	conf := &Config{}
	if path := c.String(configFlagName); path != "" {
		var err error
		if conf, err = LoadConfig(path); err != nil {
			return nil, err
		}
	}

	if c.IsSet(workersFlagName) {
		conf.Workers = c.Int(workersFlagName)
	}
	if c.IsSet(addrFlagName) {
		conf.Addr = c.String(addrFlagName)
	}
	if c.IsSet(rootFlagName) {
		conf.Root = c.String(rootFlagName)
	}
	if c.IsSet(statusPortFlagName) {
		conf.StatusPort = c.Int(statusPortFlagName)
	}
	if c.IsSet(acceptRateFlagName) {
		conf.AcceptRate = c.Float64(acceptRateFlagName)
	}
	if c.IsSet(burstFlagName) {
		conf.Burst = c.Int(burstFlagName)
	}
	if c.IsSet(logLevelFlagName) {
		conf.Log.Level = c.String(logLevelFlagName)
	}

	if err := conf.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	return conf, nil
}

// serve runs the page listener and the status service until the
// context is canceled, then shuts the pool down so connections that
// were already accepted are answered.
func serve(ctx context.Context, conf *Config) error {
	p, err := pool.NewLocalWorkers(conf.Workers, pool.WithName("threadpool.serve"))
	if err != nil {
		return errors.Wrap(err, "problem constructing pool")
	}

	listener, err := server.NewListener(conf.Addr, p,
		server.WithRoot(conf.Root),
		server.WithAcceptRate(conf.AcceptRate, conf.Burst))
	if err != nil {
		p.Shutdown()
		return err
	}

	status, err := rest.NewStatusService(p)
	if err != nil {
		p.Shutdown()
		return err
	}

	grip.Info(message.Fields{
		"message":     "starting threadpool server",
		"workers":     conf.Workers,
		"addr":        conf.Addr,
		"root":        conf.Root,
		"status_port": conf.StatusPort,
		"accept_rate": conf.AcceptRate,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return listener.Serve(gctx) })
	g.Go(func() error { return status.Run(gctx, conf.StatusPort) })
	threadpool.PeriodicRunnerOperation(gctx, p, threadpool.LogStatsOperation(), statsLogInterval, true)

	err = g.Wait()
	p.Shutdown()

	grip.Warning(message.WrapError(p.Error(), "connection jobs faulted"))
	grip.Info(message.Fields{
		"message": "threadpool server stopped",
		"stats":   p.Stats(),
	})

	return err
}
