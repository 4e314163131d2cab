package operations

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/mongodb/threadpool"
	"github.com/mongodb/threadpool/job"
	"github.com/mongodb/threadpool/pool"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli"
)

const (
	jobsFlagName    = "jobs"
	sleepFlagName   = "sleep"
	timeoutFlagName = "timeout"
)

var (
	benchBold  = color.New(color.Bold)
	benchGreen = color.New(color.FgGreen)
	benchRed   = color.New(color.FgRed)
)

// BenchOptions describes one benchmark run.
type BenchOptions struct {
	Workers int
	Jobs    int
	Sleep   time.Duration
	Timeout time.Duration
}

// Validate fills in defaults and reports unusable values.
func (o *BenchOptions) Validate() error {
	if o.Workers <= 0 {
		return threadpool.NewInvalidSizeError(o.Workers)
	}
	if o.Jobs <= 0 {
		return errors.Errorf("must submit at least one job, not %d", o.Jobs)
	}
	if o.Sleep < 0 {
		return errors.New("sleep cannot be negative")
	}
	if o.Timeout <= 0 {
		o.Timeout = time.Hour
	}

	return nil
}

// BenchResult reports the outcome of a benchmark run.
type BenchResult struct {
	Workers       int
	Jobs          int
	Elapsed       time.Duration
	Stats         threadpool.PoolStats
	JobsPerSecond float64
	IdealElapsed  time.Duration
	TimedOut      bool
}

// Bench returns the command that measures pool throughput with
// sleeping jobs.
func Bench() cli.Command {
	return cli.Command{
		Name:  "bench",
		Usage: "submit sleeping jobs to a pool and report throughput",
		Flags: []cli.Flag{
			cli.IntFlag{
				Name:  workersFlagName,
				Usage: "number of workers in the pool",
				Value: 4,
			},
			cli.IntFlag{
				Name:  jobsFlagName,
				Usage: "number of jobs to submit",
				Value: 100,
			},
			cli.DurationFlag{
				Name:  sleepFlagName,
				Usage: "how long each job sleeps",
				Value: 10 * time.Millisecond,
			},
			cli.DurationFlag{
				Name:  timeoutFlagName,
				Usage: "give up waiting for jobs after this long",
				Value: 10 * time.Minute,
			},
		},
		Action: func(c *cli.Context) error {
			opts := BenchOptions{
				Workers: c.Int(workersFlagName),
				Jobs:    c.Int(jobsFlagName),
				Sleep:   c.Duration(sleepFlagName),
				Timeout: c.Duration(timeoutFlagName),
			}

			bar := progressbar.NewOptions(opts.Jobs,
				progressbar.OptionSetDescription("Running jobs"),
				progressbar.OptionSetWidth(50),
				progressbar.OptionShowCount(),
				progressbar.OptionShowIts(),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionThrottle(65*time.Millisecond),
				progressbar.OptionClearOnFinish(),
			)

			res, err := RunBench(context.Background(), opts, func() { _ = bar.Add(1) })
			_ = bar.Finish()
			if err != nil {
				return err
			}

			renderBench(os.Stdout, res)
			if res.TimedOut {
				return errors.Errorf("timed out after %s with %d of %d jobs finished",
					opts.Timeout, res.Stats.Finished(), res.Jobs)
			}

			return nil
		},
	}
}

// RunBench submits the configured number of sleeping jobs to a new
// pool, waits for them, and shuts the pool down. The progress
// function, if set, runs after each job. If the timeout passes first
// the result is marked as timed out and RunBench returns without
// waiting for the remaining jobs.
func RunBench(ctx context.Context, opts BenchOptions, progress func()) (*BenchResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	p, err := pool.NewLocalWorkers(opts.Workers, pool.WithName("threadpool.bench"))
	if err != nil {
		return nil, err
	}

	start := time.Now()
	for i := 0; i < opts.Jobs; i++ {
		err := p.Put(job.NewNamedFunc(fmt.Sprintf("bench.%d", i), func() {
			time.Sleep(opts.Sleep)
			if progress != nil {
				progress()
			}
		}))
		if err != nil {
			p.Shutdown()
			return nil, errors.Wrapf(err, "problem submitting job %d", i)
		}
	}

	wctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	done := threadpool.WaitCtxInterval(wctx, p, time.Millisecond)
	elapsed := time.Since(start)

	if done {
		p.Shutdown()
	} else {
		// the workers finish the remaining jobs in the background
		_ = p.ShutdownCtx(wctx)
	}

	res := &BenchResult{
		Workers:      opts.Workers,
		Jobs:         opts.Jobs,
		Elapsed:      elapsed,
		Stats:        p.Stats(),
		IdealElapsed: idealElapsed(opts),
		TimedOut:     !done,
	}
	if elapsed > 0 {
		res.JobsPerSecond = float64(res.Stats.Finished()) / elapsed.Seconds()
	}

	return res, nil
}

// idealElapsed is the runtime of the jobs with perfect scheduling:
// ceil(jobs/workers) rounds of one sleep each.
func idealElapsed(opts BenchOptions) time.Duration {
	rounds := (opts.Jobs + opts.Workers - 1) / opts.Workers
	return time.Duration(rounds) * opts.Sleep
}

func renderBench(w io.Writer, res *BenchResult) {
	_, _ = benchBold.Fprintln(w, "Pool benchmark results")

	table := tablewriter.NewWriter(w)
	table.Header("Workers", "Jobs", "Completed", "Faulted", "Elapsed", "Ideal", "Jobs/sec", "Avg Runtime")
	_ = table.Append(
		strconv.Itoa(res.Workers),
		strconv.Itoa(res.Jobs),
		strconv.Itoa(res.Stats.Completed),
		strconv.Itoa(res.Stats.Faulted),
		res.Elapsed.Round(time.Millisecond).String(),
		res.IdealElapsed.String(),
		strconv.FormatFloat(res.JobsPerSecond, 'f', 1, 64),
		res.Stats.AverageRuntime.Round(time.Microsecond).String(),
	)
	_ = table.Render()

	if res.TimedOut || res.Stats.Faulted > 0 {
		_, _ = benchRed.Fprintf(w, "%d of %d jobs completed\n", res.Stats.Completed, res.Jobs)
		return
	}

	_, _ = benchGreen.Fprintf(w, "all %d jobs completed\n", res.Jobs)
}
