package operations

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/cheynewallace/tabby"
	"github.com/mongodb/threadpool"
	"github.com/mongodb/threadpool/rest"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

const (
	hostFlagName   = "host"
	portFlagName   = "port"
	formatFlagName = "format"

	tableFormat = "table"
)

// Status returns the command that reports on a running pool through
// its status service.
func Status() cli.Command {
	return cli.Command{
		Name:  "status",
		Usage: "print the stats and worker states of a running pool",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  hostFlagName,
				Usage: "host of the status service, including http(s)",
				Value: "http://localhost",
			},
			cli.IntFlag{
				Name:  portFlagName,
				Usage: "port of the status service",
				Value: defaultStatusPort,
			},
			cli.StringFlag{
				Name:  formatFlagName,
				Usage: "output format: table, json, yaml, or bson",
				Value: tableFormat,
			},
		},
		Action: func(c *cli.Context) error {
			client, err := rest.NewClient(c.String(hostFlagName), c.Int(portFlagName))
			if err != nil {
				return errors.Wrap(err, "problem constructing client")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			return printStatus(ctx, os.Stdout, client, c.String(formatFlagName))
		},
	}
}

type statusReport struct {
	Stats   threadpool.PoolStats    `bson:"stats" json:"stats" yaml:"stats"`
	Workers []threadpool.WorkerInfo `bson:"workers" json:"workers" yaml:"workers"`
}

func printStatus(ctx context.Context, w io.Writer, client *rest.Client, format string) error {
	stats, err := client.Status(ctx)
	if err != nil {
		return errors.Wrap(err, "problem getting pool stats")
	}

	workers, err := client.Workers(ctx)
	if err != nil {
		return errors.Wrap(err, "problem getting worker states")
	}

	return writeStatus(w, statusReport{Stats: *stats, Workers: workers}, format)
}

func writeStatus(w io.Writer, report statusReport, format string) error {
	if format == "" || format == tableFormat {
		writeStatusTable(w, report)
		return nil
	}

	f, err := threadpool.ParseFormat(format)
	if err != nil {
		return err
	}

	out, err := threadpool.ConvertTo(f, report)
	if err != nil {
		return errors.Wrapf(err, "problem rendering status as %s", f)
	}

	if _, err = w.Write(out); err != nil {
		return errors.WithStack(err)
	}

	if f != threadpool.BSON {
		_, err = io.WriteString(w, "\n")
	}

	return errors.WithStack(err)
}

func writeStatusTable(w io.Writer, report statusReport) {
	s := report.Stats

	t := tabby.NewCustom(tabwriter.NewWriter(w, 0, 0, 2, ' ', 0))
	t.AddHeader("Pool", "Size", "Live", "Submitted", "Completed", "Faulted", "Running", "Pending", "Avg Runtime", "Closed")
	t.AddLine(s.Name, s.Size, s.Live, s.Submitted, s.Completed, s.Faulted, s.Running, s.Pending, s.AverageRuntime, s.Closed)
	t.Print()

	fmt.Fprintln(w)

	t = tabby.NewCustom(tabwriter.NewWriter(w, 0, 0, 2, ' ', 0))
	t.AddHeader("Worker", "State", "Jobs Run", "Current Job")
	for _, wi := range report.Workers {
		t.AddLine(wi.ID, wi.State, wi.JobsRun, wi.Current)
	}
	t.Print()
}
