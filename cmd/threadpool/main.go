package main

import (
	"os"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/level"
	"github.com/mongodb/grip/send"
	"github.com/mongodb/threadpool/operations"
	"github.com/urfave/cli"
)

func main() {
	grip.SetName("threadpool")
	grip.Error(grip.SetSender(send.MakeNative()))

	lvl := grip.GetSender().Level()
	lvl.Threshold = level.Info
	_ = grip.GetSender().SetLevel(lvl)

	app := cli.NewApp()
	app.Name = "threadpool"
	app.Usage = "serve pages on a fixed-size worker pool"
	app.Commands = []cli.Command{
		operations.Serve(),
		operations.Status(),
		operations.Bench(),
	}

	grip.EmergencyFatal(app.Run(os.Args))
}
