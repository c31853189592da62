package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:        "bustracker",
		Usage:       "live bus tracking service",
		Description: "Runs the tracking API, seeds demo data, repairs driver/bus links and replays a driver's route.",

		Commands: []*cli.Command{
			serveCommand(),
			seedCommand(),
			repairCommand(),
			driveCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("bustracker failed")
	}
}
