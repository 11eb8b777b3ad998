package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/atims0208/fieldhouse-beta-sub001/cmd/broadcast"
	"github.com/atims0208/fieldhouse-beta-sub001/cmd/devices"
	"github.com/atims0208/fieldhouse-beta-sub001/cmd/internal/build"
	"github.com/atims0208/fieldhouse-beta-sub001/cmd/relay"
	"github.com/atims0208/fieldhouse-beta-sub001/cmd/signal"
)

func main() {
	if err := run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("fieldhouse failed")
	}
}

func run(args []string) error {
	app := &cli.App{
		Name:  "fieldhouse",
		Usage: "fieldhouse publishes live streams from capture devices over WebRTC",
		Flags: []cli.Flag{ // Global flags.
			&cli.BoolFlag{
				Name:        "debug",
				Value:       false,
				Usage:       "enable debug mod",
				DefaultText: "false",
				EnvVars:     []string{"DEBUG"},
			},
		},
		Commands: []*cli.Command{
			broadcast.Command(),
			devices.Command(),
			signal.Command(),
			relay.Command(),
			build.Command(),
		},
	}

	return app.Run(args)
}
