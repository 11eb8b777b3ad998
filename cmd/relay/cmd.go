package relay

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"github.com/urfave/cli/v2/altsrc"

	"github.com/atims0208/fieldhouse-beta-sub001/cmd/internal/flags"
	"github.com/atims0208/fieldhouse-beta-sub001/internal/turn"
)

// Command returns a relay command.
func Command() *cli.Command {
	var (
		logger            zerolog.Logger
		turnConfigOptions turn.ConfigOptions
	)

	fs := flags.Join(
		flags.LoadConfig(),
		turnConfigFlags(&turnConfigOptions),
	)

	return &cli.Command{
		Name:  "relay",
		Usage: "relay runs a TURN server for publishers behind NAT",
		Flags: fs,
		Before: func(c *cli.Context) error {
			var err error
			logger, err = flags.Setup(c, fs, "relay")
			return err
		},
		Action: func(c *cli.Context) error {
			r, err := turn.Serve(turnConfigOptions, &logger)
			if err != nil {
				return err
			}

			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
			<-sigs

			return r.Close()
		},
		After: func(c *cli.Context) error {
			logger.Info().Msg("exits")
			return nil
		},
	}
}

func turnConfigFlags(options *turn.ConfigOptions) []cli.Flag {
	return []cli.Flag{
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "turn.host",
			Usage:       "Listening address",
			Value:       "0.0.0.0",
			DefaultText: "0.0.0.0",
			Destination: &options.Host,
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "turn.public_ip",
			Usage:       "IP Address that TURN can be contacted by",
			Value:       "127.0.0.1",
			DefaultText: "127.0.0.1",
			Destination: &options.PublicIP,
		}),
		altsrc.NewIntFlag(&cli.IntFlag{
			Name:        "turn.port",
			Usage:       "Listening port",
			Value:       3478,
			DefaultText: "3478",
			Destination: &options.Port,
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "turn.username",
			Usage:       "Username",
			Value:       "publisher",
			DefaultText: "publisher",
			Destination: &options.Username,
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "turn.password",
			Usage:       "Password",
			Value:       "password",
			DefaultText: "password",
			Destination: &options.Password,
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "turn.realm",
			Usage:       "Realm",
			Value:       "fieldhouse",
			DefaultText: "fieldhouse",
			Destination: &options.Realm,
		}),
		altsrc.NewUintFlag(&cli.UintFlag{
			Name:        "turn.relay_min_port",
			Usage:       "Minimum relay port",
			Value:       50000,
			DefaultText: "50000",
			Destination: &options.RelayMinPort,
		}),
		altsrc.NewUintFlag(&cli.UintFlag{
			Name:        "turn.relay_max_port",
			Usage:       "Maximum relay port",
			Value:       55000,
			DefaultText: "55000",
			Destination: &options.RelayMaxPort,
		}),
	}
}
