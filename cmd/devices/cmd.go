package devices

import (
	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/atims0208/fieldhouse-beta-sub001/cmd/internal/flags"
	"github.com/atims0208/fieldhouse-beta-sub001/internal/broadcast"
	"github.com/atims0208/fieldhouse-beta-sub001/internal/capture"
)

// Command returns a devices command.
func Command() *cli.Command {
	var (
		logger zerolog.Logger

		captureConfigOptions capture.ConfigOptions
	)

	fs := flags.Join(
		flags.LoadConfig(),
		flags.Capture(&captureConfigOptions),
	)

	return &cli.Command{
		Name:  "devices",
		Usage: "devices lists the configured capture devices",
		Flags: fs,
		Before: func(c *cli.Context) error {
			var err error
			logger, err = flags.Setup(c, fs, "devices")
			return err
		},
		Action: func(c *cli.Context) error {
			sources, err := capture.ParseSources(c.StringSlice(flags.CaptureSourceFlag))
			if err != nil {
				return err
			}
			controller := broadcast.New(broadcast.ConfigOptions{}, capture.NewRegistry(sources, &logger), nil, &logger)
			defer controller.Close()

			devices, err := controller.ListDevices(c.Context)
			if err != nil {
				return err
			}
			if len(devices) == 0 {
				pterm.Warning.Println("no capture devices configured")
				return nil
			}

			data := pterm.TableData{{"ID", "KIND", "LABEL"}}
			for _, d := range devices {
				data = append(data, []string{d.DeviceID, string(d.Kind), d.Label})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
		},
	}
}
