// Package build reports the version stamped into the binary with -ldflags.
package build

import (
	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"
)

// Set with -ldflags "-X .../cmd/internal/build.Version=...".
var (
	Branch    string
	Version   string
	Revision  string
	BuildUser string
	BuildDate string
)

func Command() *cli.Command {
	return &cli.Command{
		Name:  "info",
		Usage: "info displays build information of this binary",
		Action: func(c *cli.Context) error {
			return pterm.DefaultTable.WithData(pterm.TableData{
				{"Branch", Branch},
				{"Version", Version},
				{"Revision", Revision},
				{"BuildUser", BuildUser},
				{"BuildDate", BuildDate},
			}).Render()
		},
	}
}
