package main

import (
	"os"
	"time"

	"github.com/bruin-data/session-summary/cmd"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

var (
	version = "dev"
	commit  = ""
)

func main() {
	isDebug := false
	color.NoColor = false

	versionCommand := cmd.VersionCmd(commit)

	cli.VersionPrinter = func(cCtx *cli.Context) {
		err := versionCommand.Action(cCtx)
		if err != nil {
			panic(err)
		}
	}

	app := &cli.App{
		Name:     "session-summary",
		Version:  version,
		Usage:    "Build the session summary table and the session duplicates view",
		Compiled: time.Now(),
		ExitErrHandler: func(context *cli.Context, err error) {
			cli.HandleExitCoder(err)
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "debug",
				Value:       false,
				Usage:       "show debug information",
				Destination: &isDebug,
			},
		},
		Commands: []*cli.Command{
			cmd.Run(&isDebug),
			cmd.Schedule(&isDebug),
			cmd.Render(),
			cmd.Validate(),
			cmd.Connections(),
			cmd.Environments(),
			cmd.Schema(),
			versionCommand,
		},
	}

	_ = app.Run(os.Args)
}
