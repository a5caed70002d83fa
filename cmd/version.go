package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

type VersionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

func VersionCmd(commit string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "print the version of the binary",
		Flags: []cli.Flag{
			outputFlag,
		},
		Action: func(c *cli.Context) error {
			if c.String(outputFlag.Name) == "json" {
				outputString, err := json.Marshal(VersionInfo{c.App.Version, commit})
				if err != nil {
					return errors.Wrap(err, "failed to marshal the output")
				}
				fmt.Println(string(outputString))

				return nil
			}

			fmt.Printf("Current: %s (%s)\n", c.App.Version, commit)
			return nil
		},
	}
}
