package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/bruin-data/session-summary/pkg/config"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
)

func Environments() *cli.Command {
	return &cli.Command{
		Name:  "environments",
		Usage: "manage environments defined in the config file",
		Subcommands: []*cli.Command{
			ListEnvironments(),
		},
	}
}

func ListEnvironments() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "list the environments of the config file",
		Flags: []cli.Flag{
			outputFlag,
			configFileFlag,
		},
		Action: func(c *cli.Context) error {
			r := EnvironmentListCommand{writer: os.Stdout}
			return r.Run(afero.NewOsFs(), strings.ToLower(c.String(outputFlag.Name)), c.String(configFileFlag.Name))
		},
	}
}

type EnvironmentListCommand struct {
	writer io.Writer
}

func (r *EnvironmentListCommand) Run(fs afero.Fs, output, configFilePath string) error {
	defer RecoverFromPanic()

	cm, err := config.LoadOrCreate(fs, configFilePath)
	if err != nil {
		printError(err, output, "Failed to load the config file at "+configFilePath)
		return cli.Exit("", 1)
	}

	envs := lo.Keys(cm.Environments)
	sort.Strings(envs)

	if output == "json" {
		type environ struct {
			Name string `json:"name"`
		}

		type envResponse struct {
			SelectedEnvironment string    `json:"selected_environment"`
			Environments        []environ `json:"environments"`
		}

		resp := envResponse{
			SelectedEnvironment: cm.SelectedEnvironmentName,
			Environments: lo.Map(envs, func(env string, _ int) environ {
				return environ{Name: env}
			}),
		}

		js, err := json.Marshal(resp)
		if err != nil {
			printErrorJSON(err)
			return err
		}

		_, err = fmt.Fprintln(r.writer, string(js))
		return err
	}

	fmt.Fprintln(r.writer)
	infoPrinter.Fprintln(r.writer, "Selected environment: "+cm.SelectedEnvironmentName)
	infoPrinter.Fprintln(r.writer, "Available environments:")
	for _, env := range envs {
		infoPrinter.Fprintln(r.writer, "- "+env)
	}

	return nil
}
