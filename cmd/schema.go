package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/bruin-data/session-summary/pkg/config"
	"github.com/bruin-data/session-summary/pkg/pipeline"
	"github.com/invopop/jsonschema"
	"github.com/urfave/cli/v2"
)

func Schema() *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "print the JSON schema of pipeline.yml, or of .bruin.yml with --config",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "config",
				Usage: "print the schema of the config file instead",
			},
		},
		Action: func(c *cli.Context) error {
			schema := pipeline.Schema()
			if c.Bool("config") {
				reflector := jsonschema.Reflector{DoNotReference: true}
				schema = reflector.Reflect(&config.Config{})
			}

			out, err := json.MarshalIndent(schema, "", "  ")
			if err != nil {
				errorPrinter.Printf("Failed to render the schema: %v\n", err)
				return cli.Exit("", 1)
			}

			fmt.Println(string(out))
			return nil
		},
	}
}
