package cmd

import (
	"io"

	"github.com/bruin-data/session-summary/pkg/config"
	"github.com/bruin-data/session-summary/pkg/pipeline"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
)

// job is the pipeline definition together with the configuration it runs against.
type job struct {
	definition     *pipeline.Definition
	config         *config.Config
	configFilePath string
}

func loadDefinition(fs afero.Fs, c *cli.Context) (*pipeline.Definition, error) {
	def, err := pipeline.LoadOrDefault(fs, c.String(pipelineFlag.Name))
	if err != nil {
		return nil, err
	}

	if strategy := c.String(strategyFlag.Name); strategy != "" {
		def.Strategy = pipeline.Strategy(strategy)
	}

	if err := def.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid pipeline definition")
	}

	return def, nil
}

func loadJob(fs afero.Fs, c *cli.Context, stdin io.ReadCloser) (*job, error) {
	def, err := loadDefinition(fs, c)
	if err != nil {
		errorPrinter.Printf("Failed to load the pipeline: %v\n", err)
		return nil, cli.Exit("", 1)
	}

	configFilePath := c.String(configFileFlag.Name)
	cm, err := config.LoadOrCreate(fs, configFilePath)
	if err != nil {
		errorPrinter.Printf("Failed to load the config file at '%s': %v\n", configFilePath, err)
		return nil, cli.Exit("", 1)
	}

	if err := switchEnvironment(c.String(environmentFlag.Name), c.Bool(forceFlag.Name), cm, stdin); err != nil {
		return nil, err
	}

	return &job{definition: def, config: cm, configFilePath: configFilePath}, nil
}
