package cmd

import (
	"github.com/bruin-data/session-summary/pkg/config"
	"github.com/bruin-data/session-summary/pkg/pipeline"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

const (
	LogsFolder  = "logs"
	StateFolder = "logs/runs"
)

var (
	infoPrinter    = color.New(color.Bold)
	errorPrinter   = color.New(color.FgRed, color.Bold)
	warningPrinter = color.New(color.FgYellow, color.Bold)
	successPrinter = color.New(color.FgGreen, color.Bold)
)

var (
	configFileFlag = &cli.StringFlag{
		Name:    "config-file",
		EnvVars: []string{"BRUIN_CONFIG_FILE"},
		Value:   config.DefaultConfigFile,
		Usage:   "the path to the .bruin.yml file",
	}
	environmentFlag = &cli.StringFlag{
		Name:    "environment",
		Aliases: []string{"e", "env"},
		EnvVars: []string{"BRUIN_ENVIRONMENT"},
		Usage:   "the environment to use",
	}
	pipelineFlag = &cli.StringFlag{
		Name:    "pipeline",
		Aliases: []string{"p"},
		Value:   pipeline.DefaultDefinitionFile,
		Usage:   "the path to the pipeline definition, the defaults are used if the file does not exist",
	}
	forceFlag = &cli.BoolFlag{
		Name:    "force",
		Aliases: []string{"f"},
		Usage:   "skip the confirmation when using a production environment",
	}
	strategyFlag = &cli.StringFlag{
		Name:  "strategy",
		Usage: "override the strategy of the pipeline: 'pushdown' or 'in_memory'",
	}
	outputFlag = &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "the output type, possible values are: plain, json",
	}
	startDateFlag = &cli.StringFlag{
		Name:        "start-date",
		Usage:       "the start of the data interval in YYYY-MM-DD, YYYY-MM-DD HH:MM:SS or RFC3339 format",
		DefaultText: "beginning of yesterday",
		EnvVars:     []string{"BRUIN_START_DATE"},
	}
	endDateFlag = &cli.StringFlag{
		Name:        "end-date",
		Usage:       "the end of the data interval in YYYY-MM-DD, YYYY-MM-DD HH:MM:SS or RFC3339 format",
		DefaultText: "end of yesterday",
		EnvVars:     []string{"BRUIN_END_DATE"},
	}
)
