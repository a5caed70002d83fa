package pipeline

import (
	"strings"
	"time"

	"github.com/bruin-data/session-summary/pkg/path"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

type (
	Strategy   string
	SensorType string
)

const (
	StrategyPushdown Strategy = "pushdown"
	StrategyInMemory Strategy = "in_memory"

	SensorTypeQuery     SensorType = "query"
	SensorTypeStateFile SensorType = "state_file"
	SensorTypeNone      SensorType = "none"

	DefaultDefinitionFile = "pipeline.yml"
)

// DefaultArgs are applied to every task of the pipeline.
type DefaultArgs struct {
	Retries        int           `yaml:"retries" json:"retries" validate:"gte=0"`
	RetryDelay     time.Duration `yaml:"retry_delay" json:"retry_delay" validate:"gte=0"`
	DependsOnPast  bool          `yaml:"depends_on_past" json:"depends_on_past"`
	EmailOnFailure bool          `yaml:"email_on_failure" json:"email_on_failure"`
	EmailOnRetry   bool          `yaml:"email_on_retry" json:"email_on_retry"`
}

type Sensor struct {
	Type       SensorType `yaml:"type" json:"type" validate:"oneof=query state_file none" jsonschema:"enum=query,enum=state_file,enum=none"`
	Connection string     `yaml:"connection" json:"connection,omitempty"`
	Query      string     `yaml:"query" json:"query,omitempty" validate:"required_if=Type query"`
	Path       string     `yaml:"path" json:"path,omitempty" validate:"required_if=Type state_file"`
}

// Upstream describes the task of another workflow that has to succeed before a run starts.
type Upstream struct {
	Workflow           string        `yaml:"workflow" json:"workflow" validate:"required"`
	Task               string        `yaml:"task" json:"task" validate:"required"`
	Timeout            time.Duration `yaml:"timeout" json:"timeout" validate:"gt=0"`
	PokeInterval       time.Duration `yaml:"poke_interval" json:"poke_interval" validate:"gt=0"`
	ExponentialBackoff bool          `yaml:"exponential_backoff" json:"exponential_backoff"`
	Sensor             Sensor        `yaml:"sensor" json:"sensor"`
}

type Source struct {
	Database       string `yaml:"database" json:"database,omitempty" validate:"sqlident"`
	Schema         string `yaml:"schema" json:"schema" validate:"required,sqlident"`
	ChannelTable   string `yaml:"channel_table" json:"channel_table" validate:"required,sqlident"`
	TimestampTable string `yaml:"timestamp_table" json:"timestamp_table" validate:"required,sqlident"`
}

type Destination struct {
	Database       string `yaml:"database" json:"database,omitempty" validate:"sqlident"`
	Schema         string `yaml:"schema" json:"schema" validate:"required,sqlident"`
	Table          string `yaml:"table" json:"table" validate:"required,sqlident"`
	DuplicatesView string `yaml:"duplicates_view" json:"duplicates_view" validate:"required,sqlident"`
}

// Definition is the job definition read from pipeline.yml.
type Definition struct {
	Name              string      `yaml:"name" json:"name" validate:"required"`
	Description       string      `yaml:"description" json:"description,omitempty"`
	Owner             string      `yaml:"owner" json:"owner,omitempty"`
	Schedule          string      `yaml:"schedule" json:"schedule" validate:"required"`
	StartDate         time.Time   `yaml:"start_date" json:"start_date"`
	Catchup           bool        `yaml:"catchup" json:"catchup"`
	DefaultConnection string      `yaml:"default_connection" json:"default_connection" validate:"required"`
	DefaultArgs       DefaultArgs `yaml:"default_args" json:"default_args"`
	Upstream          Upstream    `yaml:"upstream" json:"upstream"`
	Source            Source      `yaml:"source" json:"source"`
	Destination       Destination `yaml:"destination" json:"destination"`
	Strategy          Strategy    `yaml:"strategy" json:"strategy" validate:"oneof=pushdown in_memory" jsonschema:"enum=pushdown,enum=in_memory"`
	BatchSize         int         `yaml:"batch_size" json:"batch_size" validate:"gte=1"`
}

// Default returns the definition of the daily session summary job with every field set.
func Default() *Definition {
	return &Definition{
		Name:              "snowflake_session_summary",
		Description:       "Create session summary analytics table",
		Owner:             "airflow",
		Schedule:          "@daily",
		StartDate:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Catchup:           false,
		DefaultConnection: "snowflake_conn",
		DefaultArgs: DefaultArgs{
			Retries:    1,
			RetryDelay: 5 * time.Minute,
		},
		Upstream: Upstream{
			Workflow:     "snowflake_table_import",
			Task:         "copy_session_timestamp",
			Timeout:      10 * time.Minute,
			PokeInterval: time.Minute,
			Sensor: Sensor{
				Type: SensorTypeStateFile,
				Path: "logs/runs/{{ upstream_workflow }}.json",
			},
		},
		Source: Source{
			Database:       "DEV",
			Schema:         "RAW_DATA",
			ChannelTable:   "user_session_channel",
			TimestampTable: "session_timestamp",
		},
		Destination: Destination{
			Database:       "DEV",
			Schema:         "ANALYTICS",
			Table:          "session_summary",
			DuplicatesView: "session_duplicates",
		},
		Strategy:  StrategyPushdown,
		BatchSize: 1000,
	}
}

// LoadFromFile reads the definition on top of the defaults, so that a pipeline.yml only needs to list what differs.
func LoadFromFile(fs afero.Fs, filePath string) (*Definition, error) {
	buf, err := afero.ReadFile(fs, filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read the pipeline definition '%s'", filePath)
	}

	if err := ValidateDocument(buf); err != nil {
		return nil, errors.Wrapf(err, "invalid pipeline definition '%s'", filePath)
	}

	def := Default()
	if err := path.ConvertYamlToObject(buf, def); err != nil {
		return nil, errors.Wrapf(err, "failed to load the pipeline definition from '%s'", filePath)
	}

	if def.Upstream.Sensor.Connection == "" {
		def.Upstream.Sensor.Connection = def.DefaultConnection
	}

	return def, nil
}

// LoadOrDefault behaves like LoadFromFile, falling back to the defaults when the file does not exist.
func LoadOrDefault(fs afero.Fs, filePath string) (*Definition, error) {
	exists, err := afero.Exists(fs, filePath)
	if err != nil {
		return nil, err
	}

	if !exists {
		def := Default()
		def.Upstream.Sensor.Connection = def.DefaultConnection
		return def, nil
	}

	return LoadFromFile(fs, filePath)
}

func (d *Definition) Validate() error {
	return path.Validate(d)
}

// TableName is a possibly database-qualified table or view name.
type TableName struct {
	Database string
	Schema   string
	Name     string
}

func (t TableName) String() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{t.Database, t.Schema, t.Name} {
		if p != "" {
			parts = append(parts, p)
		}
	}

	return strings.Join(parts, ".")
}

// QualifiedSchema is the schema name including its database, e.g. DEV.ANALYTICS.
func (t TableName) QualifiedSchema() string {
	return TableName{Database: t.Database, Schema: t.Schema}.String()
}

func (d *Definition) ChannelTable() TableName {
	return TableName{Database: d.Source.Database, Schema: d.Source.Schema, Name: d.Source.ChannelTable}
}

func (d *Definition) TimestampTable() TableName {
	return TableName{Database: d.Source.Database, Schema: d.Source.Schema, Name: d.Source.TimestampTable}
}

func (d *Definition) SummaryTable() TableName {
	return TableName{Database: d.Destination.Database, Schema: d.Destination.Schema, Name: d.Destination.Table}
}

func (d *Definition) DuplicatesView() TableName {
	return TableName{Database: d.Destination.Database, Schema: d.Destination.Schema, Name: d.Destination.DuplicatesView}
}
