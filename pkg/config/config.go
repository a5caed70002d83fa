package config

import (
	"bufio"
	"errors"
	"fmt"
	fs2 "io/fs"
	"os"
	"path"
	"strings"

	path2 "github.com/bruin-data/session-summary/pkg/path"
	"github.com/spf13/afero"
)

const (
	DefaultConfigFile      = ".bruin.yml"
	DefaultEnvironmentName = "default"
)

type Environment struct {
	Connections Connections `yaml:"connections" json:"connections"`
}

type Config struct {
	fs   afero.Fs
	path string

	DefaultEnvironmentName  string                 `yaml:"default_environment" json:"default_environment"`
	SelectedEnvironmentName string                 `yaml:"-" json:"-"`
	SelectedEnvironment     *Environment           `yaml:"-" json:"-"`
	Environments            map[string]Environment `yaml:"environments" json:"environments" validate:"dive"`
}

func (c *Config) Persist() error {
	return path2.WriteYaml(c.fs, c.path, c)
}

func (c *Config) Path() string {
	return c.path
}

func (c *Config) SelectEnvironment(name string) error {
	if name == "" {
		name = c.DefaultEnvironmentName
	}

	e, ok := c.Environments[name]
	if !ok {
		return fmt.Errorf("environment '%s' not found in the configuration file", name)
	}

	c.SelectedEnvironment = &e
	c.SelectedEnvironmentName = name
	return nil
}

// LoadFromFile reads the configuration file, expanding ${VAR} references from the environment before parsing.
func LoadFromFile(fs afero.Fs, filePath string) (*Config, error) {
	buf, err := afero.ReadFile(fs, filePath)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := path2.ConvertYamlToObject([]byte(os.ExpandEnv(string(buf))), &config); err != nil {
		return nil, fmt.Errorf("failed to parse the config file '%s': %w", filePath, err)
	}

	for name, env := range config.Environments {
		if err := env.Connections.resolve(); err != nil {
			return nil, fmt.Errorf("invalid connection in environment '%s': %w", name, err)
		}
		config.Environments[name] = env
	}

	config.fs = fs
	config.path = filePath

	if config.DefaultEnvironmentName == "" {
		config.DefaultEnvironmentName = DefaultEnvironmentName
	}

	e := config.Environments[config.DefaultEnvironmentName]
	config.SelectedEnvironment = &e
	config.SelectedEnvironmentName = config.DefaultEnvironmentName

	return &config, nil
}

// LoadOrCreate loads the configuration, creating a default one with a local DuckDB connection if the file does
// not exist yet. The file is added to .gitignore since it holds credentials.
func LoadOrCreate(fs afero.Fs, filePath string) (*Config, error) {
	config, err := LoadFromFile(fs, filePath)
	if err != nil && !errors.Is(err, fs2.ErrNotExist) {
		return nil, err
	}

	if err == nil {
		return config, ensureConfigIsInGitignore(fs, filePath)
	}

	defaultEnv := Environment{
		Connections: Connections{
			DuckDB: []DuckDBConnection{
				{Name: "duckdb-default", Path: "session_summary.db"},
			},
		},
	}
	config = &Config{
		fs:   fs,
		path: filePath,

		DefaultEnvironmentName:  DefaultEnvironmentName,
		SelectedEnvironment:     &defaultEnv,
		SelectedEnvironmentName: DefaultEnvironmentName,
		Environments: map[string]Environment{
			DefaultEnvironmentName: defaultEnv,
		},
	}

	err = config.Persist()
	if err != nil {
		return nil, fmt.Errorf("failed to persist config: %w", err)
	}

	return config, ensureConfigIsInGitignore(fs, filePath)
}

func ensureConfigIsInGitignore(fs afero.Fs, filePath string) (err error) {
	gitignorePath := path.Join(path.Dir(filePath), ".gitignore")
	exists, err := afero.Exists(fs, gitignorePath)
	if err != nil {
		return err
	}

	fileNameToIgnore := path.Base(filePath)
	if !exists {
		return afero.WriteFile(fs, gitignorePath, []byte(fileNameToIgnore), 0o644)
	}

	file, err := fs.OpenFile(gitignorePath, os.O_APPEND|os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer func(open afero.File) {
		tempErr := open.Close()
		if tempErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close file: %w", tempErr))
		}
	}(file)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == fileNameToIgnore {
			return nil
		}
	}

	_, err = file.Write([]byte("\n" + fileNameToIgnore))
	return err
}
