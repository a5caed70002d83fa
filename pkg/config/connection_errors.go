package config

import (
	"context"
	"fmt"
	"strings"
)

type contextKey int

const (
	ConfigFilePathContextKey contextKey = iota
	EnvironmentNameContextKey
)

// ConnectionGetter returns the client registered under the given name, or nil.
type ConnectionGetter interface {
	GetConnection(name string) any
}

// MissingConnectionError is returned when a task refers to a connection that is not configured in the selected
// environment.
type MissingConnectionError struct {
	Role            string
	Name            string
	ConfigFilePath  string
	EnvironmentName string
}

func (e *MissingConnectionError) Error() string {
	prefix := ""
	if role := strings.TrimSpace(e.Role); role != "" {
		prefix = role + " "
	}

	configFilePath := strings.TrimSpace(e.ConfigFilePath)
	if configFilePath == "" {
		configFilePath = DefaultConfigFile
	}

	environmentName := strings.TrimSpace(e.EnvironmentName)
	if environmentName == "" {
		environmentName = DefaultEnvironmentName
	}

	return fmt.Sprintf("%sconnection '%s' not found in config file '%s' under environment '%s'", prefix, e.Name, configFilePath, environmentName)
}

func NewConnectionNotFoundError(ctx context.Context, role, name string) error {
	err := &MissingConnectionError{Role: role, Name: name}
	if ctx == nil {
		return err
	}

	if configPath, ok := ctx.Value(ConfigFilePathContextKey).(string); ok {
		err.ConfigFilePath = configPath
	}
	if envName, ok := ctx.Value(EnvironmentNameContextKey).(string); ok {
		err.EnvironmentName = envName
	}

	return err
}

func GetRequiredConnection(ctx context.Context, getter ConnectionGetter, role, name string) (any, error) {
	conn := getter.GetConnection(name)
	if conn == nil {
		return nil, NewConnectionNotFoundError(ctx, role, name)
	}

	return conn, nil
}
