package config

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConnectionNotFoundError_ReturnsTypedError(t *testing.T) {
	t.Parallel()

	ctx := context.WithValue(context.Background(), ConfigFilePathContextKey, "/tmp/project/.bruin.yml")
	ctx = context.WithValue(ctx, EnvironmentNameContextKey, "prod")

	err := NewConnectionNotFoundError(ctx, "sensor", "snowflake_conn")

	var typedErr *MissingConnectionError
	require.ErrorAs(t, err, &typedErr)
	require.Equal(t, "sensor", typedErr.Role)
	require.Equal(t, "snowflake_conn", typedErr.Name)
	require.Equal(t, "/tmp/project/.bruin.yml", typedErr.ConfigFilePath)
	require.Equal(t, "prod", typedErr.EnvironmentName)
	require.Equal(
		t,
		"sensor connection 'snowflake_conn' not found in config file '/tmp/project/.bruin.yml' under environment 'prod'",
		err.Error(),
	)
}

func TestMissingConnectionError_Defaults(t *testing.T) {
	t.Parallel()

	err := &MissingConnectionError{Name: "missing"}
	require.Equal(t, "connection 'missing' not found in config file '.bruin.yml' under environment 'default'", err.Error())
}

type mapGetter map[string]any

func (m mapGetter) GetConnection(name string) any {
	if v, ok := m[name]; ok {
		return v
	}

	return nil
}

func TestGetRequiredConnection(t *testing.T) {
	t.Parallel()

	getter := mapGetter{"warehouse": "client"}

	conn, err := GetRequiredConnection(context.Background(), getter, "", "warehouse")
	require.NoError(t, err)
	require.Equal(t, "client", conn)

	_, err = GetRequiredConnection(context.Background(), getter, "", "other")
	var typedErr *MissingConnectionError
	require.True(t, errors.As(err, &typedErr))
	require.Equal(t, "other", typedErr.Name)
}
