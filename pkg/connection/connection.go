package connection

import (
	"context"
	"sync"

	"github.com/bruin-data/session-summary/pkg/config"
	duck "github.com/bruin-data/session-summary/pkg/duckdb"
	"github.com/bruin-data/session-summary/pkg/postgres"
	"github.com/bruin-data/session-summary/pkg/snowflake"
	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/afero"
)

// Pinger is implemented by every warehouse client, it is used to validate the credentials before a run.
type Pinger interface {
	Ping(ctx context.Context) error
}

type closer interface {
	Close() error
}

type Manager struct {
	Snowflake map[string]*snowflake.DB
	DuckDB    map[string]*duck.Client
	Postgres  map[string]*postgres.Client

	availableConnections map[string]any
	mutex                sync.Mutex
}

// GetConnection returns the client registered under the given name, or nil if there is none.
func (m *Manager) GetConnection(name string) any {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	conn, ok := m.availableConnections[name]
	if !ok {
		return nil
	}

	return conn
}

func (m *Manager) GetSfConnection(name string) (*snowflake.DB, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.Snowflake == nil {
		return nil, errors.New("no snowflake connections found")
	}

	db, ok := m.Snowflake[name]
	if !ok {
		return nil, errors.Errorf("snowflake connection '%s' not found", name)
	}

	return db, nil
}

func (m *Manager) GetDuckDBConnection(name string) (*duck.Client, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.DuckDB == nil {
		return nil, errors.New("no duckdb connections found")
	}

	db, ok := m.DuckDB[name]
	if !ok {
		return nil, errors.Errorf("duckdb connection '%s' not found", name)
	}

	return db, nil
}

func (m *Manager) GetPgConnection(name string) (*postgres.Client, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.Postgres == nil {
		return nil, errors.New("no postgres connections found")
	}

	db, ok := m.Postgres[name]
	if !ok {
		return nil, errors.Errorf("postgres connection '%s' not found", name)
	}

	return db, nil
}

// Ping validates the named connection.
func (m *Manager) Ping(ctx context.Context, name string) error {
	conn := m.GetConnection(name)
	if conn == nil {
		return config.NewConnectionNotFoundError(ctx, "", name)
	}

	p, ok := conn.(Pinger)
	if !ok {
		return errors.Errorf("connection '%s' cannot be tested", name)
	}

	return p.Ping(ctx)
}

// Close releases every client, the first error is returned.
func (m *Manager) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var firstErr error
	for name, conn := range m.availableConnections {
		c, ok := conn.(closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "failed to close connection '%s'", name)
		}
	}

	return firstErr
}

func (m *Manager) register(name string, conn any) {
	if m.availableConnections == nil {
		m.availableConnections = make(map[string]any)
	}

	m.availableConnections[name] = conn
}

func (m *Manager) AddSfConnectionFromConfig(fs afero.Fs, connection *config.SnowflakeConnection) error {
	privateKey := connection.PrivateKey
	if privateKey == "" && connection.PrivateKeyPath != "" {
		key, err := readPrivateKeyFile(fs, connection.PrivateKeyPath)
		if err != nil {
			return errors.Wrapf(err, "invalid private key for snowflake connection '%s'", connection.Name)
		}
		privateKey = key
	}
	privateKey = convertPKCS1ToPKCS8(privateKey)

	db, err := snowflake.NewDB(&snowflake.Config{
		Account:              connection.Account,
		Username:             connection.Username,
		Password:             connection.Password,
		Region:               connection.Region,
		Role:                 connection.Role,
		Database:             connection.Database,
		Schema:               connection.Schema,
		Warehouse:            connection.Warehouse,
		PrivateKey:           privateKey,
		PrivateKeyPassphrase: connection.PrivateKeyPassphrase,
	})
	if err != nil {
		return errors.Wrapf(err, "failed to create snowflake connection '%s'", connection.Name)
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.Snowflake == nil {
		m.Snowflake = make(map[string]*snowflake.DB)
	}
	m.Snowflake[connection.Name] = db
	m.register(connection.Name, db)

	return nil
}

func (m *Manager) AddDuckDBConnectionFromConfig(connection *config.DuckDBConnection) error {
	client, err := duck.NewClient(duck.Config{Path: connection.Path})
	if err != nil {
		return errors.Wrapf(err, "failed to create duckdb connection '%s'", connection.Name)
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.DuckDB == nil {
		m.DuckDB = make(map[string]*duck.Client)
	}
	m.DuckDB[connection.Name] = client
	m.register(connection.Name, client)

	return nil
}

func (m *Manager) AddPgConnectionFromConfig(ctx context.Context, connection *config.PostgresConnection) error {
	client, err := postgres.NewClient(ctx, postgres.Config{
		Username:     connection.Username,
		Password:     connection.Password,
		Host:         connection.Host,
		Port:         connection.Port,
		Database:     connection.Database,
		Schema:       connection.Schema,
		PoolMaxConns: connection.PoolMaxConns,
		SslMode:      connection.SslMode,
	})
	if err != nil {
		return errors.Wrapf(err, "failed to create postgres connection '%s'", connection.Name)
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.Postgres == nil {
		m.Postgres = make(map[string]*postgres.Client)
	}
	m.Postgres[connection.Name] = client
	m.register(connection.Name, client)

	return nil
}

// NewManagerFromConfig creates a client for every connection of the selected environment. The clients are created
// in parallel, every failure is reported.
func NewManagerFromConfig(ctx context.Context, fs afero.Fs, cm *config.Config) (*Manager, []error) {
	if cm.SelectedEnvironment == nil {
		return nil, []error{errors.New("no environment is selected")}
	}

	connectionManager := &Manager{}
	connections := cm.SelectedEnvironment.Connections

	p := pool.New().WithErrors()
	for _, conn := range connections.Snowflake {
		p.Go(func() error {
			return connectionManager.AddSfConnectionFromConfig(fs, &conn)
		})
	}
	for _, conn := range connections.DuckDB {
		p.Go(func() error {
			return connectionManager.AddDuckDBConnectionFromConfig(&conn)
		})
	}
	for _, conn := range connections.Postgres {
		p.Go(func() error {
			return connectionManager.AddPgConnectionFromConfig(ctx, &conn)
		})
	}

	if err := p.Wait(); err != nil {
		return connectionManager, unwrapAll(err)
	}

	return connectionManager, nil
}

// unwrapAll flattens the joined errors returned by the pool.
func unwrapAll(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok { //nolint:errorlint
		return joined.Unwrap()
	}

	return []error{err}
}
