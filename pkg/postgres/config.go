package postgres

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
)

const (
	defaultPort         = 5432
	defaultPoolMaxConns = 10
	defaultSslMode      = "disable"
)

type Config struct {
	Username     string
	Password     string
	Host         string
	Port         int
	Database     string
	Schema       string
	PoolMaxConns int
	SslMode      string
}

// ToDBConnectionURI returns a connection URI to be used with the pgx package.
func (c Config) ToDBConnectionURI() string {
	port := c.Port
	if port == 0 {
		port = defaultPort
	}
	poolMaxConns := c.PoolMaxConns
	if poolMaxConns == 0 {
		poolMaxConns = defaultPoolMaxConns
	}
	sslMode := c.SslMode
	if sslMode == "" {
		sslMode = defaultSslMode
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.Username, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(port)),
		Path:   "/" + c.Database,
	}

	uri := fmt.Sprintf("%s?sslmode=%s&pool_max_conns=%d", u.String(), sslMode, poolMaxConns)
	if c.Schema != "" {
		uri += "&search_path=" + url.QueryEscape(c.Schema)
	}

	return uri
}

func (c Config) GetDatabase() string {
	return c.Database
}
