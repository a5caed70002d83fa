package snowflake

import (
	"crypto/rsa"
	"encoding/pem"

	"github.com/pkg/errors"
	"github.com/snowflakedb/gosnowflake"
	"github.com/youmark/pkcs8"
)

type Config struct {
	Account   string
	Username  string
	Password  string
	Region    string
	Role      string
	Database  string
	Schema    string
	Warehouse string

	// PrivateKey is a PKCS#8 PEM key, encrypted with PrivateKeyPassphrase if it is set. When given, the connection
	// authenticates with key-pair JWT instead of the password.
	PrivateKey           string
	PrivateKeyPassphrase string
}

func (c Config) DSN() (string, error) {
	snowflakeConfig := gosnowflake.Config{
		Account:   c.Account,
		User:      c.Username,
		Password:  c.Password,
		Region:    c.Region,
		Role:      c.Role,
		Database:  c.Database,
		Schema:    c.Schema,
		Warehouse: c.Warehouse,
	}

	if c.PrivateKey != "" {
		privateKey, err := parsePrivateKey(c.PrivateKey, c.PrivateKeyPassphrase)
		if err != nil {
			return "", err
		}

		snowflakeConfig.Authenticator = gosnowflake.AuthTypeJwt
		snowflakeConfig.PrivateKey = privateKey
		snowflakeConfig.Password = ""
	}

	return gosnowflake.DSN(&snowflakeConfig)
}

func (c Config) IsValid() bool {
	return c.Account != "" && c.Username != "" && (c.Password != "" || c.PrivateKey != "")
}

func parsePrivateKey(content, passphrase string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(content))
	if block == nil {
		return nil, errors.New("failed to decode the private key, expected a PEM block")
	}

	var passwords [][]byte
	if passphrase != "" {
		passwords = append(passwords, []byte(passphrase))
	}

	key, err := pkcs8.ParsePKCS8PrivateKeyRSA(block.Bytes, passwords...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse the private key")
	}

	return key, nil
}
