package connection

import (
	"crypto/x509"
	"encoding/pem"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/youmark/pkcs8"
)

// readPrivateKeyFile reads a PEM encoded private key from the given path.
func readPrivateKeyFile(fs afero.Fs, filePath string) (string, error) {
	if strings.Contains(filePath, "-----BEGIN") {
		return "", errors.New("please use private_key instead of private_key_path to define the key inline")
	}

	contents, err := afero.ReadFile(fs, filePath)
	if err != nil {
		return "", errors.New("failed to read private key file at '" + filePath + "': " + err.Error())
	}

	block, _ := pem.Decode(contents)
	if block == nil {
		return "", errors.New("invalid PEM format in private key file at '" + filePath + "'")
	}

	if !strings.HasSuffix(block.Type, "PRIVATE KEY") {
		return "", errors.Errorf("expected a private key in '%s', found '%s'", filePath, block.Type)
	}

	return string(contents), nil
}

// convertPKCS1ToPKCS8 rewrites an "RSA PRIVATE KEY" block as PKCS#8, the only format the Snowflake driver reads.
// Anything else is returned unchanged.
func convertPKCS1ToPKCS8(privateKey string) string {
	block, _ := pem.Decode([]byte(privateKey))
	if block == nil || block.Type != "RSA PRIVATE KEY" {
		return privateKey
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return privateKey
	}

	der, err := pkcs8.MarshalPrivateKey(key, nil, nil)
	if err != nil {
		return privateKey
	}

	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))
}
