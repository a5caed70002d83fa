package connection

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadPrivateKeyFile(t *testing.T) {
	t.Parallel()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pkcs8Bytes, err := x509.MarshalPKCS8PrivateKey(privateKey)
	require.NoError(t, err)
	validPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8Bytes})
	certificatePEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte("cert")})

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/keys/valid.p8", validPEM, 0o600))
	require.NoError(t, afero.WriteFile(fs, "/keys/empty.p8", []byte{}, 0o600))
	require.NoError(t, afero.WriteFile(fs, "/keys/cert.pem", certificatePEM, 0o600))

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr string
	}{
		{
			name: "valid key is returned as is",
			path: "/keys/valid.p8",
			want: string(validPEM),
		},
		{
			name:    "missing file",
			path:    "/keys/missing.p8",
			wantErr: "failed to read private key file at '/keys/missing.p8'",
		},
		{
			name:    "empty file",
			path:    "/keys/empty.p8",
			wantErr: "invalid PEM format in private key file at '/keys/empty.p8'",
		},
		{
			name:    "not a private key",
			path:    "/keys/cert.pem",
			wantErr: "expected a private key in '/keys/cert.pem', found 'CERTIFICATE'",
		},
		{
			name:    "inline key given as a path",
			path:    string(validPEM),
			wantErr: "please use private_key instead of private_key_path to define the key inline",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := readPrivateKeyFile(fs, tt.path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConvertPKCS1ToPKCS8(t *testing.T) {
	t.Parallel()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	pkcs1PEM := string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privateKey)}))
	pkcs8Bytes, err := x509.MarshalPKCS8PrivateKey(privateKey)
	require.NoError(t, err)
	pkcs8PEM := string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8Bytes}))

	t.Run("PKCS#1 key is converted", func(t *testing.T) {
		t.Parallel()

		block, _ := pem.Decode([]byte(convertPKCS1ToPKCS8(pkcs1PEM)))
		require.NotNil(t, block)
		assert.Equal(t, "PRIVATE KEY", block.Type)

		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		require.NoError(t, err)
		rsaKey, ok := parsed.(*rsa.PrivateKey)
		require.True(t, ok)
		assert.True(t, privateKey.Equal(rsaKey))
	})

	for _, unchanged := range []string{pkcs8PEM, "", "not a valid PEM"} {
		assert.Equal(t, unchanged, convertPKCS1ToPKCS8(unchanged))
	}
}
