package certs

import (
	"crypto/rsa"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSelfSigned(t *testing.T) {
	key, cert, err := GenerateSelfSigned("test-client", 1)
	require.NoError(t, err)
	require.NotNil(t, key)
	require.NotNil(t, cert)

	assert.Equal(t, "test-client", cert.Subject.CommonName)

	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	require.True(t, ok, "pairing requires an RSA key")
	assert.Equal(t, key.PublicKey.N, pub.N)
}

func TestGenerateIfMissing(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "cert.pem")
	keyFile := filepath.Join(dir, "key.pem")

	written, err := GenerateIfMissing(certFile, keyFile, "test-client")
	require.NoError(t, err)
	assert.True(t, written)

	first, err := LoadCertificate(certFile)
	require.NoError(t, err)

	// A second call must keep the existing identity; the device pins it.
	written, err = GenerateIfMissing(certFile, keyFile, "test-client")
	require.NoError(t, err)
	assert.False(t, written)

	second, err := LoadCertificate(certFile)
	require.NoError(t, err)
	assert.Equal(t, first.Raw, second.Raw)
}

func TestGenerateIfMissing_HalfPairFails(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "cert.pem")
	keyFile := filepath.Join(dir, "key.pem")

	_, err := GenerateIfMissing(certFile, keyFile, "test-client")
	require.NoError(t, err)

	// Remove the key and leave the certificate behind.
	require.NoError(t, os.Remove(keyFile))
	_, err = GenerateIfMissing(certFile, keyFile, "test-client")
	assert.Error(t, err)
}

func TestLoadCertificate_Errors(t *testing.T) {
	_, err := LoadCertificate(filepath.Join(t.TempDir(), "missing.pem"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "garbage.pem")
	require.NoError(t, os.WriteFile(path, []byte("not a certificate"), 0600))
	_, err = LoadCertificate(path)
	assert.Error(t, err)
}
