package acmecrypto

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRSADefaultBits(t *testing.T) {
	key, err := GenerateRSA(0)
	require.NoError(t, err)
	assert.Equal(t, DefaultKeyBits, key.N.BitLen())
	assert.NoError(t, key.Validate())
}

func TestSaveLoadPrivateKeyRoundTrip(t *testing.T) {
	key, err := GenerateRSA(2048)
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "pkey.pem")

	require.NoError(t, SavePrivateKey(path, key))

	loaded, err := LoadPrivateKey(path)
	require.NoError(t, err)
	assert.Equal(t, key.N, loaded.N)
	assert.Equal(t, key.E, loaded.E)
}

func TestLoadPrivateKeyNotFound(t *testing.T) {
	_, err := LoadPrivateKey(filepath.Join(t.TempDir(), "missing.pem"))
	require.Error(t, err)
}

func TestSignSHA256Deterministic(t *testing.T) {
	key, err := GenerateRSA(2048)
	require.NoError(t, err)

	sig1, err := SignSHA256(key, []byte("hello"))
	require.NoError(t, err)
	assert.NotEmpty(t, sig1)

	sig2, err := SignSHA256(key, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, sig1, sig2)

	decoded, err := Base64URLDecode(sig1)
	require.NoError(t, err)
	assert.Len(t, decoded, 2048/8)
}

func TestRSAPublicComponents(t *testing.T) {
	key, err := GenerateRSA(2048)
	require.NoError(t, err)

	e64, n64 := RSAPublicComponents(&key.PublicKey)
	assert.NotEmpty(t, e64)
	assert.NotEmpty(t, n64)

	eBytes, err := Base64URLDecode(e64)
	require.NoError(t, err)
	assert.NotEqual(t, byte(0), eBytes[0], "exponent must not have a leading zero byte")
}
