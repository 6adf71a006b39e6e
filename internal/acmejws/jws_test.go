package acmejws

import (
	"encoding/json"
	"testing"

	"github.com/mdacme/mdacme/internal/acmecrypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignProducesVerifiableEnvelope(t *testing.T) {
	key, err := acmecrypto.GenerateRSA(2048)
	require.NoError(t, err)

	headers := ProtectedHeaders{
		JWK:   BuildJWK(&key.PublicKey),
		Nonce: "nonce-1",
		URL:   "https://ca.example/acme/new-reg",
	}

	envelope, err := Sign(key, headers, []byte(`{"contact":["mailto:a@x"]}`))
	require.NoError(t, err)
	assert.NotEmpty(t, envelope.Protected)
	assert.NotEmpty(t, envelope.Payload)
	assert.NotEmpty(t, envelope.Signature)

	require.NoError(t, Verify(&key.PublicKey, envelope))
}

func TestSignEmbedsNonceInProtectedHeaders(t *testing.T) {
	key, err := acmecrypto.GenerateRSA(2048)
	require.NoError(t, err)

	envelope, err := Sign(key, ProtectedHeaders{
		Kid:   "https://ca.example/acct/1",
		Nonce: "the-nonce",
	}, []byte(`{}`))
	require.NoError(t, err)

	decoded, err := acmecrypto.Base64URLDecode(envelope.Protected)
	require.NoError(t, err)

	var headers ProtectedHeaders
	require.NoError(t, json.Unmarshal(decoded, &headers))
	assert.Equal(t, "the-nonce", headers.Nonce)
	assert.Equal(t, "RS256", headers.Alg)
	assert.Equal(t, "https://ca.example/acct/1", headers.Kid)
	assert.Nil(t, headers.JWK)
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	key, err := acmecrypto.GenerateRSA(2048)
	require.NoError(t, err)

	envelope, err := Sign(key, ProtectedHeaders{JWK: BuildJWK(&key.PublicKey), Nonce: "n"}, []byte(`{}`))
	require.NoError(t, err)

	envelope.Payload = acmecrypto.Base64URLEncode([]byte(`{"tampered":true}`))
	assert.Error(t, Verify(&key.PublicKey, envelope))
}

func TestThumbprintStableForSameKey(t *testing.T) {
	key, err := acmecrypto.GenerateRSA(2048)
	require.NoError(t, err)

	t1, err := Thumbprint(&key.PublicKey)
	require.NoError(t, err)
	t2, err := Thumbprint(&key.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, t1, t2)
	assert.NotEmpty(t, t1)
}
