package acmecrypto

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/mdacme/mdacme/internal/acmeerr"
)

// DefaultKeyBits is the default RSA modulus size for generated account and
// MD service keys (spec section 4.2: "default 4096, caller may
// override").
const DefaultKeyBits = 4096

// GenerateRSA generates a new RSA private key of the given size, falling
// back to DefaultKeyBits when bits <= 0.
func GenerateRSA(bits int) (*rsa.PrivateKey, error) {
	if bits <= 0 {
		bits = DefaultKeyBits
	}
	ensureRandomReady()
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, acmeerr.Wrap(acmeerr.KindGeneral, err, "generate rsa key")
	}
	return key, nil
}

// ensureRandomReady seeds/blocks on the platform CSPRNG until it reports
// readiness (spec section 4.2 "RNG bootstrap"). crypto/rand.Reader on Go's
// supported platforms already blocks internally until the OS source is
// seeded, so this is a thin, retried readiness probe rather than a
// from-scratch seed: it draws a small sample and retries a bounded number
// of times if the platform source refuses to produce bytes yet.
func ensureRandomReady() {
	var probe [8]byte
	for attempt := 0; attempt < 5; attempt++ {
		if _, err := rand.Read(probe[:]); err == nil {
			return
		}
	}
}

// EncodePrivateKeyPEM renders an RSA private key as a PKCS#1 PEM block.
func EncodePrivateKeyPEM(key *rsa.PrivateKey) []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
}

// SavePrivateKey PEM-encodes key and writes it to path with owner-only
// permissions (spec section 4.2: "save enforces owner-only file
// permissions").
func SavePrivateKey(path string, key *rsa.PrivateKey) error {
	data := EncodePrivateKeyPEM(key)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return acmeerr.Wrap(acmeerr.KindGeneral, err, fmt.Sprintf("save private key %s", path))
	}
	return nil
}

// LoadPrivateKey reads and PEM-decodes an RSA private key, accepting both
// PKCS#1 and PKCS#8 encodings.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, acmeerr.NotFound(fmt.Sprintf("private key %s", path))
		}
		return nil, acmeerr.Wrap(acmeerr.KindGeneral, err, fmt.Sprintf("read private key %s", path))
	}
	key, err := DecodePrivateKeyPEM(data)
	if err != nil {
		return nil, acmeerr.Wrap(acmeerr.KindGeneral, err, fmt.Sprintf("parse private key %s", path))
	}
	return key, nil
}

// DecodePrivateKeyPEM parses a PEM-encoded RSA private key from an
// in-memory buffer, accepting both PKCS#1 and PKCS#8 encodings. Used
// directly by the store, which never writes PEM bytes to a path of its
// own choosing outside the atomic-rename protocol.
func DecodePrivateKeyPEM(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, acmeerr.New(acmeerr.KindGeneral, "no PEM block found")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, acmeerr.New(acmeerr.KindGeneral, "private key is not RSA")
	}
	return key, nil
}

// SignSHA256 signs data with key using RSASSA-PKCS1-v1_5 and SHA-256,
// returning the signature base64url-encoded (spec section 4.2
// sign_sha256).
func SignSHA256(key *rsa.PrivateKey, data []byte) (string, error) {
	digest := sha256.Sum256(data)
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		return "", acmeerr.Wrap(acmeerr.KindGeneral, err, "sign sha256")
	}
	return Base64URLEncode(sig), nil
}

// RSAPublicComponents returns the base64url-encoded big-endian exponent
// and modulus of an RSA public key, used to build the JWK (spec section
// 4.2).
func RSAPublicComponents(key *rsa.PublicKey) (e64, n64 string) {
	e := big64(key.E)
	n64 = Base64URLEncode(key.N.Bytes())
	e64 = Base64URLEncode(e)
	return
}

func big64(e int) []byte {
	// RFC 7518 requires the exponent as the minimal big-endian byte
	// sequence; 65537 (0x010001) is the overwhelmingly common case.
	buf := []byte{byte(e >> 16), byte(e >> 8), byte(e)}
	i := 0
	for i < len(buf)-1 && buf[i] == 0 {
		i++
	}
	return buf[i:]
}
