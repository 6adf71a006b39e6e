// Package acmejws produces RFC 7515 flattened JSON serialization JWS
// envelopes for ACME signed requests (spec section 4.4), grounded on
// original_source/mod_md/md_jws.c. The envelope itself — protected
// headers, payload, signature, kid/jwk placement — is hand-built per the
// spec rather than delegated to a general-purpose JOSE signer, since that
// construction is the subject of this component; go-jose/go-jose is used
// only for its RFC 7638 JWK thumbprint (md_jws.c's thumbprint math is
// exactly the fiddly canonical-JSON ordering go-jose already implements
// correctly).
package acmejws

import (
	"crypto"
	"crypto/rsa"
	"encoding/json"

	josejwk "github.com/go-jose/go-jose/v4"

	"github.com/mdacme/mdacme/internal/acmecrypto"
	"github.com/mdacme/mdacme/internal/acmeerr"
)

// Envelope is the RFC 7515 flattened JSON serialization.
type Envelope struct {
	Protected string `json:"protected"`
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
}

// JWK is the minimal RSA public key representation embedded for
// anonymous (pre-account) requests.
type JWK struct {
	Kty string `json:"kty"`
	E   string `json:"e"`
	N   string `json:"n"`
}

// ProtectedHeaders carries the fields every ACME signed request needs:
// alg is always RS256; exactly one of JWK/Kid is set; Nonce and URL are
// populated immediately before signing by the transport.
type ProtectedHeaders struct {
	Alg   string `json:"alg"`
	JWK   *JWK   `json:"jwk,omitempty"`
	Kid   string `json:"kid,omitempty"`
	Nonce string `json:"nonce"`
	URL   string `json:"url,omitempty"`
}

// BuildJWK returns the public-key JWK for key.
func BuildJWK(key *rsa.PublicKey) *JWK {
	e64, n64 := acmecrypto.RSAPublicComponents(key)
	return &JWK{Kty: "RSA", E: e64, N: n64}
}

// Thumbprint returns the RFC 7638 base64url SHA-256 thumbprint of key's
// JWK, used to build the HTTP-01 key authorization (spec section 4.8 and
// the GLOSSARY's "key authorization").
func Thumbprint(key *rsa.PublicKey) (string, error) {
	jwk := josejwk.JSONWebKey{Key: key}
	sum, err := jwk.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", acmeerr.Wrap(acmeerr.KindGeneral, err, "compute jwk thumbprint")
	}
	return acmecrypto.Base64URLEncode(sum), nil
}

// Sign produces the flattened JSON serialization of payload under the
// given protected headers and key. Protected headers must already carry
// the current nonce (spec section 4.4: "nonce header is always supplied
// by the transport immediately before signing").
func Sign(key *rsa.PrivateKey, headers ProtectedHeaders, payload []byte) (*Envelope, error) {
	headers.Alg = "RS256"

	headerJSON, err := json.Marshal(headers)
	if err != nil {
		return nil, acmeerr.Wrap(acmeerr.KindGeneral, err, "marshal protected headers")
	}

	protected64 := acmecrypto.Base64URLEncode(headerJSON)
	payload64 := acmecrypto.Base64URLEncode(payload)

	signingInput := protected64 + "." + payload64
	signature64, err := acmecrypto.SignSHA256(key, []byte(signingInput))
	if err != nil {
		return nil, err
	}

	return &Envelope{
		Protected: protected64,
		Payload:   payload64,
		Signature: signature64,
	}, nil
}

// Verify checks that envelope's signature was produced by key over its
// protected/payload fields, used by tests and by the invariant in spec
// section 8 item 3.
func Verify(key *rsa.PublicKey, envelope *Envelope) error {
	signingInput := envelope.Protected + "." + envelope.Payload
	sigBytes, err := acmecrypto.Base64URLDecode(envelope.Signature)
	if err != nil {
		return acmeerr.Wrap(acmeerr.KindGeneral, err, "decode signature")
	}

	digest := sha256Sum(signingInput)
	if err := rsaVerify(key, digest, sigBytes); err != nil {
		return acmeerr.Wrap(acmeerr.KindGeneral, err, "verify jws signature")
	}
	return nil
}
