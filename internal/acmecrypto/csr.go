package acmecrypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"sort"
	"strings"

	"github.com/mdacme/mdacme/internal/acmeerr"
)

// oidTLSFeature is the TLS Feature extension OID (RFC 7633), used to
// request OCSP must-staple (spec section 4.2: "value 5"). The DER bytes
// below are a literal transcription of original_source/mod_md/md_crypt.c's
// hard-coded must-staple extension value: a SEQUENCE containing the
// single INTEGER 5 (status_request).
var oidTLSFeature = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 1, 24}

var mustStapleExtensionValue = []byte{0x30, 0x03, 0x02, 0x01, 0x05}

// CSRSubject describes the identity to be encoded in the CSR: the MD
// name as CN and its deduplicated, lowercased domains as subjectAltName.
type CSRSubject struct {
	Name       string
	Domains    []string
	MustStaple bool
}

// BuildCSR builds a PKCS#10 certificate request signed with key, subject
// CN = subject.Name, SAN = subject.Domains (deduplicated, lowercased),
// and an optional must-staple TLS Feature extension, returning the
// base64url-encoded DER (spec section 4.2 build_csr).
func BuildCSR(subject CSRSubject, key *rsa.PrivateKey) (string, error) {
	domains := dedupLowercase(subject.Domains)
	if len(domains) == 0 {
		return "", acmeerr.New(acmeerr.KindInvalidArgument, "csr requires at least one domain")
	}

	template := &x509.CertificateRequest{
		Subject:            pkix.Name{CommonName: subject.Name},
		DNSNames:           domains,
		SignatureAlgorithm: x509.SHA256WithRSA,
	}

	if subject.MustStaple {
		template.ExtraExtensions = append(template.ExtraExtensions, pkix.Extension{
			Id:    oidTLSFeature,
			Value: mustStapleExtensionValue,
		})
	}

	der, err := x509.CreateCertificateRequest(rand.Reader, template, key)
	if err != nil {
		return "", acmeerr.Wrap(acmeerr.KindGeneral, err, "create certificate request")
	}

	return Base64URLEncode(der), nil
}

func dedupLowercase(domains []string) []string {
	seen := make(map[string]bool, len(domains))
	out := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
