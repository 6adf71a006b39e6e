package acmecrypto

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/mdacme/mdacme/internal/acmeerr"
)

// EncodeCertificatePEM renders a single DER certificate as a PEM block.
func EncodeCertificatePEM(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

// EncodeChainPEM concatenates each DER certificate in chain as
// consecutive PEM blocks.
func EncodeChainPEM(chain [][]byte) []byte {
	var out []byte
	for _, der := range chain {
		out = append(out, EncodeCertificatePEM(der)...)
	}
	return out
}

// DecodeChainPEM parses zero or more certificates from an in-memory PEM
// buffer, tolerating a terminal "no start line" condition as
// end-of-stream rather than an error (spec section 4.2; grounded on
// original_source's md_crypt_read_chain).
func DecodeChainPEM(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, err
		}
		certs = append(certs, cert)
	}
	return certs, nil
}

// SaveCertificatePEM writes a single DER certificate to path as a PEM
// block with owner-only permissions.
func SaveCertificatePEM(path string, der []byte) error {
	data := EncodeCertificatePEM(der)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return acmeerr.Wrap(acmeerr.KindGeneral, err, fmt.Sprintf("save certificate %s", path))
	}
	return nil
}

// DecodeCertificatePEM parses the first certificate found in an
// in-memory PEM buffer.
func DecodeCertificatePEM(data []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, acmeerr.New(acmeerr.KindGeneral, "no PEM block found")
	}
	return x509.ParseCertificate(block.Bytes)
}

// LoadCertificate reads and parses the first certificate found at path.
func LoadCertificate(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, acmeerr.NotFound(fmt.Sprintf("certificate %s", path))
		}
		return nil, acmeerr.Wrap(acmeerr.KindGeneral, err, fmt.Sprintf("read certificate %s", path))
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, acmeerr.Newf(acmeerr.KindGeneral, "no PEM block in %s", path)
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, acmeerr.Wrap(acmeerr.KindGeneral, err, fmt.Sprintf("parse certificate %s", path))
	}
	return cert, nil
}

// SaveChainPEM concatenates each DER certificate in chain as consecutive
// PEM blocks and writes them to path.
func SaveChainPEM(path string, chain [][]byte) error {
	if err := os.WriteFile(path, EncodeChainPEM(chain), 0o600); err != nil {
		return acmeerr.Wrap(acmeerr.KindGeneral, err, fmt.Sprintf("save chain %s", path))
	}
	return nil
}

// LoadChain reads a PEM file containing zero or more certificates,
// stopping at end-of-stream. Grounded on original_source's
// md_crypt_read_chain / spec section 4.2: a terminal "no start line"
// condition is end-of-stream, not an error.
func LoadChain(path string) ([]*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, acmeerr.NotFound(fmt.Sprintf("chain %s", path))
		}
		return nil, acmeerr.Wrap(acmeerr.KindGeneral, err, fmt.Sprintf("read chain %s", path))
	}
	certs, err := DecodeChainPEM(data)
	if err != nil {
		return nil, acmeerr.Wrap(acmeerr.KindGeneral, err, fmt.Sprintf("parse chain %s", path))
	}
	return certs, nil
}
