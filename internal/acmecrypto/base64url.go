package acmecrypto

import "encoding/base64"

// Base64URLEncode returns the unpadded, URL-safe base64 encoding of data,
// as required by every JOSE/ACME wire value (spec section 4.2).
func Base64URLEncode(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// Base64URLDecode is the inverse of Base64URLEncode. It also accepts
// padded input, since some CA implementations are not strict about it.
func Base64URLDecode(s string) ([]byte, error) {
	if b, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.URLEncoding.DecodeString(s)
}
