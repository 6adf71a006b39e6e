package acmejws

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
)

func sha256Sum(s string) [32]byte {
	return sha256.Sum256([]byte(s))
}

func rsaVerify(key *rsa.PublicKey, digest [32]byte, sig []byte) error {
	return rsa.VerifyPKCS1v15(key, crypto.SHA256, digest[:], sig)
}
