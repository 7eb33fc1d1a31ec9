// Package auth provides minimal password verification helpers.
//
// It intentionally avoids policy decisions and storage concerns.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
)

var ErrPasswordMismatch = errors.New("auth: password mismatch")

// HashPassword derives the stored digest for a queue password.
func HashPassword(password string) []byte {
	sum := sha256.Sum256([]byte(password))
	return sum[:]
}

// Verifier checks candidate passwords against a stored digest.
type Verifier struct {
	hash []byte
}

func NewVerifier(hash []byte) Verifier {
	out := make([]byte, len(hash))
	copy(out, hash)
	return Verifier{hash: out}
}

func NewPasswordVerifier(password string) Verifier {
	return Verifier{hash: HashPassword(password)}
}

func (v Verifier) Verify(password string) error {
	if len(v.hash) == 0 {
		return ErrPasswordMismatch
	}
	candidate := HashPassword(password)
	if subtle.ConstantTimeCompare(v.hash, candidate) != 1 {
		return ErrPasswordMismatch
	}
	return nil
}
