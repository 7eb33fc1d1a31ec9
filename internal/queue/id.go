package queue

import (
	"crypto/rand"
	"encoding/hex"
)

// newID returns a random 128-bit hex identifier. Used both for the
// stable self id and for clipboard items that arrive without one.
func newID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand never fails on supported platforms; a broken
		// entropy source is not recoverable here.
		panic(err)
	}
	return hex.EncodeToString(buf[:])
}
