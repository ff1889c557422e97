package core

import (
	"crypto/rand"
	"math/big"
)

// Alphanum is the alphabet session ids are drawn from.
const Alphanum = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

var alphanumLen = big.NewInt(int64(len(Alphanum)))

// RandomAlphanum returns length characters picked uniformly, with
// replacement, from Alphanum. It does not check for collisions.
func RandomAlphanum(length int) string {
	if length <= 0 {
		return ""
	}

	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, alphanumLen)
		if err != nil {
			// crypto/rand only fails when the OS entropy source is broken.
			panic(err)
		}
		b[i] = Alphanum[n.Int64()]
	}
	return string(b)
}
