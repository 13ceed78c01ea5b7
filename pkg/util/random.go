package util

import (
	"crypto/rand"
	"math/big"
)

const letters = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-"

// GenerateRandomString returns a random string of n characters from a
// url-safe alphabet. Used for opaque identifiers, not for PKCE material.
func GenerateRandomString(n int) string {
	ret := make([]byte, n)
	for i := 0; i < n; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
		if err != nil {
			// if random does not work, we have a big problem
			panic(err)
		}
		ret[i] = letters[num.Int64()]
	}

	return string(ret)
}
