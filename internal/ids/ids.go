// Package ids generates identifiers that are not assigned by the document store.
package ids

import (
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// DefaultLength is used by callers that don't configure a length.
const DefaultLength = 6

// Random returns an alphanumeric string of length n (e.g. an invite code).
func Random(n int) string {
	if n <= 0 {
		n = DefaultLength
	}
	max := big.NewInt(int64(len(alphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand does not fail on supported platforms
			panic(err)
		}
		b[i] = alphabet[idx.Int64()]
	}
	return string(b)
}

// New returns a UUID string. Every store names created documents with it.
func New() string {
	return uuid.New().String()
}
