package kvsession

import (
	"crypto/rand"
	"encoding/base32"
	"io"
)

const (
	// idEntropyBytes is the amount of randomness behind every session ID (160 bits).
	idEntropyBytes = 20
	// idLength is the base32 length of idEntropyBytes; 20 bytes encode without padding.
	idLength = 32
)

func generateID() (string, error) {
	ptr := idBufferPool.Get().(*[]byte)
	b := *ptr
	defer func() {
		clear(b)
		idBufferPool.Put(ptr)
	}()

	entropy := b[:idEntropyBytes]
	if _, err := io.ReadFull(rand.Reader, entropy); err != nil {
		return "", err
	}

	dst := b[idEntropyBytes:]
	base32.StdEncoding.Encode(dst, entropy)
	return string(dst), nil
}

// validIDChars is a lookup table for the base32 standard alphabet (A-Z, 2-7).
var validIDChars = [256]bool{}

func init() {
	for i := 0; i < len(validIDChars); i++ {
		c := byte(i)
		if (c >= 'A' && c <= 'Z') || (c >= '2' && c <= '7') {
			validIDChars[i] = true
		}
	}
}

// isValidID keeps malformed keys away from the store even when they carry a
// valid signature, e.g. after the ID format changed.
func isValidID(id string) bool {
	if len(id) != idLength {
		return false
	}
	for i := 0; i < idLength; i++ {
		if !validIDChars[id[i]] {
			return false
		}
	}
	return true
}
