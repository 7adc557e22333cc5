package utils

import (
	"crypto/md5"
	"encoding/hex"
)

// HashString returns the hex md5 of input. Used as a cache key, not for integrity.
func HashString(input string) string {
	hash := md5.Sum([]byte(input))
	return hex.EncodeToString(hash[:])
}

// HashParts hashes parts joined by a NUL separator so ("ab","c") and ("a","bc") differ.
func HashParts(parts ...string) string {
	h := md5.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
