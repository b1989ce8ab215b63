// Package checksum derives stable content keys.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Key hashes parts joined by a NUL separator, so ("ab", "c") and ("a", "bc")
// produce different keys.
func Key(parts ...string) string {
	return Sum([]byte(strings.Join(parts, "\x00")))
}
