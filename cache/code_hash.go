package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashCode returns the hex SHA-256 of a device or user code. Stores key records
// by the hash so raw device codes never appear as keys.
func HashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
