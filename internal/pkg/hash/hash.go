// Package hash provides hashing utilities.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SHA256 computes the SHA256 hash of data and returns it as a hex string.
func SHA256(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SHA256String computes the SHA256 hash of a string.
func SHA256String(s string) string {
	return SHA256([]byte(s))
}

// SHA256Short returns the first n characters of a SHA256 hash.
func SHA256Short(data []byte, n int) string {
	h := SHA256(data)
	if n > len(h) {
		return h
	}
	return h[:n]
}

// unitSep never appears in dataset, regid or case identifiers.
const unitSep = "\x1f"

// FragmentKey generates a deterministic key from the parts of a resolved
// (dataset, regid, cfgid, tgtid, measure) tuple. Empty parts are significant.
func FragmentKey(parts ...string) string {
	return SHA256Short([]byte(strings.Join(parts, unitSep)), 32)
}
