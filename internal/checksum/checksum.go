// Package checksum derives content digests for layout files. Digests serve
// as layout revisions and as the change detector of the layout index.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// ShortLen is the length of a Short digest.
const ShortLen = 8

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Short returns a prefix of Sum, long enough to tell apart file names.
func Short(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:ShortLen/2])
}
