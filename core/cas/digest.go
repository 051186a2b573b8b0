// Package cas computes content digests and writes files atomically.
// Digests identify EPUB members before and after rewriting so a run report
// can show exactly what changed.
package cas

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Digest holds both SHA-256 and BLAKE3 hashes of one blob.
type Digest struct {
	SHA256 string `json:"sha256"`
	BLAKE3 string `json:"blake3"`
}

// IsZero reports whether no digest was computed.
func (d Digest) IsZero() bool {
	return d.SHA256 == "" && d.BLAKE3 == ""
}

// Hash computes the SHA-256 hash of the given data.
func Hash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Blake3Hash computes the BLAKE3 hash of the given data.
func Blake3Hash(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Sum computes both digests of data.
func Sum(data []byte) Digest {
	return Digest{SHA256: Hash(data), BLAKE3: Blake3Hash(data)}
}
