// Package kibohash computes the content digests that address blobs in the
// store. The digest is a 256-bit BLAKE3 hash, rendered as 64 lowercase hex
// characters. BLAKE3's internal Merkle-tree chunking gives large files
// tree-parallel hashing for free while small files hash with the same
// low, serial overhead as any streaming hash.
package kibohash

import (
	"encoding/hex"
	"hash"
	"io"

	"lukechampine.com/blake3"
)

// Size is the digest length in bytes.
const Size = 32

// New returns a fresh streaming hasher producing Size-byte sums.
func New() hash.Hash {
	return blake3.New(Size, nil)
}

// Digest is the lowercase-hex rendering of a content hash.
type Digest string

// String implements fmt.Stringer.
func (d Digest) String() string { return string(d) }

// Empty reports whether d is the zero value.
func (d Digest) Empty() bool { return d == "" }

// FromBytes hashes p and returns its Digest.
func FromBytes(p []byte) Digest {
	sum := blake3.Sum256(p)
	return Digest(hex.EncodeToString(sum[:]))
}

// FromReader streams r through the hasher without buffering its full
// contents, so files far larger than available memory hash in constant
// space.
func FromReader(r io.Reader) (Digest, error) {
	h := New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return Digest(hex.EncodeToString(h.Sum(nil))), nil
}

// Valid reports whether s is a syntactically valid digest: 64 lowercase
// hex characters.
func Valid(s string) bool {
	if len(s) != Size*2 {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		default:
			return false
		}
	}
	return true
}
