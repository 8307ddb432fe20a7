package record

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
)

// Supported digest algorithms.
const (
	AlgorithmSHA256 = "sha256"
	AlgorithmBLAKE3 = "blake3"
)

// Digest is the fixed-size hash of a record's canonical form.
type Digest [32]byte

// String returns the lowercase hex encoding of the digest.
func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// Short returns the first 8 hex characters, used for display.
func (d Digest) Short() string { return d.String()[:8] }

// MarshalText encodes the digest as hex in JSON and YAML output.
func (d Digest) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// ParseDigest decodes a 64 character hex digest.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	raw, err := hex.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("decode digest: %w", err)
	}
	if len(raw) != len(d) {
		return d, fmt.Errorf("digest has %d bytes, want %d", len(raw), len(d))
	}
	copy(d[:], raw)
	return d, nil
}

// Hasher maps canonical bytes to a Digest. The zero Hasher uses SHA-256 and
// Hasher values are safe for concurrent use.
type Hasher struct {
	name string
	sum  func([]byte) [32]byte
}

// NewHasher returns the hasher for the named algorithm.
func NewHasher(name string) (Hasher, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", AlgorithmSHA256:
		return Hasher{name: AlgorithmSHA256, sum: sha256.Sum256}, nil
	case AlgorithmBLAKE3:
		return Hasher{name: AlgorithmBLAKE3, sum: blake3.Sum256}, nil
	default:
		return Hasher{}, fmt.Errorf("unsupported hash algorithm %q", name)
	}
}

// Name returns the algorithm name.
func (h Hasher) Name() string {
	if h.name == "" {
		return AlgorithmSHA256
	}
	return h.name
}

// Sum hashes already canonical bytes.
func (h Hasher) Sum(canonical []byte) Digest {
	if h.sum == nil {
		return sha256.Sum256(canonical)
	}
	return h.sum(canonical)
}

// Hash canonicalizes v and returns its digest together with the canonical
// bytes.
func (h Hasher) Hash(v Value) (Digest, []byte) {
	canonical := Canonicalize(v)
	return h.Sum(canonical), canonical
}
