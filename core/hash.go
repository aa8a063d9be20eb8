package core

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"

	blake3 "lukechampine.com/blake3"
)

// EntityID is the 32-byte content identifier shared by every value, term, IR
// node and resource register in the system. Two structurally-equal values
// always produce identical EntityIDs (C1); it is computed as a hash of the
// canonical serialization (C2) of the content it names, never of the content
// directly.
type EntityID [32]byte

// NilEntityID is the zero identifier, used as a sentinel for "no id yet".
var NilEntityID = EntityID{}

// String renders the id as a lowercase hex string.
func (id EntityID) String() string {
	return hex.EncodeToString(id[:])
}

// Bytes returns the id's 32 raw bytes.
func (id EntityID) Bytes() []byte { return id[:] }

// Compare orders two ids by byte comparison.
func (id EntityID) Compare(other EntityID) int {
	return bytes.Compare(id[:], other[:])
}

// IsZero reports whether id is the nil identifier.
func (id EntityID) IsZero() bool { return id == NilEntityID }

// HashAlgorithm selects the digest used to derive an EntityID. BLAKE3 is the
// default; SHA-256 remains selectable for callers that need interoperability
// with sha256-addressed external stores (e.g. a concrete domain adapter).
type HashAlgorithm uint8

const (
	HashBLAKE3 HashAlgorithm = iota
	HashSHA256
)

// Hash computes the EntityID of the given canonical byte slice under algo.
// Hash is a pure function: no wall-clock, no nondeterministic iteration order
// enters the digest.
func Hash(algo HashAlgorithm, data []byte) EntityID {
	switch algo {
	case HashSHA256:
		return EntityID(sha256.Sum256(data))
	default:
		return EntityID(blake3.Sum256(data))
	}
}

// HashValue is a convenience wrapper computing the default-algorithm EntityID
// of data; used throughout the core engine where the algorithm choice is not
// caller-significant.
func HashValue(data []byte) EntityID {
	return Hash(HashBLAKE3, data)
}
