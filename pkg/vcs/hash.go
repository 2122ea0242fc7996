// Package vcs defines the repository data source consumed by the churn engines:
// object identifiers, tree entries and the read-only repository contract.
package vcs

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// Constants for hash operations.
const (
	// HashSize is the size of a SHA-1 object id in bytes.
	HashSize = 20
	// HashHexSize is the size of a hex-encoded object id.
	HashHexSize = 40
)

// ErrInvalidHash is returned when a hex string is not a valid object id.
var ErrInvalidHash = errors.New("invalid object id")

// Hash is an opaque, content-derived object identifier. Two trees or blobs
// with equal hashes are identical; nothing else about the value is interpreted.
type Hash [HashSize]byte

// ParseHash decodes a 40-character hex string.
func ParseHash(hexStr string) (Hash, error) {
	var hash Hash

	if len(hexStr) != HashHexSize {
		return hash, fmt.Errorf("%w: %q", ErrInvalidHash, hexStr)
	}

	_, err := hex.Decode(hash[:], []byte(hexStr))
	if err != nil {
		return Hash{}, fmt.Errorf("%w: %q", ErrInvalidHash, hexStr)
	}

	return hash, nil
}

// String returns the hex representation of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Short returns the abbreviated hex form used in log lines.
func (h Hash) Short() string {
	return h.String()[:7]
}

// IsZero returns true if the hash is all zeros.
func (h Hash) IsZero() bool {
	return h == Hash{}
}
