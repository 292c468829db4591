package domain

import (
	"encoding/hex"
	"fmt"
)

// ClientHash is the anonymous identifier for a service recipient: a 32-byte
// digest derived from raw identifying data and the process-wide privacy salt.
// Raw identifying data never leaves the identity hasher; everything downstream
// keys on this digest.
type ClientHash [32]byte

// String renders the hash as lowercase hex for logging and transport.
func (h ClientHash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether the hash is the zero value (never a valid client).
func (h ClientHash) IsZero() bool {
	return h == ClientHash{}
}

// ParseClientHash decodes a 64-character hex string into a ClientHash.
func ParseClientHash(s string) (ClientHash, error) {
	var h ClientHash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("parse client hash: %w", err)
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("parse client hash: want %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)
	return h, nil
}

// Actor is an opaque principal identity supplied by the surrounding
// transport/auth layer. The core never authenticates actors; it only
// authorizes identities that arrive already authenticated.
type Actor string

// IsZero reports whether no actor was supplied.
func (a Actor) IsZero() bool { return a == "" }

// Registry-assigned identifiers. Each is a process-wide monotonic sequence
// starting at 1, owned by its respective store.
type (
	ProviderID uint64
	ResourceID uint64
	RequestID  uint64
	CaseID     uint64
)

func (id ProviderID) String() string { return fmt.Sprintf("%d", uint64(id)) }
func (id ResourceID) String() string { return fmt.Sprintf("%d", uint64(id)) }
func (id RequestID) String() string  { return fmt.Sprintf("%d", uint64(id)) }
func (id CaseID) String() string     { return fmt.Sprintf("%d", uint64(id)) }
