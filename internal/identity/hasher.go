// Package identity derives stable anonymous identifiers for clients. Raw
// identifying data enters here and nothing but a 32-byte digest leaves; the
// rest of the system never sees personal data.
package identity

import (
	"crypto/rand"
	"fmt"
	"sync"

	"golang.org/x/crypto/blake2b"

	"safeharbor/pkg/domain"
)

// SaltSize is the length of the privacy salt in bytes.
const SaltSize = 32

// Salt is the process-wide secret mixed into every derived hash.
type Salt [SaltSize]byte

// NewSalt draws a fresh salt from the OS entropy source.
func NewSalt() (Salt, error) {
	var s Salt
	if _, err := rand.Read(s[:]); err != nil {
		return s, fmt.Errorf("generate privacy salt: %w", err)
	}
	return s, nil
}

// Hasher derives client hashes as a keyed BLAKE2b-256 digest of the raw
// identifying data, keyed with the current salt. Deterministic for identical
// input under the same salt. Rotating the salt silently breaks linkage to all
// previously derived hashes; that is the privacy-rotation mechanism, not a
// defect.
type Hasher struct {
	mu   sync.RWMutex
	salt Salt
}

// NewHasher constructs a hasher with the given initial salt.
func NewHasher(salt Salt) *Hasher {
	return &Hasher{salt: salt}
}

// Derive computes the anonymous identifier for raw identifying data.
func (h *Hasher) Derive(raw []byte) domain.ClientHash {
	h.mu.RLock()
	salt := h.salt
	h.mu.RUnlock()

	// blake2b.New256 only errors on oversized keys; SaltSize is within bounds.
	mac, err := blake2b.New256(salt[:])
	if err != nil {
		panic(fmt.Sprintf("identity: keyed blake2b init: %v", err))
	}
	mac.Write(raw)

	var out domain.ClientHash
	copy(out[:], mac.Sum(nil))
	return out
}

// Rotate replaces the salt. Callers are expected to gate this behind the
// system owner check; the hasher itself has no notion of actors.
func (h *Hasher) Rotate(salt Salt) {
	h.mu.Lock()
	h.salt = salt
	h.mu.Unlock()
}
