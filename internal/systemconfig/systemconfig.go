// Package systemconfig holds the process-wide, admin-mutable runtime
// configuration. It is deliberately an injected object owned by the top-level
// system instance, never an ambient global, so tests can run isolated
// instances side by side.
package systemconfig

import (
	"sync"
	"time"
)

// Config is the admin-mutable singleton. Replaced wholesale by the owner;
// the emergency override flag additionally has its own toggle path.
type Config struct {
	// MaxReservationTime bounds how long a pending reservation stays valid
	// before its expires_at passes. Applied at request creation only.
	MaxReservationTime time.Duration
	// DefaultPriorityDecay is the per-interval decay applied to priority
	// scores by external schedulers. Carried for collaborators; the core does
	// not act on it.
	DefaultPriorityDecay int
	// MinimumCaseUpdateInterval is advisory pacing for case-worker updates.
	MinimumCaseUpdateInterval time.Duration
	// PrivacyRetentionPeriod is the window after which a client record whose
	// last access is older counts as stale and access is denied.
	PrivacyRetentionPeriod time.Duration
	// EmergencyOverrideEnabled bypasses case-worker authorization for client
	// data access while set.
	EmergencyOverrideEnabled bool
}

// Defaults returns the configuration installed at system start.
func Defaults() Config {
	return Config{
		MaxReservationTime:        72 * time.Hour,
		DefaultPriorityDecay:      1,
		MinimumCaseUpdateInterval: 24 * time.Hour,
		PrivacyRetentionPeriod:    90 * 24 * time.Hour,
		EmergencyOverrideEnabled:  false,
	}
}

// Store guards the singleton for concurrent readers. All mutation goes
// through the admin service, which enforces the owner check.
type Store struct {
	mu  sync.RWMutex
	cfg Config
}

// NewStore seeds a store with the given initial configuration.
func NewStore(cfg Config) *Store {
	return &Store{cfg: cfg}
}

// Get returns a copy of the current configuration.
func (s *Store) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Replace swaps the configuration wholesale.
func (s *Store) Replace(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

// SetEmergencyOverride toggles only the override flag.
func (s *Store) SetEmergencyOverride(enabled bool) {
	s.mu.Lock()
	s.cfg.EmergencyOverrideEnabled = enabled
	s.mu.Unlock()
}
