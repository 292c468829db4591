package client

import (
	"time"

	"safeharbor/pkg/domain"
)

// Fixed-capacity list bounds. Appending past these fails as invalid input.
const (
	MaxPreferredServices  = 10
	MaxAccessibilityNeeds = 5
)

// RiskLevel is an ordinal assessment recorded at registration.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
	RiskCritical
)

func (r RiskLevel) Valid() bool {
	return r >= RiskLow && r <= RiskCritical
}

// Client is an anonymous service recipient. The hash is the only identity the
// system ever stores; the emergency contact is an opaque encrypted blob passed
// through unchanged.
type Client struct {
	Hash               domain.ClientHash
	CreatedAt          time.Time
	LastAccess         time.Time
	HistoryDigest      []byte
	RiskLevel          RiskLevel
	PriorityScore      int
	PreferredServices  []domain.ServiceType
	AccessibilityNeeds []string
	EmergencyContact   []byte
}
