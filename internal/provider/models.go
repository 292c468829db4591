package provider

import (
	"time"

	"safeharbor/pkg/domain"
)

// MaxOfferedServices bounds the provider's service list.
const MaxOfferedServices = 10

// Providers start with a neutral reputation.
const defaultReputation = 50

// Capacity is the provider-level capacity triple. Available is recomputed on
// capacity changes from the utilization counter; the reservation engine tracks
// resource slots independently and never reconciles this triple (the two are
// deliberately separate counters).
type Capacity struct {
	Total       int
	Utilization int
	Available   int
}

// Provider is an organization offering bookable services. Only the creating
// owner may mutate it.
type Provider struct {
	ID         domain.ProviderID
	Name       string
	Contact    string
	Location   string
	Services   []domain.ServiceType
	Capacity   Capacity
	Reputation int
	Status     domain.Status
	Owner      domain.Actor
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Availability is the per-resource slot quad. Outside an in-flight update,
// AvailableSlots + ReservedSlots == TotalSlots always holds. WaitlistCount is
// stored but not managed by this engine.
type Availability struct {
	TotalSlots     int
	AvailableSlots int
	ReservedSlots  int
	WaitlistCount  int
}

// Schedule is the weekly window during which the resource is bookable.
type Schedule struct {
	Start time.Time
	End   time.Time
}

// Resource is a schedulable, capacity-bounded offering belonging to one
// provider (a shelter bed block, a meal sitting). Slot counts only move
// through the reservation engine and the owner correction path.
type Resource struct {
	ID             domain.ResourceID
	ProviderID     domain.ProviderID
	Type           domain.ServiceType
	Name           string
	Description    string
	Availability   Availability
	Schedule       Schedule
	LocationDigest []byte
	Requirements   []string
	Cost           uint64
	Status         domain.Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
