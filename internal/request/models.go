package request

import (
	"time"

	"safeharbor/pkg/domain"
)

const (
	MinPriority = 1
	MaxPriority = 4

	MaxSpecialRequirements = 5
)

// ServiceRequest ties an anonymous client to a reserved slot on a resource.
// Creation reserves the slot; cancellation is the only path that returns it.
// RequestedTime is the slot the client asked for, distinct from CreatedAt.
// CaseWorker and Outcome are filled in by external coordination, not by the
// lifecycle itself.
type ServiceRequest struct {
	ID                  domain.RequestID
	ClientHash          domain.ClientHash
	ProviderID          domain.ProviderID
	ResourceID          domain.ResourceID
	Type                domain.ServiceType
	Status              domain.Status
	Priority            int
	SpecialRequirements []string
	RequestedTime       time.Time
	CaseWorker          domain.Actor
	Outcome             []byte
	CreatedAt           time.Time
	UpdatedAt           time.Time
	ExpiresAt           time.Time
}

// transitions is the closed lifecycle graph. Completed and cancelled are
// terminal; there is no resurrection path out of either.
var transitions = map[domain.Status]map[domain.Status]bool{
	domain.StatusPending: {
		domain.StatusActive:    true,
		domain.StatusCancelled: true,
	},
	domain.StatusActive: {
		domain.StatusInactive:  true,
		domain.StatusCompleted: true,
		domain.StatusCancelled: true,
	},
	domain.StatusInactive: {
		domain.StatusActive:    true,
		domain.StatusCancelled: true,
	},
}

// CanTransition reports whether the lifecycle permits moving from one status
// to another.
func CanTransition(from, to domain.Status) bool {
	return transitions[from][to]
}
