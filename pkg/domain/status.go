package domain

// Status is the shared lifecycle enumeration used by providers, resources and
// service requests. The set is closed; values outside it are rejected as
// invalid input. What transitions are legal is scoped per entity (the request
// lifecycle enforces an explicit transition table, provider/resource status is
// a flat flag).
type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a member of the closed status enumeration.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusPending, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether a request in this status can never transition
// again. Terminal statuses guard the reservation engine against double
// release: a request leaves at most one cancellation behind.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}
