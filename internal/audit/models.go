package audit

import (
	"time"
)

// EventCategory classifies audit events by their primary purpose. This
// enables different retention policies, topics, and routing downstream.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance.
	// Consent-adjacent actions on anonymous clients land here: registration,
	// case creation, salt rotation.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to monitoring and forensics:
	// denied access, emergency override toggles, configuration changes.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity useful for debugging:
	// reservations, status transitions, capacity updates.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Subject always
// carries a derived identifier (client hash hex, numeric entity id), never raw
// identifying data.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	Actor     string
	Subject   string
	Action    string
	Decision  string
	Reason    string
	RequestID string
}

// AuditEvent names every action the engine records.
type AuditEvent string

const (
	// Client events
	EventClientRegistered AuditEvent = "client_registered"
	EventClientAccessed   AuditEvent = "client_accessed"
	EventAccessDenied     AuditEvent = "access_denied"

	// Provider and resource events
	EventProviderRegistered AuditEvent = "provider_registered"
	EventCapacityUpdated    AuditEvent = "capacity_updated"
	EventResourceAdded      AuditEvent = "resource_added"
	EventSlotsCorrected     AuditEvent = "slots_corrected"

	// Reservation and request events
	EventRequestCreated       AuditEvent = "request_created"
	EventRequestStatusChanged AuditEvent = "request_status_changed"
	EventSlotReleased         AuditEvent = "slot_released"

	// Case events
	EventCaseCreated          AuditEvent = "case_created"
	EventCaseProgressAppended AuditEvent = "case_progress_appended"
	EventCaseWorkerAssigned   AuditEvent = "caseworker_assigned"
	EventCaseWorkerUnassigned AuditEvent = "caseworker_unassigned"

	// Admin events
	EventSaltRotated     AuditEvent = "salt_rotated"
	EventConfigReplaced  AuditEvent = "config_replaced"
	EventOverrideToggled AuditEvent = "override_toggled"
)

// eventCategories maps each audit event to its category. Compliance events
// require tamper-proof storage and long retention; security events feed
// monitoring; operations events can be sampled.
var eventCategories = map[AuditEvent]EventCategory{
	EventClientRegistered:     CategoryCompliance,
	EventCaseCreated:          CategoryCompliance,
	EventCaseProgressAppended: CategoryCompliance,
	EventSaltRotated:          CategoryCompliance,

	EventAccessDenied:         CategorySecurity,
	EventOverrideToggled:      CategorySecurity,
	EventConfigReplaced:       CategorySecurity,
	EventCaseWorkerAssigned:   CategorySecurity,
	EventCaseWorkerUnassigned: CategorySecurity,

	EventClientAccessed:       CategoryOperations,
	EventProviderRegistered:   CategoryOperations,
	EventCapacityUpdated:      CategoryOperations,
	EventResourceAdded:        CategoryOperations,
	EventSlotsCorrected:       CategoryOperations,
	EventRequestCreated:       CategoryOperations,
	EventRequestStatusChanged: CategoryOperations,
	EventSlotReleased:         CategoryOperations,
}

// Category resolves the category for an event name, defaulting to operations
// for unknown actions.
func (e AuditEvent) Category() EventCategory {
	if c, ok := eventCategories[e]; ok {
		return c
	}
	return CategoryOperations
}
