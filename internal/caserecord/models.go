package caserecord

import (
	"time"

	"safeharbor/pkg/domain"
)

const (
	MaxGoals          = 10
	MaxProgressNotes  = 20
	MaxHistoryEntries = 50

	MinPrivacyLevel = 1
	MaxPrivacyLevel = 5
)

// ProgressNote is one dated entry in a case's progress log.
type ProgressNote struct {
	Timestamp time.Time
	Worker    domain.Actor
	Note      string
}

// HistoryEntry records one service interaction attached to the case.
type HistoryEntry struct {
	Timestamp time.Time
	RequestID domain.RequestID
	Summary   string
}

// OutcomeMetrics are the tracked wellbeing indicators. The set is overwritten
// wholesale on update; there is no per-field patch path.
type OutcomeMetrics struct {
	HousingStability    int
	EmploymentStatus    int
	HealthImprovements  int
	ServiceSatisfaction int
}

// CaseRecord is a case worker's file on an anonymous client. Worker is fixed
// at creation and never reassigned; a new worker opens a new case. The
// service plan and the goal list are set at creation and never mutated; the
// plan stays an opaque encrypted blob end to end.
type CaseRecord struct {
	ID            domain.CaseID
	ClientHash    domain.ClientHash
	Worker        domain.Actor
	Status        domain.Status
	ServicePlan   []byte
	Goals         []string
	ProgressNotes []ProgressNote
	History       []HistoryEntry
	Outcomes      OutcomeMetrics
	PrivacyLevel  int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ValidPrivacyLevel reports whether level falls inside the closed 1..5 range.
func ValidPrivacyLevel(level int) bool {
	return level >= MinPrivacyLevel && level <= MaxPrivacyLevel
}
