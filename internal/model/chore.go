package model

import "time"

// Chore statuses cover the legacy single-row lifecycle; recurring chores track
// their lifecycle on per-occurrence ChoreInstance rows instead.
const (
	ChoreStatusPending    = "pending"
	ChoreStatusInProgress = "in_progress"
	ChoreStatusCompleted  = "completed"
	ChoreStatusVerified   = "verified"
	ChoreStatusCancelled  = "cancelled"
)

const (
	AssignmentAssigned = "assigned"
	AssignmentGlobal   = "global"
	AssignmentRotating = "rotating"
)

type Chore struct {
	ID                int64      `json:"id"`
	HouseholdID       int64      `json:"household_id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	BasePoints        int        `json:"base_points"`
	Status            string     `json:"status"`
	AssignmentType    string     `json:"assignment_type"`
	AssignedTo        *int64     `json:"assigned_to"`
	DueDate           *time.Time `json:"due_date"`
	RecurrencePattern string     `json:"recurrence_pattern"`
	RecurrenceData    string     `json:"recurrence_data"` // JSON payload, parsed by the recurrence package
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	CompletedAt       *time.Time `json:"completed_at"`
}

// Instance statuses; transitions move forward only:
// available -> claimed -> in_progress -> completed -> verified, with expired
// terminal and reachable from any active status once the due date passes.
const (
	InstanceAvailable  = "available"
	InstanceClaimed    = "claimed"
	InstanceInProgress = "in_progress"
	InstanceCompleted  = "completed"
	InstanceVerified   = "verified"
	InstanceExpired    = "expired"
)

// ActiveInstanceStatuses are the statuses an instance can still be worked in.
var ActiveInstanceStatuses = []string{InstanceAvailable, InstanceClaimed, InstanceInProgress}

type ChoreInstance struct {
	ID            int64      `json:"id"`
	ChoreID       int64      `json:"chore_id"`
	AssignedTo    *int64     `json:"assigned_to"`
	ClaimedBy     *int64     `json:"claimed_by"`
	Status        string     `json:"status"`
	DueDate       time.Time  `json:"due_date"`
	StartedAt     *time.Time `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at"`
	VerifiedAt    *time.Time `json:"verified_at"`
	PointsAwarded *int       `json:"points_awarded"`
	CreatedAt     time.Time  `json:"created_at"`
}

// AssignedUser returns the member responsible for this instance. A claimer
// takes precedence over the original assignee.
func (i *ChoreInstance) AssignedUser() *int64 {
	if i.ClaimedBy != nil {
		return i.ClaimedBy
	}
	return i.AssignedTo
}

// IsActive reports whether the instance can still be worked or expired.
func (i *ChoreInstance) IsActive() bool {
	switch i.Status {
	case InstanceAvailable, InstanceClaimed, InstanceInProgress:
		return true
	}
	return false
}

// DueItem is a scanner row: an instance joined with the chore it belongs to.
type DueItem struct {
	Instance    ChoreInstance `json:"instance"`
	ChoreID     int64         `json:"chore_id"`
	ChoreTitle  string        `json:"chore_title"`
	HouseholdID int64         `json:"household_id"`
}
