package model

import "time"

type Household struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Timezone  string    `json:"timezone"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Member struct {
	ID          int64     `json:"id"`
	HouseholdID int64     `json:"household_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Timezone    string    `json:"timezone"` // empty = inherit household timezone
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DigestSchedule is a member's scheduled reminder-digest slot for one weekday.
// Weekday is 0=Monday .. 6=Sunday; SendTime is a local "HH:MM" clock time.
type DigestSchedule struct {
	ID       int64  `json:"id"`
	MemberID int64  `json:"member_id"`
	Weekday  int    `json:"weekday"`
	SendTime string `json:"send_time"`
	Enabled  bool   `json:"enabled"`
}

// DigestSlot is a digest schedule joined with its member, as consumed by the
// digest job. MemberTimezone falls back to HouseholdTimezone when empty.
type DigestSlot struct {
	Schedule          DigestSchedule `json:"schedule"`
	HouseholdID       int64          `json:"household_id"`
	MemberName        string         `json:"member_name"`
	MemberEmail       string         `json:"member_email"`
	MemberTimezone    string         `json:"member_timezone"`
	HouseholdTimezone string         `json:"household_timezone"`
}

// Timezone resolves the effective zone name for the slot's member.
func (d DigestSlot) Timezone() string {
	if d.MemberTimezone != "" {
		return d.MemberTimezone
	}
	return d.HouseholdTimezone
}
