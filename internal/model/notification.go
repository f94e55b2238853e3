package model

import "time"

const (
	NotifChoreDue      = "chore_due"
	NotifChoreOverdue  = "chore_overdue"
	NotifChoreDigest   = "chore_digest"
	NotifPointsAwarded = "points_awarded"
)

type Notification struct {
	ID          int64     `json:"id"`
	MemberID    int64     `json:"member_id"`
	HouseholdID int64     `json:"household_id"`
	Type        string    `json:"notification_type"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	Link        string    `json:"link"`
	IsRead      bool      `json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`
}

type PushSubscription struct {
	ID        int64     `json:"id"`
	MemberID  int64     `json:"member_id"`
	Endpoint  string    `json:"endpoint"`
	P256dhKey string    `json:"p256dh_key"`
	AuthKey   string    `json:"auth_key"`
	CreatedAt time.Time `json:"created_at"`
}
