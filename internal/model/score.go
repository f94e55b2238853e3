package model

import "time"

const (
	TxEarned   = "earned"
	TxSpent    = "spent"
	TxBonus    = "bonus"
	TxPenalty  = "penalty"
	TxTransfer = "transfer"
	TxManual   = "manual"
)

const (
	SourceChore  = "chore"
	SourceReward = "reward"
	SourceStreak = "streak"
	SourceManual = "manual"
)

// UserScore is the per (member, household) mutable aggregate. Point fields are
// owned by the ledger, streak fields by the aggregator; every writer must
// serialize the read-modify-write in a single transaction.
type UserScore struct {
	ID                   int64      `json:"id"`
	MemberID             int64      `json:"member_id"`
	HouseholdID          int64      `json:"household_id"`
	CurrentPoints        int        `json:"current_points"`
	LifetimePoints       int        `json:"lifetime_points"`
	CurrentStreak        int        `json:"current_streak"`
	LongestStreak        int        `json:"longest_streak"`
	TotalChoresCompleted int        `json:"total_chores_completed"`
	LastChoreCompletedAt *time.Time `json:"last_chore_completed_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// PointTransaction is an immutable ledger entry. Rows are never updated or
// deleted; retention pruning does not apply to the ledger.
type PointTransaction struct {
	ID           int64     `json:"id"`
	MemberID     int64     `json:"member_id"`
	HouseholdID  int64     `json:"household_id"`
	Type         string    `json:"transaction_type"`
	Amount       int       `json:"amount"`
	BalanceAfter int       `json:"balance_after"`
	SourceType   string    `json:"source_type"`
	SourceID     *int64    `json:"source_id"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"created_at"`
}

const (
	PeriodDaily   = "daily"
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
	PeriodAllTime = "all_time"
)

// Periods lists every leaderboard period the aggregator rebuilds each cycle.
var Periods = []string{PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodAllTime}

type LeaderboardEntry struct {
	ID              int64     `json:"id"`
	HouseholdID     int64     `json:"household_id"`
	MemberID        int64     `json:"member_id"`
	Period          string    `json:"period"`
	PeriodStart     string    `json:"period_start"` // "2006-01-02"
	PeriodEnd       string    `json:"period_end"`
	Points          int       `json:"points"`
	ChoresCompleted int       `json:"chores_completed"`
	Rank            int       `json:"rank"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
