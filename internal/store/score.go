package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/choreboard/internal/model"
)

type ScoreStore struct {
	db *sql.DB
}

func NewScoreStore(db *sql.DB) *ScoreStore {
	return &ScoreStore{db: db}
}

func scanScore(scanner interface{ Scan(...any) error }) (*model.UserScore, error) {
	var u model.UserScore
	var lastCompleted sql.NullTime

	err := scanner.Scan(
		&u.ID, &u.MemberID, &u.HouseholdID, &u.CurrentPoints, &u.LifetimePoints,
		&u.CurrentStreak, &u.LongestStreak, &u.TotalChoresCompleted,
		&lastCompleted, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastCompleted.Valid {
		u.LastChoreCompletedAt = &lastCompleted.Time
	}
	return &u, nil
}

const scoreCols = `id, member_id, household_id, current_points, lifetime_points, current_streak, longest_streak, total_chores_completed, last_chore_completed_at, updated_at`

// AdjustParams describes one ledger adjustment.
type AdjustParams struct {
	MemberID    int64
	HouseholdID int64
	Type        string
	Amount      int
	SourceType  string
	SourceID    *int64
	Description string

	// IncrementCompleted bumps the completion counter and stamps the
	// completion time; set by the chore completion path only.
	IncrementCompleted bool
	CompletedAt        time.Time
}

// AdjustPoints applies one signed adjustment to a member's balance and records
// the ledger entry, in a single transaction. Earned and bonus amounts must be
// positive, spent and penalty negative, and every amount nonzero; a deduction
// that would drop the balance below zero fails with ErrInsufficientBalance and
// writes nothing. Positive amounts also accrue to lifetime points.
func (s *ScoreStore) AdjustPoints(p AdjustParams) (*model.PointTransaction, error) {
	if err := validateAmount(p.Type, p.Amount); err != nil {
		return nil, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO user_scores (member_id, household_id) VALUES (?, ?)
		 ON CONFLICT (member_id, household_id) DO NOTHING`,
		p.MemberID, p.HouseholdID,
	)
	if err != nil {
		return nil, fmt.Errorf("ensure score row: %w", err)
	}

	var current int
	err = tx.QueryRow(
		`SELECT current_points FROM user_scores WHERE member_id = ? AND household_id = ?`,
		p.MemberID, p.HouseholdID,
	).Scan(&current)
	if err != nil {
		return nil, fmt.Errorf("get current points: %w", err)
	}

	balance := current + p.Amount
	if balance < 0 {
		return nil, fmt.Errorf("member %d balance %d, adjustment %d: %w",
			p.MemberID, current, p.Amount, ErrInsufficientBalance)
	}

	lifetimeDelta := 0
	if p.Amount > 0 {
		lifetimeDelta = p.Amount
	}
	completedDelta := 0
	if p.IncrementCompleted {
		completedDelta = 1
	}

	if p.IncrementCompleted {
		completedAt := p.CompletedAt
		if completedAt.IsZero() {
			completedAt = time.Now()
		}
		_, err = tx.Exec(
			`UPDATE user_scores
			 SET current_points = ?, lifetime_points = lifetime_points + ?,
			     total_chores_completed = total_chores_completed + ?,
			     last_chore_completed_at = ?, updated_at = datetime('now')
			 WHERE member_id = ? AND household_id = ?`,
			balance, lifetimeDelta, completedDelta, completedAt.UTC(), p.MemberID, p.HouseholdID,
		)
	} else {
		_, err = tx.Exec(
			`UPDATE user_scores
			 SET current_points = ?, lifetime_points = lifetime_points + ?, updated_at = datetime('now')
			 WHERE member_id = ? AND household_id = ?`,
			balance, lifetimeDelta, p.MemberID, p.HouseholdID,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("update score: %w", err)
	}

	var sourceID sql.NullInt64
	if p.SourceID != nil {
		sourceID = sql.NullInt64{Int64: *p.SourceID, Valid: true}
	}

	result, err := tx.Exec(
		`INSERT INTO point_transactions (member_id, household_id, transaction_type, amount, balance_after, source_type, source_id, description)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.MemberID, p.HouseholdID, p.Type, p.Amount, balance, p.SourceType, sourceID, p.Description,
	)
	if err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	txID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetTransaction(txID)
}

// validateAmount enforces the per-type sign convention. Transfer and manual
// entries may carry either sign but never zero.
func validateAmount(txType string, amount int) error {
	if amount == 0 {
		return fmt.Errorf("type %s amount 0: %w", txType, ErrInvalidAmount)
	}
	switch txType {
	case model.TxEarned, model.TxBonus:
		if amount < 0 {
			return fmt.Errorf("type %s amount %d must be positive: %w", txType, amount, ErrInvalidAmount)
		}
	case model.TxSpent, model.TxPenalty:
		if amount > 0 {
			return fmt.Errorf("type %s amount %d must be negative: %w", txType, amount, ErrInvalidAmount)
		}
	case model.TxTransfer, model.TxManual:
	default:
		return fmt.Errorf("unknown type %s: %w", txType, ErrInvalidAmount)
	}
	return nil
}

func scanTransaction(scanner interface{ Scan(...any) error }) (*model.PointTransaction, error) {
	var t model.PointTransaction
	var sourceID sql.NullInt64

	err := scanner.Scan(
		&t.ID, &t.MemberID, &t.HouseholdID, &t.Type, &t.Amount, &t.BalanceAfter,
		&t.SourceType, &sourceID, &t.Description, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if sourceID.Valid {
		t.SourceID = &sourceID.Int64
	}
	return &t, nil
}

const transactionCols = `id, member_id, household_id, transaction_type, amount, balance_after, source_type, source_id, description, created_at`

func (s *ScoreStore) GetTransaction(id int64) (*model.PointTransaction, error) {
	row := s.db.QueryRow(`SELECT `+transactionCols+` FROM point_transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (s *ScoreStore) ListTransactions(memberID int64, limit int) ([]model.PointTransaction, error) {
	rows, err := s.db.Query(
		`SELECT `+transactionCols+` FROM point_transactions WHERE member_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		memberID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []model.PointTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		transactions = append(transactions, *t)
	}
	return transactions, rows.Err()
}

func (s *ScoreStore) GetScore(memberID, householdID int64) (*model.UserScore, error) {
	row := s.db.QueryRow(
		`SELECT `+scoreCols+` FROM user_scores WHERE member_id = ? AND household_id = ?`,
		memberID, householdID,
	)
	u, err := scanScore(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get score: %w", err)
	}
	return u, nil
}

func (s *ScoreStore) ListScoresByHousehold(householdID int64) ([]model.UserScore, error) {
	rows, err := s.db.Query(
		`SELECT `+scoreCols+` FROM user_scores WHERE household_id = ? ORDER BY current_points DESC, member_id ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	defer rows.Close()

	var scores []model.UserScore
	for rows.Next() {
		u, err := scanScore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		scores = append(scores, *u)
	}
	return scores, rows.Err()
}

// UpdateStreaks writes a member's recomputed streak stats. The stored longest
// streak is merged with the computed one and only ever grows. Zero rows
// matched means the member has no score row yet, which is fine since they
// also have no completions to count.
func (s *ScoreStore) UpdateStreaks(memberID, householdID int64, current, longest, total int, last time.Time) error {
	_, err := s.db.Exec(
		`UPDATE user_scores
		 SET current_streak = ?, longest_streak = MAX(longest_streak, ?),
		     total_chores_completed = ?, last_chore_completed_at = ?, updated_at = datetime('now')
		 WHERE member_id = ? AND household_id = ?`,
		current, longest, total, last.UTC(), memberID, householdID,
	)
	if err != nil {
		return fmt.Errorf("update streaks: %w", err)
	}
	return nil
}

// MemberTotals is one member's ledger activity over some window.
type MemberTotals struct {
	MemberID    int64
	HouseholdID int64
	Points      int
	Completions int
}

// EarnedTotalsSince sums each member's positive ledger amounts and counts
// their earned transactions created at or after since, across all households.
// Deductions do not reduce the total; leaderboards rank what was earned, not
// net movement. Members with no transactions in the window do not appear.
func (s *ScoreStore) EarnedTotalsSince(since time.Time) ([]MemberTotals, error) {
	rows, err := s.db.Query(
		`SELECT member_id, household_id,
		        SUM(CASE WHEN amount > 0 THEN amount ELSE 0 END),
		        SUM(CASE WHEN transaction_type = 'earned' THEN 1 ELSE 0 END)
		 FROM point_transactions
		 WHERE created_at >= ?
		 GROUP BY member_id, household_id`,
		since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("sum earned points: %w", err)
	}
	defer rows.Close()

	var totals []MemberTotals
	for rows.Next() {
		var m MemberTotals
		if err := rows.Scan(&m.MemberID, &m.HouseholdID, &m.Points, &m.Completions); err != nil {
			return nil, fmt.Errorf("scan earned totals: %w", err)
		}
		totals = append(totals, m)
	}
	return totals, rows.Err()
}
