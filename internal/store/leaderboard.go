package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/choreboard/internal/model"
)

type LeaderboardStore struct {
	db *sql.DB
}

func NewLeaderboardStore(db *sql.DB) *LeaderboardStore {
	return &LeaderboardStore{db: db}
}

func scanLeaderboardEntry(scanner interface{ Scan(...any) error }) (*model.LeaderboardEntry, error) {
	var e model.LeaderboardEntry
	var periodEnd sql.NullString

	err := scanner.Scan(
		&e.ID, &e.HouseholdID, &e.MemberID, &e.Period, &e.PeriodStart, &periodEnd,
		&e.Points, &e.ChoresCompleted, &e.Rank, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.PeriodEnd = periodEnd.String
	return &e, nil
}

const leaderboardCols = `id, household_id, member_id, period, period_start, period_end, points, chores_completed, rank, created_at, updated_at`

// EntryParams is one member's recomputed standing for a period window.
type EntryParams struct {
	HouseholdID     int64
	MemberID        int64
	Period          string
	PeriodStart     string
	PeriodEnd       string
	Points          int
	ChoresCompleted int
	Rank            int
}

// Replace rewrites one household's rows for a period window in a single
// transaction: every entry is upserted, then rows for members no longer in
// the set are deleted. Readers between rebuilds always see a complete board.
func (s *LeaderboardStore) Replace(householdID int64, period, periodStart string, entries []EntryParams) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	memberIDs := make(map[int64]bool, len(entries))
	for _, e := range entries {
		memberIDs[e.MemberID] = true
		_, err := tx.Exec(
			`INSERT INTO leaderboards (household_id, member_id, period, period_start, period_end, points, chores_completed, rank)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (household_id, member_id, period, period_start) DO UPDATE SET
			   period_end = excluded.period_end,
			   points = excluded.points,
			   chores_completed = excluded.chores_completed,
			   rank = excluded.rank,
			   updated_at = datetime('now')`,
			e.HouseholdID, e.MemberID, e.Period, e.PeriodStart, e.PeriodEnd, e.Points, e.ChoresCompleted, e.Rank,
		)
		if err != nil {
			return fmt.Errorf("upsert leaderboard entry: %w", err)
		}
	}

	rows, err := tx.Query(
		`SELECT member_id FROM leaderboards WHERE household_id = ? AND period = ? AND period_start = ?`,
		householdID, period, periodStart,
	)
	if err != nil {
		return fmt.Errorf("list stale entries: %w", err)
	}
	var stale []int64
	for rows.Next() {
		var memberID int64
		if err := rows.Scan(&memberID); err != nil {
			rows.Close()
			return fmt.Errorf("scan stale entry: %w", err)
		}
		if !memberIDs[memberID] {
			stale = append(stale, memberID)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("list stale entries: %w", err)
	}
	rows.Close()

	for _, memberID := range stale {
		_, err := tx.Exec(
			`DELETE FROM leaderboards WHERE household_id = ? AND member_id = ? AND period = ? AND period_start = ?`,
			householdID, memberID, period, periodStart,
		)
		if err != nil {
			return fmt.Errorf("delete stale entry: %w", err)
		}
	}

	return tx.Commit()
}

// List returns one household's board for a period window, best rank first.
func (s *LeaderboardStore) List(householdID int64, period, periodStart string) ([]model.LeaderboardEntry, error) {
	rows, err := s.db.Query(
		`SELECT `+leaderboardCols+` FROM leaderboards
		 WHERE household_id = ? AND period = ? AND period_start = ?
		 ORDER BY rank ASC`,
		householdID, period, periodStart,
	)
	if err != nil {
		return nil, fmt.Errorf("list leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []model.LeaderboardEntry
	for rows.Next() {
		e, err := scanLeaderboardEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan leaderboard entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// DeleteWindowsBefore removes finished non-all-time windows whose period_start
// is before the cutoff date.
func (s *LeaderboardStore) DeleteWindowsBefore(cutoff string) (int64, error) {
	result, err := s.db.Exec(
		`DELETE FROM leaderboards WHERE period != 'all_time' AND period_start < ?`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("delete old leaderboards: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
