package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/choreboard/internal/model"
)

type InstanceStore struct {
	db *sql.DB
}

func NewInstanceStore(db *sql.DB) *InstanceStore {
	return &InstanceStore{db: db}
}

func scanInstance(scanner interface{ Scan(...any) error }) (*model.ChoreInstance, error) {
	var i model.ChoreInstance
	var assignedTo, claimedBy sql.NullInt64
	var startedAt, completedAt, verifiedAt sql.NullTime
	var points sql.NullInt64

	err := scanner.Scan(
		&i.ID, &i.ChoreID, &assignedTo, &claimedBy, &i.Status, &i.DueDate,
		&startedAt, &completedAt, &verifiedAt, &points, &i.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if assignedTo.Valid {
		i.AssignedTo = &assignedTo.Int64
	}
	if claimedBy.Valid {
		i.ClaimedBy = &claimedBy.Int64
	}
	if startedAt.Valid {
		i.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		i.CompletedAt = &completedAt.Time
	}
	if verifiedAt.Valid {
		i.VerifiedAt = &verifiedAt.Time
	}
	if points.Valid {
		p := int(points.Int64)
		i.PointsAwarded = &p
	}
	return &i, nil
}

const instanceCols = `id, chore_id, assigned_to, claimed_by, status, due_date, started_at, completed_at, verified_at, points_awarded, created_at`

// GetOrCreate inserts an instance for (choreID, dueDate) if none exists and
// returns the row either way. The unique index makes concurrent callers
// converge on a single row; created reports whether this call inserted it.
func (s *InstanceStore) GetOrCreate(choreID int64, assignedTo *int64, dueDate time.Time) (*model.ChoreInstance, bool, error) {
	var aTo sql.NullInt64
	if assignedTo != nil {
		aTo = sql.NullInt64{Int64: *assignedTo, Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO chore_instances (chore_id, assigned_to, due_date) VALUES (?, ?, ?)
		 ON CONFLICT (chore_id, due_date) DO NOTHING`,
		choreID, aTo, dueDate.UTC(),
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert instance: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}

	row := s.db.QueryRow(
		`SELECT `+instanceCols+` FROM chore_instances WHERE chore_id = ? AND due_date = ?`,
		choreID, dueDate.UTC(),
	)
	inst, err := scanInstance(row)
	if err != nil {
		return nil, false, fmt.Errorf("get instance: %w", err)
	}
	return inst, n > 0, nil
}

func (s *InstanceStore) GetByID(id int64) (*model.ChoreInstance, error) {
	row := s.db.QueryRow(`SELECT `+instanceCols+` FROM chore_instances WHERE id = ?`, id)
	inst, err := scanInstance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get instance: %w", err)
	}
	return inst, nil
}

func (s *InstanceStore) ListByChore(choreID int64) ([]model.ChoreInstance, error) {
	rows, err := s.db.Query(
		`SELECT `+instanceCols+` FROM chore_instances WHERE chore_id = ? ORDER BY due_date ASC`,
		choreID,
	)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	defer rows.Close()

	var instances []model.ChoreInstance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		instances = append(instances, *inst)
	}
	return instances, rows.Err()
}

// ListActiveDueBefore returns every workable instance due at or before the
// cutoff, joined with its chore. Ordered by due date so the scanner handles
// the most overdue work first.
func (s *InstanceStore) ListActiveDueBefore(cutoff time.Time) ([]model.DueItem, error) {
	rows, err := s.db.Query(
		`SELECT i.id, i.chore_id, i.assigned_to, i.claimed_by, i.status, i.due_date,
		        i.started_at, i.completed_at, i.verified_at, i.points_awarded, i.created_at,
		        c.id, c.title, c.household_id
		 FROM chore_instances i
		 JOIN chores c ON c.id = i.chore_id
		 WHERE i.status IN ('available', 'claimed', 'in_progress') AND i.due_date <= ?
		 ORDER BY i.due_date ASC`,
		cutoff.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list due instances: %w", err)
	}
	defer rows.Close()

	var items []model.DueItem
	for rows.Next() {
		var item model.DueItem
		var assignedTo, claimedBy sql.NullInt64
		var startedAt, completedAt, verifiedAt sql.NullTime
		var points sql.NullInt64

		err := rows.Scan(
			&item.Instance.ID, &item.Instance.ChoreID, &assignedTo, &claimedBy,
			&item.Instance.Status, &item.Instance.DueDate,
			&startedAt, &completedAt, &verifiedAt, &points, &item.Instance.CreatedAt,
			&item.ChoreID, &item.ChoreTitle, &item.HouseholdID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan due instance: %w", err)
		}
		if assignedTo.Valid {
			item.Instance.AssignedTo = &assignedTo.Int64
		}
		if claimedBy.Valid {
			item.Instance.ClaimedBy = &claimedBy.Int64
		}
		if startedAt.Valid {
			item.Instance.StartedAt = &startedAt.Time
		}
		if points.Valid {
			p := int(points.Int64)
			item.Instance.PointsAwarded = &p
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Claim moves an available instance to claimed for the given member. The
// status is rechecked inside the transaction so two concurrent claimers
// cannot both win.
func (s *InstanceStore) Claim(id, memberID int64) (*model.ChoreInstance, error) {
	err := s.transition(id, func(status string) bool {
		return status == model.InstanceAvailable
	}, `UPDATE chore_instances SET status = 'claimed', claimed_by = ? WHERE id = ?`, memberID, id)
	if err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

// Start moves a claimed or available instance to in_progress.
func (s *InstanceStore) Start(id int64) (*model.ChoreInstance, error) {
	err := s.transition(id, func(status string) bool {
		return status == model.InstanceAvailable || status == model.InstanceClaimed
	}, `UPDATE chore_instances SET status = 'in_progress', started_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

// Complete moves an active instance to completed, recording the completer and
// the points awarded. memberID becomes claimed_by if nobody had claimed it.
func (s *InstanceStore) Complete(id, memberID int64, points int, completedAt time.Time) (*model.ChoreInstance, error) {
	err := s.transition(id, func(status string) bool {
		switch status {
		case model.InstanceAvailable, model.InstanceClaimed, model.InstanceInProgress:
			return true
		}
		return false
	}, `UPDATE chore_instances
	    SET status = 'completed', claimed_by = COALESCE(claimed_by, ?), completed_at = ?, points_awarded = ?
	    WHERE id = ?`, memberID, completedAt.UTC(), points, id)
	if err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

// Verify moves a completed instance to verified.
func (s *InstanceStore) Verify(id int64) (*model.ChoreInstance, error) {
	err := s.transition(id, func(status string) bool {
		return status == model.InstanceCompleted
	}, `UPDATE chore_instances SET status = 'verified', verified_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

// Expire moves an active instance to expired. Already-terminal instances are
// left untouched and reported via ErrInvalidTransition.
func (s *InstanceStore) Expire(id int64) error {
	return s.transition(id, func(status string) bool {
		switch status {
		case model.InstanceAvailable, model.InstanceClaimed, model.InstanceInProgress:
			return true
		}
		return false
	}, `UPDATE chore_instances SET status = 'expired' WHERE id = ?`, id)
}

// transition runs a guarded status update: read the current status inside a
// transaction, check it against allowed, then apply the update. sqlite's
// single-writer lock serializes the read and write.
func (s *InstanceStore) transition(id int64, allowed func(string) bool, query string, args ...any) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRow(`SELECT status FROM chore_instances WHERE id = ?`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return fmt.Errorf("instance %d: %w", id, ErrInvalidTransition)
	}
	if err != nil {
		return fmt.Errorf("get instance status: %w", err)
	}
	if !allowed(status) {
		return fmt.Errorf("instance %d in status %s: %w", id, status, ErrInvalidTransition)
	}

	if _, err := tx.Exec(query, args...); err != nil {
		return fmt.Errorf("update instance: %w", err)
	}
	return tx.Commit()
}

// Completion is one finished instance attributed to a member, as consumed by
// the streak and leaderboard aggregator.
type Completion struct {
	MemberID    int64
	HouseholdID int64
	CompletedAt time.Time
	Points      int
}

// ListCompletionsSince returns completed and verified instances finished at or
// after since, attributed to the claimer when present, else the assignee.
// Instances with neither are skipped.
func (s *InstanceStore) ListCompletionsSince(since time.Time) ([]Completion, error) {
	rows, err := s.db.Query(
		`SELECT COALESCE(i.claimed_by, i.assigned_to), c.household_id, i.completed_at, COALESCE(i.points_awarded, 0)
		 FROM chore_instances i
		 JOIN chores c ON c.id = i.chore_id
		 WHERE i.status IN ('completed', 'verified')
		   AND i.completed_at IS NOT NULL AND i.completed_at >= ?
		   AND COALESCE(i.claimed_by, i.assigned_to) IS NOT NULL
		 ORDER BY i.completed_at ASC`,
		since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	defer rows.Close()

	var completions []Completion
	for rows.Next() {
		var c Completion
		if err := rows.Scan(&c.MemberID, &c.HouseholdID, &c.CompletedAt, &c.Points); err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		completions = append(completions, c)
	}
	return completions, rows.Err()
}

// DeleteTerminalBefore removes completed, verified, and expired instances
// whose completion time, or due date for expired rows that never got one, is
// before the cutoff. Returns the number deleted.
func (s *InstanceStore) DeleteTerminalBefore(cutoff time.Time) (int64, error) {
	result, err := s.db.Exec(
		`DELETE FROM chore_instances
		 WHERE status IN ('completed', 'verified', 'expired')
		   AND COALESCE(completed_at, due_date) < ?`,
		cutoff.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("delete old instances: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
