package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/choreboard/internal/model"
)

type ChoreStore struct {
	db *sql.DB
}

func NewChoreStore(db *sql.DB) *ChoreStore {
	return &ChoreStore{db: db}
}

func scanChore(scanner interface{ Scan(...any) error }) (*model.Chore, error) {
	var c model.Chore
	var assignedTo sql.NullInt64
	var dueDate, completedAt sql.NullTime
	var recurrenceData sql.NullString

	err := scanner.Scan(
		&c.ID, &c.HouseholdID, &c.Title, &c.Description, &c.BasePoints,
		&c.Status, &c.AssignmentType, &assignedTo, &dueDate,
		&c.RecurrencePattern, &recurrenceData,
		&c.CreatedAt, &c.UpdatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	if assignedTo.Valid {
		c.AssignedTo = &assignedTo.Int64
	}
	if dueDate.Valid {
		c.DueDate = &dueDate.Time
	}
	if completedAt.Valid {
		c.CompletedAt = &completedAt.Time
	}
	c.RecurrenceData = recurrenceData.String
	return &c, nil
}

const choreCols = `id, household_id, title, description, base_points, status, assignment_type, assigned_to, due_date, recurrence_pattern, recurrence_data, created_at, updated_at, completed_at`

// CreateParams carries the caller-settable chore fields.
type CreateParams struct {
	HouseholdID       int64
	Title             string
	Description       string
	BasePoints        int
	AssignmentType    string
	AssignedTo        *int64
	DueDate           *time.Time
	RecurrencePattern string
	RecurrenceData    string
}

func (s *ChoreStore) Create(p CreateParams) (*model.Chore, error) {
	if p.AssignmentType == "" {
		p.AssignmentType = model.AssignmentAssigned
	}
	if p.RecurrencePattern == "" {
		p.RecurrencePattern = "none"
	}

	var aTo sql.NullInt64
	if p.AssignedTo != nil {
		aTo = sql.NullInt64{Int64: *p.AssignedTo, Valid: true}
	}
	var due sql.NullTime
	if p.DueDate != nil {
		due = sql.NullTime{Time: p.DueDate.UTC(), Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO chores (household_id, title, description, base_points, assignment_type, assigned_to, due_date, recurrence_pattern, recurrence_data)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.HouseholdID, p.Title, p.Description, p.BasePoints, p.AssignmentType, aTo, due, p.RecurrencePattern, p.RecurrenceData,
	)
	if err != nil {
		return nil, fmt.Errorf("insert chore: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ChoreStore) GetByID(id int64) (*model.Chore, error) {
	row := s.db.QueryRow(`SELECT `+choreCols+` FROM chores WHERE id = ?`, id)
	c, err := scanChore(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chore: %w", err)
	}
	return c, nil
}

func (s *ChoreStore) ListByHousehold(householdID int64) ([]model.Chore, error) {
	rows, err := s.db.Query(
		`SELECT `+choreCols+` FROM chores WHERE household_id = ? ORDER BY title ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list chores: %w", err)
	}
	defer rows.Close()
	return collectChores(rows)
}

// ListRecurring returns every non-cancelled chore with a recurrence pattern,
// across all households. The materializer walks this set each cycle.
func (s *ChoreStore) ListRecurring() ([]model.Chore, error) {
	rows, err := s.db.Query(
		`SELECT ` + choreCols + ` FROM chores
		 WHERE recurrence_pattern != 'none' AND status != 'cancelled'
		 ORDER BY id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list recurring chores: %w", err)
	}
	defer rows.Close()
	return collectChores(rows)
}

// ListOneOffDueBefore returns non-recurring chores still pending or in
// progress whose single due date is at or before the cutoff. The scanner
// treats these like instances.
func (s *ChoreStore) ListOneOffDueBefore(cutoff time.Time) ([]model.Chore, error) {
	rows, err := s.db.Query(
		`SELECT `+choreCols+` FROM chores
		 WHERE recurrence_pattern = 'none'
		   AND status IN ('pending', 'in_progress')
		   AND due_date IS NOT NULL AND due_date <= ?
		 ORDER BY due_date ASC`,
		cutoff.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list one-off chores due: %w", err)
	}
	defer rows.Close()
	return collectChores(rows)
}

func collectChores(rows *sql.Rows) ([]model.Chore, error) {
	var chores []model.Chore
	for rows.Next() {
		c, err := scanChore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chore: %w", err)
		}
		chores = append(chores, *c)
	}
	return chores, rows.Err()
}

func (s *ChoreStore) UpdateStatus(id int64, status string) error {
	_, err := s.db.Exec(
		`UPDATE chores SET status = ?, updated_at = datetime('now') WHERE id = ?`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("update chore status: %w", err)
	}
	return nil
}

func (s *ChoreStore) UpdateRecurrence(id int64, pattern, data string) error {
	_, err := s.db.Exec(
		`UPDATE chores SET recurrence_pattern = ?, recurrence_data = ?, updated_at = datetime('now') WHERE id = ?`,
		pattern, data, id,
	)
	if err != nil {
		return fmt.Errorf("update chore recurrence: %w", err)
	}
	return nil
}

func (s *ChoreStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM chores WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete chore: %w", err)
	}
	return nil
}
