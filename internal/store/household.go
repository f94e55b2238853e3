package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/choreboard/internal/model"
)

type HouseholdStore struct {
	db *sql.DB
}

func NewHouseholdStore(db *sql.DB) *HouseholdStore {
	return &HouseholdStore{db: db}
}

// --- Household methods ---

func scanHousehold(scanner interface{ Scan(...any) error }) (*model.Household, error) {
	var h model.Household
	err := scanner.Scan(&h.ID, &h.Name, &h.Timezone, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

const householdCols = `id, name, timezone, created_at, updated_at`

func (s *HouseholdStore) Create(name, timezone string) (*model.Household, error) {
	if timezone == "" {
		timezone = "UTC"
	}
	result, err := s.db.Exec(
		`INSERT INTO households (name, timezone) VALUES (?, ?)`,
		name, timezone,
	)
	if err != nil {
		return nil, fmt.Errorf("insert household: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *HouseholdStore) GetByID(id int64) (*model.Household, error) {
	row := s.db.QueryRow(`SELECT `+householdCols+` FROM households WHERE id = ?`, id)
	h, err := scanHousehold(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get household: %w", err)
	}
	return h, nil
}

func (s *HouseholdStore) List() ([]model.Household, error) {
	rows, err := s.db.Query(`SELECT ` + householdCols + ` FROM households ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list households: %w", err)
	}
	defer rows.Close()

	var households []model.Household
	for rows.Next() {
		h, err := scanHousehold(rows)
		if err != nil {
			return nil, fmt.Errorf("scan household: %w", err)
		}
		households = append(households, *h)
	}
	return households, rows.Err()
}

func (s *HouseholdStore) UpdateTimezone(id int64, timezone string) error {
	_, err := s.db.Exec(
		`UPDATE households SET timezone = ?, updated_at = datetime('now') WHERE id = ?`,
		timezone, id,
	)
	if err != nil {
		return fmt.Errorf("update household timezone: %w", err)
	}
	return nil
}

// --- Member methods ---

func scanMember(scanner interface{ Scan(...any) error }) (*model.Member, error) {
	var m model.Member
	err := scanner.Scan(&m.ID, &m.HouseholdID, &m.Name, &m.Email, &m.Timezone, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

const memberCols = `id, household_id, name, email, timezone, created_at, updated_at`

func (s *HouseholdStore) CreateMember(householdID int64, name, email string) (*model.Member, error) {
	result, err := s.db.Exec(
		`INSERT INTO members (household_id, name, email) VALUES (?, ?, ?)`,
		householdID, name, email,
	)
	if err != nil {
		return nil, fmt.Errorf("insert member: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetMemberByID(id)
}

func (s *HouseholdStore) GetMemberByID(id int64) (*model.Member, error) {
	row := s.db.QueryRow(`SELECT `+memberCols+` FROM members WHERE id = ?`, id)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (s *HouseholdStore) ListMembers(householdID int64) ([]model.Member, error) {
	rows, err := s.db.Query(
		`SELECT `+memberCols+` FROM members WHERE household_id = ? ORDER BY name ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []model.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

// --- Digest schedule methods ---

func scanDigestSchedule(scanner interface{ Scan(...any) error }) (*model.DigestSchedule, error) {
	var d model.DigestSchedule
	err := scanner.Scan(&d.ID, &d.MemberID, &d.Weekday, &d.SendTime, &d.Enabled)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

const digestCols = `id, member_id, weekday, send_time, enabled`

// SetDigestSchedule creates or replaces a member's digest slot for one weekday.
func (s *HouseholdStore) SetDigestSchedule(memberID int64, weekday int, sendTime string, enabled bool) (*model.DigestSchedule, error) {
	_, err := s.db.Exec(
		`INSERT INTO digest_schedules (member_id, weekday, send_time, enabled) VALUES (?, ?, ?, ?)
		 ON CONFLICT (member_id, weekday) DO UPDATE SET send_time = excluded.send_time, enabled = excluded.enabled`,
		memberID, weekday, sendTime, enabled,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert digest schedule: %w", err)
	}

	row := s.db.QueryRow(
		`SELECT `+digestCols+` FROM digest_schedules WHERE member_id = ? AND weekday = ?`,
		memberID, weekday,
	)
	d, err := scanDigestSchedule(row)
	if err != nil {
		return nil, fmt.Errorf("get digest schedule: %w", err)
	}
	return d, nil
}

// DigestMemberIDs returns the set of members holding at least one enabled
// digest slot on any weekday. The scanner skips these members so the digest
// is their only reminder channel.
func (s *HouseholdStore) DigestMemberIDs() (map[int64]bool, error) {
	rows, err := s.db.Query(`SELECT DISTINCT member_id FROM digest_schedules WHERE enabled = 1`)
	if err != nil {
		return nil, fmt.Errorf("list digest members: %w", err)
	}
	defer rows.Close()

	members := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan digest member: %w", err)
		}
		members[id] = true
	}
	return members, rows.Err()
}

// ListEnabledDigestSlots returns every enabled digest slot across all
// weekdays, joined with the member it belongs to. The digest job filters by
// each member's local weekday, which need not match the server's.
func (s *HouseholdStore) ListEnabledDigestSlots() ([]model.DigestSlot, error) {
	rows, err := s.db.Query(
		`SELECT d.id, d.member_id, d.weekday, d.send_time, d.enabled,
		        m.household_id, m.name, m.email, m.timezone, h.timezone
		 FROM digest_schedules d
		 JOIN members m ON m.id = d.member_id
		 JOIN households h ON h.id = m.household_id
		 WHERE d.enabled = 1
		 ORDER BY d.member_id ASC, d.weekday ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list digest schedules: %w", err)
	}
	defer rows.Close()

	var slots []model.DigestSlot
	for rows.Next() {
		var slot model.DigestSlot
		err := rows.Scan(
			&slot.Schedule.ID, &slot.Schedule.MemberID, &slot.Schedule.Weekday,
			&slot.Schedule.SendTime, &slot.Schedule.Enabled,
			&slot.HouseholdID, &slot.MemberName, &slot.MemberEmail,
			&slot.MemberTimezone, &slot.HouseholdTimezone,
		)
		if err != nil {
			return nil, fmt.Errorf("scan digest slot: %w", err)
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}
