package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/choreboard/internal/model"
)

type NotificationStore struct {
	db *sql.DB
}

func NewNotificationStore(db *sql.DB) *NotificationStore {
	return &NotificationStore{db: db}
}

func scanNotification(scanner interface{ Scan(...any) error }) (*model.Notification, error) {
	var n model.Notification
	err := scanner.Scan(
		&n.ID, &n.MemberID, &n.HouseholdID, &n.Type, &n.Title, &n.Message,
		&n.Link, &n.IsRead, &n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

const notificationCols = `id, member_id, household_id, notification_type, title, message, link, is_read, created_at`

func (s *NotificationStore) Create(memberID, householdID int64, notifType, title, message, link string) (*model.Notification, error) {
	result, err := s.db.Exec(
		`INSERT INTO notifications (member_id, household_id, notification_type, title, message, link)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		memberID, householdID, notifType, title, message, link,
	)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *NotificationStore) GetByID(id int64) (*model.Notification, error) {
	row := s.db.QueryRow(`SELECT `+notificationCols+` FROM notifications WHERE id = ?`, id)
	n, err := scanNotification(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return n, nil
}

func (s *NotificationStore) ListByMember(memberID int64, limit int) ([]model.Notification, error) {
	rows, err := s.db.Query(
		`SELECT `+notificationCols+` FROM notifications WHERE member_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		memberID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, *n)
	}
	return notifications, rows.Err()
}

// RecentExists reports whether a notification of the given type, with the
// exact same link, was already created for the member at or after since. The
// scanner uses this to suppress repeat reminders inside the cooldown window.
func (s *NotificationStore) RecentExists(memberID, householdID int64, notifType, link string, since time.Time) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(1) FROM notifications
		 WHERE member_id = ? AND household_id = ? AND notification_type = ? AND link = ? AND created_at >= ?`,
		memberID, householdID, notifType, link, since.UTC(),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check recent notification: %w", err)
	}
	return n > 0, nil
}

func (s *NotificationStore) MarkRead(id int64) error {
	_, err := s.db.Exec(`UPDATE notifications SET is_read = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

// DeleteOlderThan removes notifications created before the cutoff. Returns
// the number deleted.
func (s *NotificationStore) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result, err := s.db.Exec(
		`DELETE FROM notifications WHERE created_at < ?`,
		cutoff.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("delete old notifications: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
