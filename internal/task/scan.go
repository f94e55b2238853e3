package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/choreboard/internal/model"
	"github.com/dukerupert/choreboard/internal/notify"
	"github.com/dukerupert/choreboard/internal/store"

	"go.uber.org/multierr"
)

// Scanner finds instances and legacy one-off chores that are due soon or
// overdue, notifies the responsible member with a cooldown against repeats,
// and expires overdue instances. Members on a digest schedule are left to the
// digest job for notification, but their overdue instances still expire.
type Scanner struct {
	instances     *store.InstanceStore
	chores        *store.ChoreStore
	households    *store.HouseholdStore
	notifications *store.NotificationStore
	notifier      *notify.Service
	leadTime      time.Duration
	cooldown      time.Duration
	logger        *slog.Logger
}

func NewScanner(instances *store.InstanceStore, chores *store.ChoreStore, households *store.HouseholdStore, notifications *store.NotificationStore, notifier *notify.Service, leadTime, cooldown time.Duration, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		instances:     instances,
		chores:        chores,
		households:    households,
		notifications: notifications,
		notifier:      notifier,
		leadTime:      leadTime,
		cooldown:      cooldown,
		logger:        logger,
	}
}

func (s *Scanner) Name() string { return "scan" }

func (s *Scanner) Run(now time.Time) error {
	digestMembers, err := s.households.DigestMemberIDs()
	if err != nil {
		return fmt.Errorf("load digest members: %w", err)
	}

	var errs error
	if err := s.scanInstances(now, digestMembers); err != nil {
		errs = multierr.Append(errs, err)
	}
	if err := s.scanOneOffChores(now, digestMembers); err != nil {
		errs = multierr.Append(errs, err)
	}
	return errs
}

func (s *Scanner) scanInstances(now time.Time, digestMembers map[int64]bool) error {
	items, err := s.instances.ListActiveDueBefore(now.Add(s.leadTime))
	if err != nil {
		return fmt.Errorf("list due instances: %w", err)
	}

	var errs error
	for _, item := range items {
		overdue := !item.Instance.DueDate.After(now)

		member := item.Instance.AssignedUser()
		if member != nil && !digestMembers[*member] {
			link := fmt.Sprintf("/instances/%d", item.Instance.ID)
			if err := s.remind(now, *member, item.HouseholdID, item.ChoreTitle, link, item.Instance.DueDate, overdue); err != nil {
				s.logger.Error("instance reminder failed", "instance_id", item.Instance.ID, "error", err)
				errs = multierr.Append(errs, err)
			}
		}

		// Past-due work cannot be completed anymore; expire it. A lost race
		// against a concurrent completion is fine, the completion wins.
		if overdue {
			if err := s.instances.Expire(item.Instance.ID); err != nil && !errors.Is(err, store.ErrInvalidTransition) {
				s.logger.Error("expire instance failed", "instance_id", item.Instance.ID, "error", err)
				errs = multierr.Append(errs, err)
			}
		}
	}
	return errs
}

func (s *Scanner) scanOneOffChores(now time.Time, digestMembers map[int64]bool) error {
	chores, err := s.chores.ListOneOffDueBefore(now.Add(s.leadTime))
	if err != nil {
		return fmt.Errorf("list due chores: %w", err)
	}

	var errs error
	for _, chore := range chores {
		if chore.AssignedTo == nil || digestMembers[*chore.AssignedTo] {
			continue
		}
		overdue := !chore.DueDate.After(now)
		link := fmt.Sprintf("/chores/%d", chore.ID)
		if err := s.remind(now, *chore.AssignedTo, chore.HouseholdID, chore.Title, link, *chore.DueDate, overdue); err != nil {
			s.logger.Error("chore reminder failed", "chore_id", chore.ID, "error", err)
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// remind emits one due or overdue notification unless an identical one was
// already sent inside the cooldown window.
func (s *Scanner) remind(now time.Time, memberID, householdID int64, title, link string, due time.Time, overdue bool) error {
	notifType := model.NotifChoreDue
	if overdue {
		notifType = model.NotifChoreOverdue
	}

	exists, err := s.notifications.RecentExists(memberID, householdID, notifType, link, now.Add(-s.cooldown))
	if err != nil {
		return fmt.Errorf("check cooldown: %w", err)
	}
	if exists {
		return nil
	}

	var notifTitle, message string
	if overdue {
		notifTitle = fmt.Sprintf("%s is overdue", title)
		message = fmt.Sprintf("%s was due %s.", title, due.Format("Mon Jan 2 at 15:04"))
	} else {
		notifTitle = fmt.Sprintf("%s is due soon", title)
		message = fmt.Sprintf("%s is due %s.", title, due.Format("Mon Jan 2 at 15:04"))
	}

	_, err = s.notifier.Notify(context.Background(), notify.Params{
		MemberID:    memberID,
		HouseholdID: householdID,
		Type:        notifType,
		Title:       notifTitle,
		Message:     message,
		Link:        link,
	})
	if err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}
