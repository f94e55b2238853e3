package task

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/choreboard/internal/model"
	"github.com/dukerupert/choreboard/internal/notify"
	"github.com/dukerupert/choreboard/internal/recurrence"
	"github.com/dukerupert/choreboard/internal/store"

	"go.uber.org/multierr"
)

// Digest sends each scheduled member a single aggregated reminder at their
// local send time. It must run much more often than its tolerance window is
// wide, or send times fall between ticks.
type Digest struct {
	households    *store.HouseholdStore
	instances     *store.InstanceStore
	chores        *store.ChoreStore
	notifications *store.NotificationStore
	notifier      *notify.Service
	leadTime      time.Duration
	tolerance     time.Duration
	defaultLoc    *time.Location
	logger        *slog.Logger
}

func NewDigest(households *store.HouseholdStore, instances *store.InstanceStore, chores *store.ChoreStore, notifications *store.NotificationStore, notifier *notify.Service, leadTime, tolerance time.Duration, defaultLoc *time.Location, logger *slog.Logger) *Digest {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultLoc == nil {
		defaultLoc = time.UTC
	}
	return &Digest{
		households:    households,
		instances:     instances,
		chores:        chores,
		notifications: notifications,
		notifier:      notifier,
		leadTime:      leadTime,
		tolerance:     tolerance,
		defaultLoc:    defaultLoc,
		logger:        logger,
	}
}

func (d *Digest) Name() string { return "digest" }

func (d *Digest) Run(now time.Time) error {
	slots, err := d.households.ListEnabledDigestSlots()
	if err != nil {
		return fmt.Errorf("list digest slots: %w", err)
	}
	if len(slots) == 0 {
		return nil
	}

	items, err := d.instances.ListActiveDueBefore(now.Add(d.leadTime))
	if err != nil {
		return fmt.Errorf("list due instances: %w", err)
	}
	oneOffs, err := d.chores.ListOneOffDueBefore(now.Add(d.leadTime))
	if err != nil {
		return fmt.Errorf("list due chores: %w", err)
	}

	var errs error
	for _, slot := range slots {
		dayStart, fires := d.slotFires(slot, now)
		if !fires {
			continue
		}
		// One digest per slot per local day, even when consecutive runs
		// both land inside the tolerance window.
		sent, err := d.notifications.RecentExists(slot.Schedule.MemberID, slot.HouseholdID,
			model.NotifChoreDigest, "/chores", dayStart)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("check digest sent: %w", err))
			continue
		}
		if sent {
			continue
		}
		if err := d.sendDigest(slot, now, items, oneOffs); err != nil {
			d.logger.Error("digest failed", "member_id", slot.Schedule.MemberID, "error", err)
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// slotFires reports whether the slot's local scheduled time falls within the
// tolerance window around now on the member's local weekday. On a hit it also
// returns the start of that local day, which keys the once-per-day guard.
func (d *Digest) slotFires(slot model.DigestSlot, now time.Time) (time.Time, bool) {
	loc := d.defaultLoc
	if name := slot.Timezone(); name != "" {
		parsed, err := time.LoadLocation(name)
		if err != nil {
			d.logger.Warn("invalid digest timezone, falling back",
				"member_id", slot.Schedule.MemberID, "timezone", name)
		} else {
			loc = parsed
		}
	}

	local := now.In(loc)
	if recurrence.MondayIndex(local.Weekday()) != slot.Schedule.Weekday {
		return time.Time{}, false
	}

	sendTime, err := time.Parse("15:04", slot.Schedule.SendTime)
	if err != nil {
		d.logger.Warn("invalid digest send time, skipping",
			"member_id", slot.Schedule.MemberID, "send_time", slot.Schedule.SendTime)
		return time.Time{}, false
	}

	scheduled := time.Date(local.Year(), local.Month(), local.Day(),
		sendTime.Hour(), sendTime.Minute(), 0, 0, loc)
	diff := now.Sub(scheduled)
	if diff < 0 {
		diff = -diff
	}
	if diff > d.tolerance {
		return time.Time{}, false
	}
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return dayStart, true
}

func (d *Digest) sendDigest(slot model.DigestSlot, now time.Time, items []model.DueItem, oneOffs []model.Chore) error {
	memberID := slot.Schedule.MemberID

	type line struct {
		title   string
		due     time.Time
		overdue bool
	}
	var lines []line

	for _, item := range items {
		if member := item.Instance.AssignedUser(); member == nil || *member != memberID {
			continue
		}
		lines = append(lines, line{item.ChoreTitle, item.Instance.DueDate, !item.Instance.DueDate.After(now)})
	}
	for _, chore := range oneOffs {
		if chore.AssignedTo == nil || *chore.AssignedTo != memberID {
			continue
		}
		lines = append(lines, line{chore.Title, *chore.DueDate, !chore.DueDate.After(now)})
	}

	// No due work means no digest; an empty reminder is just noise.
	if len(lines) == 0 {
		return nil
	}

	var b strings.Builder
	overdueCount := 0
	for _, l := range lines {
		if l.overdue {
			overdueCount++
			fmt.Fprintf(&b, "- %s (overdue, was due %s)\n", l.title, l.due.Format("Mon Jan 2 at 15:04"))
		} else {
			fmt.Fprintf(&b, "- %s (due %s)\n", l.title, l.due.Format("Mon Jan 2 at 15:04"))
		}
	}

	title := fmt.Sprintf("You have %d chores waiting", len(lines))
	if len(lines) == 1 {
		title = "You have 1 chore waiting"
	}
	if overdueCount > 0 {
		title += fmt.Sprintf(" (%d overdue)", overdueCount)
	}

	_, err := d.notifier.Notify(context.Background(), notify.Params{
		MemberID:    memberID,
		HouseholdID: slot.HouseholdID,
		Type:        model.NotifChoreDigest,
		Title:       title,
		Message:     b.String(),
		Link:        "/chores",
		Email:       slot.MemberEmail,
	})
	if err != nil {
		return fmt.Errorf("notify digest: %w", err)
	}
	return nil
}
