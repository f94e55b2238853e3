package task

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/choreboard/internal/model"
	"github.com/dukerupert/choreboard/internal/recurrence"
	"github.com/dukerupert/choreboard/internal/store"

	"go.uber.org/multierr"
)

// Materializer expands each recurring chore's schedule over a rolling
// lookahead window and creates the missing instances. Repeated runs over the
// same window are no-ops thanks to the (chore, due_date) uniqueness.
type Materializer struct {
	chores     *store.ChoreStore
	instances  *store.InstanceStore
	households *store.HouseholdStore
	lookahead  time.Duration
	defaultLoc *time.Location
	logger     *slog.Logger
}

func NewMaterializer(chores *store.ChoreStore, instances *store.InstanceStore, households *store.HouseholdStore, lookahead time.Duration, defaultLoc *time.Location, logger *slog.Logger) *Materializer {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultLoc == nil {
		defaultLoc = time.UTC
	}
	return &Materializer{
		chores:     chores,
		instances:  instances,
		households: households,
		lookahead:  lookahead,
		defaultLoc: defaultLoc,
		logger:     logger,
	}
}

func (m *Materializer) Name() string { return "materialize" }

// Run walks every recurring chore once. A failure on one chore is logged and
// does not stop the others; the combined error is returned for job reporting.
func (m *Materializer) Run(now time.Time) error {
	chores, err := m.chores.ListRecurring()
	if err != nil {
		return fmt.Errorf("list recurring chores: %w", err)
	}

	zones, err := m.householdZones()
	if err != nil {
		return fmt.Errorf("load household zones: %w", err)
	}

	horizon := now.Add(m.lookahead)

	var errs error
	created := 0
	for _, chore := range chores {
		n, err := m.materializeChore(&chore, zones[chore.HouseholdID], now, horizon)
		if err != nil {
			m.logger.Error("materialize chore failed", "chore_id", chore.ID, "error", err)
			errs = multierr.Append(errs, fmt.Errorf("chore %d: %w", chore.ID, err))
			continue
		}
		created += n
	}

	if created > 0 {
		m.logger.Info("materialized chore instances", "created", created, "chores", len(chores))
	}
	return errs
}

func (m *Materializer) materializeChore(chore *model.Chore, householdTZ string, now, horizon time.Time) (int, error) {
	sched := recurrence.ParseSchedule(
		chore.RecurrencePattern, chore.RecurrenceData,
		chore.DueDate, householdTZ, m.defaultLoc, m.logger,
	)

	var assignedTo *int64
	if chore.AssignmentType == model.AssignmentAssigned {
		assignedTo = chore.AssignedTo
	}

	created := 0
	for _, due := range sched.DueDates(now, horizon) {
		_, wasNew, err := m.instances.GetOrCreate(chore.ID, assignedTo, due)
		if err != nil {
			return created, fmt.Errorf("instance at %s: %w", due.Format(time.RFC3339), err)
		}
		if wasNew {
			created++
		}
	}
	return created, nil
}

func (m *Materializer) householdZones() (map[int64]string, error) {
	households, err := m.households.List()
	if err != nil {
		return nil, err
	}
	zones := make(map[int64]string, len(households))
	for _, h := range households {
		zones[h.ID] = h.Timezone
	}
	return zones, nil
}
