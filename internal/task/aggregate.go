package task

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dukerupert/choreboard/internal/model"
	"github.com/dukerupert/choreboard/internal/store"

	"go.uber.org/multierr"
)

// Aggregator recomputes per-member streaks from instance completions and
// rebuilds the ranked leaderboards from the transaction ledger.
type Aggregator struct {
	instances    *store.InstanceStore
	scores       *store.ScoreStore
	leaderboards *store.LeaderboardStore
	loc          *time.Location
	logger       *slog.Logger
}

func NewAggregator(instances *store.InstanceStore, scores *store.ScoreStore, leaderboards *store.LeaderboardStore, loc *time.Location, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{
		instances:    instances,
		scores:       scores,
		leaderboards: leaderboards,
		loc:          loc,
		logger:       logger,
	}
}

func (a *Aggregator) Name() string { return "aggregate" }

func (a *Aggregator) Run(now time.Time) error {
	var errs error
	if err := a.recomputeStreaks(now); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("streaks: %w", err))
	}
	if err := a.rebuildLeaderboards(now); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("leaderboards: %w", err))
	}
	return errs
}

// --- Streaks ---

type memberKey struct {
	householdID int64
	memberID    int64
}

func (a *Aggregator) recomputeStreaks(now time.Time) error {
	completions, err := a.instances.ListCompletionsSince(time.Unix(0, 0))
	if err != nil {
		return fmt.Errorf("list completions: %w", err)
	}

	type history struct {
		dates map[string]bool
		total int
		last  time.Time
	}
	groups := make(map[memberKey]*history)
	for _, c := range completions {
		key := memberKey{c.HouseholdID, c.MemberID}
		h := groups[key]
		if h == nil {
			h = &history{dates: make(map[string]bool)}
			groups[key] = h
		}
		local := c.CompletedAt.In(a.loc)
		h.dates[local.Format("2006-01-02")] = true
		h.total++
		if c.CompletedAt.After(h.last) {
			h.last = c.CompletedAt
		}
	}

	var errs error
	for key, h := range groups {
		current, longest := streaks(h.dates, a.loc)
		if err := a.scores.UpdateStreaks(key.memberID, key.householdID, current, longest, h.total, h.last); err != nil {
			a.logger.Error("streak update failed",
				"member_id", key.memberID, "household_id", key.householdID, "error", err)
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// streaks computes the consecutive-day run ending at the most recent
// completion date and the longest run anywhere in history. Same-day repeats
// collapse into one date; any gap over one day breaks a run.
func streaks(dateSet map[string]bool, loc *time.Location) (current, longest int) {
	if len(dateSet) == 0 {
		return 0, 0
	}

	dates := make([]time.Time, 0, len(dateSet))
	for ds := range dateSet {
		d, err := time.ParseInLocation("2006-01-02", ds, loc)
		if err != nil {
			continue
		}
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j]) })

	run := 1
	current = 1
	longest = 1
	atHead := true
	for i := 1; i < len(dates); i++ {
		if dates[i-1].AddDate(0, 0, -1).Equal(dates[i]) {
			run++
		} else {
			atHead = false
			run = 1
		}
		if atHead {
			current = run
		}
		if run > longest {
			longest = run
		}
	}
	return current, longest
}

// --- Leaderboards ---

func (a *Aggregator) rebuildLeaderboards(now time.Time) error {
	local := now.In(a.loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, a.loc)

	var errs error
	for _, period := range model.Periods {
		start, end := periodWindow(period, today)
		if err := a.rebuildPeriod(period, start, end); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("period %s: %w", period, err))
		}
	}
	return errs
}

// periodWindow returns the start instant and the inclusive start/end dates
// for one period anchored at today.
func periodWindow(period string, today time.Time) (start, end time.Time) {
	switch period {
	case model.PeriodDaily:
		return today, today
	case model.PeriodWeekly:
		offset := (int(today.Weekday()) + 6) % 7 // Monday-anchored
		start = today.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 6)
	case model.PeriodMonthly:
		start = time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
		return start, start.AddDate(0, 1, -1)
	default: // all_time
		return time.Date(1970, 1, 1, 0, 0, 0, 0, today.Location()), time.Time{}
	}
}

func (a *Aggregator) rebuildPeriod(period string, start, end time.Time) error {
	totals, err := a.scores.EarnedTotalsSince(start)
	if err != nil {
		return fmt.Errorf("earned totals: %w", err)
	}

	byHousehold := make(map[int64][]store.MemberTotals)
	for _, t := range totals {
		byHousehold[t.HouseholdID] = append(byHousehold[t.HouseholdID], t)
	}

	startDate := start.Format("2006-01-02")
	endDate := ""
	if !end.IsZero() {
		endDate = end.Format("2006-01-02")
	}

	var errs error
	for householdID, members := range byHousehold {
		sort.Slice(members, func(i, j int) bool {
			if members[i].Points != members[j].Points {
				return members[i].Points > members[j].Points
			}
			if members[i].Completions != members[j].Completions {
				return members[i].Completions > members[j].Completions
			}
			return members[i].MemberID < members[j].MemberID
		})

		entries := make([]store.EntryParams, len(members))
		for i, m := range members {
			entries[i] = store.EntryParams{
				HouseholdID:     householdID,
				MemberID:        m.MemberID,
				Period:          period,
				PeriodStart:     startDate,
				PeriodEnd:       endDate,
				Points:          m.Points,
				ChoresCompleted: m.Completions,
				Rank:            i + 1,
			}
		}
		if err := a.leaderboards.Replace(householdID, period, startDate, entries); err != nil {
			a.logger.Error("leaderboard rebuild failed",
				"household_id", householdID, "period", period, "error", err)
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}
