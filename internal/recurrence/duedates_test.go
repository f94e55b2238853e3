package recurrence

import (
	"testing"
	"time"
)

func dates(ts []time.Time) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Format("2006-01-02")
	}
	return out
}

func equalDates(got []time.Time, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i, t := range got {
		if t.Format("2006-01-02") != want[i] {
			return false
		}
	}
	return true
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDueDatesDailyInterval(t *testing.T) {
	s := Schedule{
		Pattern: PatternDaily,
		Rule:    DailyRule{Interval: 2},
		Start:   day(2026, 3, 1),
		DueHour: 9,
		Loc:     time.UTC,
	}

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	got := s.DueDates(now, now.AddDate(0, 0, 7))

	want := []string{"2026-03-01", "2026-03-03", "2026-03-05", "2026-03-07"}
	if !equalDates(got, want) {
		t.Errorf("DueDates = %v, want %v", dates(got), want)
	}
}

func TestDueDatesDailyStartInFuture(t *testing.T) {
	s := Schedule{
		Pattern: PatternDaily,
		Rule:    DailyRule{},
		Start:   day(2026, 3, 10),
		DueHour: 9,
		Loc:     time.UTC,
	}

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	got := s.DueDates(now, now.AddDate(0, 0, 12))

	want := []string{"2026-03-10", "2026-03-11", "2026-03-12"}
	if !equalDates(got, want) {
		t.Errorf("DueDates = %v, want %v", dates(got), want)
	}
}

func TestDueDatesWeeklyDays(t *testing.T) {
	s := Schedule{
		Pattern: PatternWeekly,
		Rule: WeeklyRule{
			Days:     map[time.Weekday]bool{time.Monday: true, time.Thursday: true},
			Interval: 1,
		},
		Start:   day(2026, 3, 2), // a Monday
		DueHour: 18,
		Loc:     time.UTC,
	}

	now := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	got := s.DueDates(now, now.AddDate(0, 0, 14))

	want := []string{"2026-03-02", "2026-03-05", "2026-03-09", "2026-03-12"}
	if !equalDates(got, want) {
		t.Errorf("DueDates = %v, want %v", dates(got), want)
	}
}

func TestDueDatesBiweeklySkipsOffWeeks(t *testing.T) {
	s := Schedule{
		Pattern: PatternBiweekly,
		Rule: WeeklyRule{
			Days:     map[time.Weekday]bool{time.Saturday: true},
			Interval: 2,
		},
		Start:   day(2026, 3, 7), // a Saturday
		DueHour: 10,
		Loc:     time.UTC,
	}

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	got := s.DueDates(now, now.AddDate(0, 0, 35))

	want := []string{"2026-03-07", "2026-03-21", "2026-04-04"}
	if !equalDates(got, want) {
		t.Errorf("DueDates = %v, want %v", dates(got), want)
	}
}

func TestDueDatesMonthlyRollToLast(t *testing.T) {
	// Day 31 with last-day rolling lands on Feb 28 in a non-leap year.
	s := Schedule{
		Pattern: PatternMonthly,
		Rule:    MonthlyDayRule{Day: 31, RollToLast: true},
		Start:   day(2026, 1, 1),
		DueHour: 12,
		Loc:     time.UTC,
	}

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	got := s.DueDates(now, now.AddDate(0, 5, 0))

	want := []string{"2026-01-31", "2026-02-28", "2026-03-31", "2026-04-30", "2026-05-31"}
	if !equalDates(got, want) {
		t.Errorf("DueDates = %v, want %v", dates(got), want)
	}
}

func TestDueDatesMonthlySkipShortMonths(t *testing.T) {
	s := Schedule{
		Pattern: PatternMonthly,
		Rule:    MonthlyDayRule{Day: 31},
		Start:   day(2026, 1, 1),
		DueHour: 12,
		Loc:     time.UTC,
	}

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	got := s.DueDates(now, now.AddDate(0, 5, 0))

	want := []string{"2026-01-31", "2026-03-31", "2026-05-31"}
	if !equalDates(got, want) {
		t.Errorf("DueDates = %v, want %v", dates(got), want)
	}
}

func TestDueDatesMonthlyLastFriday(t *testing.T) {
	s := Schedule{
		Pattern: PatternMonthly,
		Rule:    MonthlyWeekdayRule{Nth: -1, Weekday: time.Friday},
		Start:   day(2026, 1, 1),
		DueHour: 17,
		Loc:     time.UTC,
	}

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	got := s.DueDates(now, now.AddDate(0, 3, 0))

	want := []string{"2026-01-30", "2026-02-27", "2026-03-27"}
	if !equalDates(got, want) {
		t.Errorf("DueDates = %v, want %v", dates(got), want)
	}
}

func TestDueDatesMonthlySecondTuesday(t *testing.T) {
	s := Schedule{
		Pattern: PatternMonthly,
		Rule:    MonthlyWeekdayRule{Nth: 2, Weekday: time.Tuesday},
		Start:   day(2026, 1, 1),
		DueHour: 17,
		Loc:     time.UTC,
	}

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	got := s.DueDates(now, now.AddDate(0, 2, 0))

	want := []string{"2026-01-13", "2026-02-10"}
	if !equalDates(got, want) {
		t.Errorf("DueDates = %v, want %v", dates(got), want)
	}
}

func TestDueDatesCustomDaysOfMonth(t *testing.T) {
	s := Schedule{
		Pattern: PatternCustom,
		Rule:    CustomRule{DaysOfMonth: map[int]bool{1: true, 15: true}},
		Start:   day(2026, 3, 1),
		DueHour: 8,
		Loc:     time.UTC,
	}

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	got := s.DueDates(now, now.AddDate(0, 2, 0))

	want := []string{"2026-03-01", "2026-03-15", "2026-04-01", "2026-04-15"}
	if !equalDates(got, want) {
		t.Errorf("DueDates = %v, want %v", dates(got), want)
	}
}

func TestDueDatesExcludeBeatsMatch(t *testing.T) {
	s := Schedule{
		Pattern: PatternDaily,
		Rule:    DailyRule{},
		Start:   day(2026, 3, 1),
		DueHour: 9,
		Loc:     time.UTC,
		Exclude: map[string]bool{"2026-03-03": true},
	}

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	got := s.DueDates(now, now.AddDate(0, 0, 5))

	want := []string{"2026-03-01", "2026-03-02", "2026-03-04", "2026-03-05"}
	if !equalDates(got, want) {
		t.Errorf("DueDates = %v, want %v", dates(got), want)
	}
}

func TestDueDatesIncludeUnion(t *testing.T) {
	// Include adds a date the rule would never match, sorted into place, and
	// never duplicates a date the rule already produced.
	s := Schedule{
		Pattern: PatternWeekly,
		Rule:    WeeklyRule{Days: map[time.Weekday]bool{time.Monday: true}, Interval: 1},
		Start:   day(2026, 3, 2),
		DueHour: 9,
		Loc:     time.UTC,
		Include: []time.Time{day(2026, 3, 4), day(2026, 3, 9)},
	}

	now := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	got := s.DueDates(now, now.AddDate(0, 0, 8))

	want := []string{"2026-03-02", "2026-03-04", "2026-03-09"}
	if !equalDates(got, want) {
		t.Errorf("DueDates = %v, want %v", dates(got), want)
	}
}

func TestDueDatesMonthFilter(t *testing.T) {
	s := Schedule{
		Pattern:       PatternMonthly,
		Rule:          MonthlyDayRule{Day: 15},
		Start:         day(2026, 1, 1),
		DueHour:       12,
		Loc:           time.UTC,
		AllowedMonths: map[time.Month]bool{time.June: true, time.July: true},
	}

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	got := s.DueDates(now, now.AddDate(0, 8, 0))

	want := []string{"2026-06-15", "2026-07-15"}
	if !equalDates(got, want) {
		t.Errorf("DueDates = %v, want %v", dates(got), want)
	}
}

func TestDueDatesMaxOccurrencesCountsPastDates(t *testing.T) {
	// Five total occurrences from the anchor; three are already in the past,
	// so only the remaining two fall inside the window.
	s := Schedule{
		Pattern:        PatternDaily,
		Rule:           DailyRule{},
		Start:          day(2026, 3, 1),
		DueHour:        9,
		Loc:            time.UTC,
		MaxOccurrences: 5,
	}

	now := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	got := s.DueDates(now, now.AddDate(0, 0, 30))

	want := []string{"2026-03-04", "2026-03-05"}
	if !equalDates(got, want) {
		t.Errorf("DueDates = %v, want %v", dates(got), want)
	}
}

func TestDueDatesEndDateCaps(t *testing.T) {
	s := Schedule{
		Pattern: PatternDaily,
		Rule:    DailyRule{},
		Start:   day(2026, 3, 1),
		End:     day(2026, 3, 3),
		DueHour: 9,
		Loc:     time.UTC,
	}

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	got := s.DueDates(now, now.AddDate(0, 0, 30))

	want := []string{"2026-03-01", "2026-03-02", "2026-03-03"}
	if !equalDates(got, want) {
		t.Errorf("DueDates = %v, want %v", dates(got), want)
	}
}

func TestDueDatesStaleDueTimeDropped(t *testing.T) {
	// Today's occurrence is due at 09:00; at 10:00 it is already past and
	// must not be produced.
	s := Schedule{
		Pattern: PatternDaily,
		Rule:    DailyRule{},
		Start:   day(2026, 3, 1),
		DueHour: 9,
		Loc:     time.UTC,
	}

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	got := s.DueDates(now, now.AddDate(0, 0, 2))

	want := []string{"2026-03-02", "2026-03-03"}
	if !equalDates(got, want) {
		t.Errorf("DueDates = %v, want %v", dates(got), want)
	}
}

func TestDueDatesTimezoneInstants(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	s := Schedule{
		Pattern:   PatternDaily,
		Rule:      DailyRule{},
		Start:     time.Date(2026, 3, 2, 0, 0, 0, 0, loc),
		DueHour:   18,
		DueMinute: 30,
		Loc:       loc,
	}

	now := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	got := s.DueDates(now, now.AddDate(0, 0, 1))
	if len(got) != 1 {
		t.Fatalf("len(DueDates) = %d, want 1: %v", len(got), got)
	}
	want := time.Date(2026, 3, 2, 18, 30, 0, 0, loc)
	if !got[0].Equal(want) {
		t.Errorf("instant = %v, want %v", got[0], want)
	}
}

func TestDueDatesEndBeforeStart(t *testing.T) {
	s := Schedule{
		Pattern: PatternDaily,
		Rule:    DailyRule{},
		Start:   day(2026, 3, 10),
		End:     day(2026, 3, 1),
		DueHour: 9,
		Loc:     time.UTC,
	}
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if got := s.DueDates(now, now.AddDate(0, 1, 0)); got != nil {
		t.Errorf("DueDates = %v, want nil", dates(got))
	}
}
