package recurrence

import (
	"sort"
	"time"
)

// DueDates computes the due instants the schedule produces within
// [now, horizon], ordered ascending.
//
// Candidate dates are generated day by day from the anchor, filtered through
// the month filter and exclude set (an exclude always beats a pattern match),
// matched against the pattern rule, unioned with explicit include dates, and
// capped at MaxOccurrences counted from the earliest date forward. The cap is
// applied before the window filter, so occurrences that already fell in the
// past still consume it. Finally each surviving date is combined with the due
// time and zone; instants outside [now, horizon] are dropped, which also
// discards a stale due time earlier today.
func (s Schedule) DueDates(now, horizon time.Time) []time.Time {
	if !s.Pattern.Recurring() || s.Rule == nil {
		return nil
	}

	loc := s.Loc
	if loc == nil {
		loc = time.UTC
	}

	today := dateIn(now, loc)
	start := s.Start
	if start.IsZero() {
		start = today
	}
	if !s.End.IsZero() && s.End.Before(start) {
		return nil
	}

	horizonDate := dateIn(horizon, loc)

	// Without an occurrence cap past dates cannot matter, so iteration can
	// begin at today. With a cap they count, so it must begin at the anchor.
	iterStart := start
	if s.MaxOccurrences <= 0 && today.After(start) {
		iterStart = today
	}

	var days []time.Time
	for d := iterStart; !d.After(horizonDate); d = d.AddDate(0, 0, 1) {
		if !s.End.IsZero() && d.After(s.End) {
			break
		}
		if len(s.AllowedMonths) > 0 && !s.AllowedMonths[d.Month()] {
			continue
		}
		if s.Exclude[dateKey(d)] {
			continue
		}
		if s.Rule.matches(d, start) {
			days = append(days, d)
		}
	}

	seen := make(map[string]bool, len(days))
	for _, d := range days {
		seen[dateKey(d)] = true
	}
	for _, inc := range s.Include {
		d := dateIn(inc, loc)
		if d.Before(start) || d.After(horizonDate) || seen[dateKey(d)] {
			continue
		}
		days = append(days, d)
		seen[dateKey(d)] = true
	}

	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	if s.MaxOccurrences > 0 && len(days) > s.MaxOccurrences {
		days = days[:s.MaxOccurrences]
	}

	var out []time.Time
	for _, d := range days {
		instant := time.Date(d.Year(), d.Month(), d.Day(), s.DueHour, s.DueMinute, 0, 0, loc)
		if instant.Before(now) || instant.After(horizon) {
			continue
		}
		out = append(out, instant)
	}
	return out
}

// dateIn truncates an instant to its calendar date in loc, at local midnight.
func dateIn(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

func dateKey(d time.Time) string {
	return d.Format("2006-01-02")
}

// daysBetween returns whole calendar days from a to b, ignoring the zone and
// any DST shifts between them.
func daysBetween(a, b time.Time) int {
	au := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bu := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bu.Sub(au) / (24 * time.Hour))
}

// weekStart returns the Monday of t's week at local midnight.
func weekStart(t time.Time) time.Time {
	offset := MondayIndex(t.Weekday())
	monday := t.AddDate(0, 0, -offset)
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, t.Location())
}

// daysInMonth returns the number of days in the given month.
func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
