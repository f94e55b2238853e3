package recurrence

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"time"
)

type Pattern string

const (
	PatternNone     Pattern = "none"
	PatternDaily    Pattern = "daily"
	PatternWeekly   Pattern = "weekly"
	PatternBiweekly Pattern = "biweekly"
	PatternMonthly  Pattern = "monthly"
	PatternCustom   Pattern = "custom"
)

// ParsePattern maps a stored pattern string to a Pattern. Unknown values
// degrade to none, which generates no occurrences.
func ParsePattern(s string) Pattern {
	switch Pattern(s) {
	case PatternDaily, PatternWeekly, PatternBiweekly, PatternMonthly, PatternCustom:
		return Pattern(s)
	}
	return PatternNone
}

// Recurring reports whether the pattern produces instances at all.
func (p Pattern) Recurring() bool {
	return p != PatternNone
}

// Rule is the pattern-specific day matcher. DueDates only calls matches with
// candidate dates on or after the schedule's start date, so implementations
// may assume a non-negative distance from start.
type Rule interface {
	matches(d, start time.Time) bool
}

// DailyRule matches every Interval-th day counted from the start date.
type DailyRule struct {
	Interval int
}

func (r DailyRule) matches(d, start time.Time) bool {
	interval := r.Interval
	if interval < 1 {
		interval = 1
	}
	return daysBetween(start, d)%interval == 0
}

// WeeklyRule matches listed weekdays in every Interval-th week, weeks anchored
// on the Monday of the start date's week. An empty day set means the start
// date's own weekday.
type WeeklyRule struct {
	Days     map[time.Weekday]bool
	Interval int
}

func (r WeeklyRule) matches(d, start time.Time) bool {
	if len(r.Days) == 0 {
		if d.Weekday() != start.Weekday() {
			return false
		}
	} else if !r.Days[d.Weekday()] {
		return false
	}

	interval := r.Interval
	if interval < 1 {
		interval = 1
	}
	weeks := daysBetween(weekStart(start), weekStart(d)) / 7
	return weeks%interval == 0
}

// MonthlyDayRule matches a fixed day of each month. Day 0 means the start
// date's day. When the day exceeds a month's length, RollToLast moves the
// occurrence to that month's final day; otherwise the month is skipped.
type MonthlyDayRule struct {
	Day        int
	RollToLast bool
}

func (r MonthlyDayRule) matches(d, start time.Time) bool {
	day := r.Day
	if day == 0 {
		day = start.Day()
	}
	last := daysInMonth(d.Year(), d.Month())
	target := day
	if day > last {
		if !r.RollToLast {
			return false
		}
		target = last
	}
	return d.Day() == target
}

// MonthlyWeekdayRule matches the Nth occurrence of Weekday in each month.
// Nth -1 means the last occurrence: the one falling in the month's final
// seven days.
type MonthlyWeekdayRule struct {
	Nth     int
	Weekday time.Weekday
}

func (r MonthlyWeekdayRule) matches(d, start time.Time) bool {
	if d.Weekday() != r.Weekday {
		return false
	}
	if r.Nth == -1 {
		return d.Day() > daysInMonth(d.Year(), d.Month())-7
	}
	return (d.Day()-1)/7+1 == r.Nth
}

// CustomRule matches an explicit set of month days or an explicit date list,
// with no computed component.
type CustomRule struct {
	DaysOfMonth map[int]bool
	Dates       map[string]bool
}

func (r CustomRule) matches(d, start time.Time) bool {
	if len(r.DaysOfMonth) > 0 && r.DaysOfMonth[d.Day()] {
		return true
	}
	return r.Dates[dateKey(d)]
}

// Schedule is the fully resolved recurrence configuration for one chore.
type Schedule struct {
	Pattern Pattern
	Rule    Rule

	// Start is the anchor date at local midnight; zero means "resolve to
	// today when evaluated". End caps generation (zero = uncapped).
	Start time.Time
	End   time.Time

	DueHour   int
	DueMinute int
	Loc       *time.Location

	MaxOccurrences int
	AllowedMonths  map[time.Month]bool
	Exclude        map[string]bool
	Include        []time.Time
}

const defaultDueHour = 17

// rawSchedule is the persisted recurrence_data document. Numeric fields are
// decoded loosely so a malformed value degrades to its default instead of
// failing the whole chore.
type rawSchedule struct {
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date"`
	DueTime        string `json:"due_time"`
	Timezone       string `json:"timezone"`
	MaxOccurrences any    `json:"max_occurrences"`
	Rule           struct {
		Interval            any      `json:"interval"`
		DaysOfWeek          []any    `json:"days_of_week"`
		DayOfMonth          any      `json:"day_of_month"`
		RollStrategy        string   `json:"roll_strategy"`
		Nth                 any      `json:"nth"`
		Weekday             any      `json:"weekday"`
		SpecificDaysOfMonth []any    `json:"specific_days_of_month"`
		CustomDates         []string `json:"custom_dates"`
	} `json:"rule"`
	Filters struct {
		AllowedMonths []any    `json:"allowed_months"`
		ExcludeDates  []string `json:"exclude_dates"`
		IncludeDates  []string `json:"include_dates"`
	} `json:"filters"`
}

// ParseSchedule builds a Schedule from a chore's stored pattern and
// recurrence_data JSON. legacyDue is the chore's single due_date column, used
// as the anchor and time-of-day fallback. Timezone precedence: recurrence
// data, then household zone, then defaultLoc; an invalid zone name logs a
// warning and falls through. Parsing never fails: malformed fields resolve to
// defaults so one bad chore cannot abort a batch.
func ParseSchedule(pattern, data string, legacyDue *time.Time, householdTZ string, defaultLoc *time.Location, logger *slog.Logger) Schedule {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultLoc == nil {
		defaultLoc = time.UTC
	}

	s := Schedule{Pattern: ParsePattern(pattern)}
	if !s.Pattern.Recurring() {
		return s
	}

	var raw rawSchedule
	if data != "" {
		if err := json.Unmarshal([]byte(data), &raw); err != nil {
			logger.Warn("malformed recurrence data, using defaults", "error", err)
			raw = rawSchedule{}
		}
	}

	s.Loc = resolveLocation(raw.Timezone, householdTZ, defaultLoc, logger)

	if d, ok := parseDate(raw.StartDate, s.Loc); ok {
		s.Start = d
	} else if legacyDue != nil {
		s.Start = dateIn(*legacyDue, s.Loc)
	}

	if d, ok := parseDate(raw.EndDate, s.Loc); ok {
		s.End = d
	}

	s.DueHour, s.DueMinute = resolveDueTime(raw.DueTime, legacyDue, s.Loc, logger)

	if n, ok := asInt(raw.MaxOccurrences); ok && n > 0 {
		s.MaxOccurrences = n
	} else if raw.MaxOccurrences != nil && !ok {
		logger.Warn("invalid max_occurrences, ignoring", "value", raw.MaxOccurrences)
	}

	for _, v := range raw.Filters.AllowedMonths {
		if n, ok := asInt(v); ok && n >= 1 && n <= 12 {
			if s.AllowedMonths == nil {
				s.AllowedMonths = make(map[time.Month]bool)
			}
			s.AllowedMonths[time.Month(n)] = true
		}
	}
	for _, ds := range raw.Filters.ExcludeDates {
		if d, ok := parseDate(ds, s.Loc); ok {
			if s.Exclude == nil {
				s.Exclude = make(map[string]bool)
			}
			s.Exclude[dateKey(d)] = true
		} else {
			logger.Warn("invalid exclude date, skipping", "value", ds)
		}
	}
	for _, ds := range raw.Filters.IncludeDates {
		if d, ok := parseDate(ds, s.Loc); ok {
			s.Include = append(s.Include, d)
		} else {
			logger.Warn("invalid include date, skipping", "value", ds)
		}
	}

	s.Rule = buildRule(s.Pattern, raw)
	return s
}

func buildRule(p Pattern, raw rawSchedule) Rule {
	switch p {
	case PatternDaily:
		interval, _ := asInt(raw.Rule.Interval)
		return DailyRule{Interval: interval}

	case PatternWeekly, PatternBiweekly:
		interval, ok := asInt(raw.Rule.Interval)
		if !ok || interval < 1 {
			interval = 1
			if p == PatternBiweekly {
				interval = 2
			}
		}
		var days map[time.Weekday]bool
		for _, v := range raw.Rule.DaysOfWeek {
			if n, ok := asInt(v); ok && n >= 0 && n <= 6 {
				if days == nil {
					days = make(map[time.Weekday]bool)
				}
				days[weekdayFromIndex(n)] = true
			}
		}
		return WeeklyRule{Days: days, Interval: interval}

	case PatternMonthly:
		if nth, ok := asInt(raw.Rule.Nth); ok && (nth == -1 || (nth >= 1 && nth <= 4)) {
			if wd, ok := asInt(raw.Rule.Weekday); ok && wd >= 0 && wd <= 6 {
				return MonthlyWeekdayRule{Nth: nth, Weekday: weekdayFromIndex(wd)}
			}
		}
		day, _ := asInt(raw.Rule.DayOfMonth)
		if day < 0 || day > 31 {
			day = 0
		}
		return MonthlyDayRule{Day: day, RollToLast: raw.Rule.RollStrategy == "last_day"}

	case PatternCustom:
		rule := CustomRule{}
		for _, v := range raw.Rule.SpecificDaysOfMonth {
			if n, ok := asInt(v); ok && n >= 1 && n <= 31 {
				if rule.DaysOfMonth == nil {
					rule.DaysOfMonth = make(map[int]bool)
				}
				rule.DaysOfMonth[n] = true
			}
		}
		for _, ds := range raw.Rule.CustomDates {
			if d, ok := parseDate(ds, time.UTC); ok {
				if rule.Dates == nil {
					rule.Dates = make(map[string]bool)
				}
				rule.Dates[dateKey(d)] = true
			}
		}
		return rule
	}
	return nil
}

func resolveLocation(override, householdTZ string, defaultLoc *time.Location, logger *slog.Logger) *time.Location {
	for _, name := range []string{override, householdTZ} {
		if name == "" {
			continue
		}
		loc, err := time.LoadLocation(name)
		if err != nil {
			logger.Warn("invalid timezone, falling back", "timezone", name, "error", err)
			continue
		}
		return loc
	}
	return defaultLoc
}

func resolveDueTime(dueTime string, legacyDue *time.Time, loc *time.Location, logger *slog.Logger) (hour, minute int) {
	if dueTime != "" {
		if t, err := time.Parse("15:04", dueTime); err == nil {
			return t.Hour(), t.Minute()
		}
		logger.Warn("invalid due_time, falling back", "due_time", dueTime)
	}
	if legacyDue != nil {
		local := legacyDue.In(loc)
		return local.Hour(), local.Minute()
	}
	return defaultDueHour, 0
}

// MondayIndex converts a time.Weekday to the 0=Monday .. 6=Sunday indexing
// used by recurrence data and digest schedules.
func MondayIndex(w time.Weekday) int {
	return (int(w) + 6) % 7
}

func weekdayFromIndex(n int) time.Weekday {
	return time.Weekday((n + 1) % 7)
}

func parseDate(s string, loc *time.Location) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, false
		}
		return i, true
	}
	return 0, false
}
