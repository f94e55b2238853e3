package recurrence

import (
	"log/slog"
	"testing"
	"time"
)

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestParsePattern(t *testing.T) {
	tests := []struct {
		input string
		want  Pattern
	}{
		{"daily", PatternDaily},
		{"weekly", PatternWeekly},
		{"biweekly", PatternBiweekly},
		{"monthly", PatternMonthly},
		{"custom", PatternCustom},
		{"none", PatternNone},
		{"", PatternNone},
		{"yearly", PatternNone},
	}

	for _, tt := range tests {
		if got := ParsePattern(tt.input); got != tt.want {
			t.Errorf("ParsePattern(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestParseScheduleDaily(t *testing.T) {
	data := `{"start_date":"2026-03-01","due_time":"08:30","rule":{"interval":2}}`
	s := ParseSchedule("daily", data, nil, "", time.UTC, discard())

	if s.Pattern != PatternDaily {
		t.Fatalf("Pattern = %q, want daily", s.Pattern)
	}
	rule, ok := s.Rule.(DailyRule)
	if !ok {
		t.Fatalf("Rule is %T, want DailyRule", s.Rule)
	}
	if rule.Interval != 2 {
		t.Errorf("Interval = %d, want 2", rule.Interval)
	}
	if s.DueHour != 8 || s.DueMinute != 30 {
		t.Errorf("due time = %02d:%02d, want 08:30", s.DueHour, s.DueMinute)
	}
	wantStart := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if !s.Start.Equal(wantStart) {
		t.Errorf("Start = %v, want %v", s.Start, wantStart)
	}
}

func TestParseScheduleWeekdayIndexing(t *testing.T) {
	// Stored indices use 0=Monday.
	data := `{"start_date":"2026-03-02","rule":{"days_of_week":[0,3]}}`
	s := ParseSchedule("weekly", data, nil, "", time.UTC, discard())

	rule, ok := s.Rule.(WeeklyRule)
	if !ok {
		t.Fatalf("Rule is %T, want WeeklyRule", s.Rule)
	}
	if !rule.Days[time.Monday] || !rule.Days[time.Thursday] {
		t.Errorf("Days = %v, want Monday and Thursday", rule.Days)
	}
	if len(rule.Days) != 2 {
		t.Errorf("len(Days) = %d, want 2", len(rule.Days))
	}
}

func TestParseScheduleBiweeklyDefaultInterval(t *testing.T) {
	s := ParseSchedule("biweekly", `{"start_date":"2026-03-02"}`, nil, "", time.UTC, discard())
	rule, ok := s.Rule.(WeeklyRule)
	if !ok {
		t.Fatalf("Rule is %T, want WeeklyRule", s.Rule)
	}
	if rule.Interval != 2 {
		t.Errorf("Interval = %d, want 2", rule.Interval)
	}
}

func TestParseScheduleTimezonePrecedence(t *testing.T) {
	tests := []struct {
		name        string
		data        string
		householdTZ string
		want        string
	}{
		{"override wins", `{"timezone":"America/New_York"}`, "Europe/Berlin", "America/New_York"},
		{"household fallback", `{}`, "Europe/Berlin", "Europe/Berlin"},
		{"default fallback", `{}`, "", "UTC"},
		{"invalid override falls through", `{"timezone":"Mars/Olympus"}`, "Europe/Berlin", "Europe/Berlin"},
		{"invalid household falls to default", `{"timezone":"Mars/Olympus"}`, "Pluto/Side", "UTC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ParseSchedule("daily", tt.data, nil, tt.householdTZ, time.UTC, discard())
			if s.Loc.String() != tt.want {
				t.Errorf("Loc = %q, want %q", s.Loc, tt.want)
			}
		})
	}
}

func TestParseScheduleMalformedJSON(t *testing.T) {
	due := time.Date(2026, 3, 5, 9, 15, 0, 0, time.UTC)
	s := ParseSchedule("daily", `{not json`, &due, "", time.UTC, discard())

	if s.Pattern != PatternDaily {
		t.Fatalf("Pattern = %q, want daily", s.Pattern)
	}
	// Anchor and time of day come from the legacy due date.
	wantStart := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	if !s.Start.Equal(wantStart) {
		t.Errorf("Start = %v, want %v", s.Start, wantStart)
	}
	if s.DueHour != 9 || s.DueMinute != 15 {
		t.Errorf("due time = %02d:%02d, want 09:15", s.DueHour, s.DueMinute)
	}
}

func TestParseScheduleDefaultDueTime(t *testing.T) {
	s := ParseSchedule("daily", `{"start_date":"2026-03-01"}`, nil, "", time.UTC, discard())
	if s.DueHour != 17 || s.DueMinute != 0 {
		t.Errorf("due time = %02d:%02d, want 17:00", s.DueHour, s.DueMinute)
	}
}

func TestParseScheduleFilters(t *testing.T) {
	data := `{
		"start_date": "2026-01-01",
		"max_occurrences": 10,
		"filters": {
			"allowed_months": [6, 7, 8],
			"exclude_dates": ["2026-07-04", "not-a-date"],
			"include_dates": ["2026-12-25"]
		}
	}`
	s := ParseSchedule("daily", data, nil, "", time.UTC, discard())

	if s.MaxOccurrences != 10 {
		t.Errorf("MaxOccurrences = %d, want 10", s.MaxOccurrences)
	}
	if len(s.AllowedMonths) != 3 || !s.AllowedMonths[time.July] {
		t.Errorf("AllowedMonths = %v, want June-August", s.AllowedMonths)
	}
	if !s.Exclude["2026-07-04"] {
		t.Errorf("Exclude missing 2026-07-04: %v", s.Exclude)
	}
	if len(s.Exclude) != 1 {
		t.Errorf("len(Exclude) = %d, want 1 (invalid date skipped)", len(s.Exclude))
	}
	if len(s.Include) != 1 || s.Include[0].Format("2006-01-02") != "2026-12-25" {
		t.Errorf("Include = %v, want [2026-12-25]", s.Include)
	}
}

func TestParseScheduleMonthlyNthWeekday(t *testing.T) {
	data := `{"start_date":"2026-01-01","rule":{"nth":-1,"weekday":4}}`
	s := ParseSchedule("monthly", data, nil, "", time.UTC, discard())

	rule, ok := s.Rule.(MonthlyWeekdayRule)
	if !ok {
		t.Fatalf("Rule is %T, want MonthlyWeekdayRule", s.Rule)
	}
	if rule.Nth != -1 || rule.Weekday != time.Friday {
		t.Errorf("got nth=%d weekday=%v, want -1 Friday", rule.Nth, rule.Weekday)
	}
}

func TestParseScheduleNonePattern(t *testing.T) {
	s := ParseSchedule("none", `{"start_date":"2026-01-01"}`, nil, "", time.UTC, discard())
	if s.Rule != nil {
		t.Errorf("Rule = %v, want nil for none pattern", s.Rule)
	}
	if got := s.DueDates(time.Now(), time.Now().AddDate(0, 1, 0)); got != nil {
		t.Errorf("DueDates = %v, want nil", got)
	}
}

func TestMondayIndex(t *testing.T) {
	tests := []struct {
		w    time.Weekday
		want int
	}{
		{time.Monday, 0},
		{time.Thursday, 3},
		{time.Sunday, 6},
	}
	for _, tt := range tests {
		if got := MondayIndex(tt.w); got != tt.want {
			t.Errorf("MondayIndex(%v) = %d, want %d", tt.w, got, tt.want)
		}
		if back := weekdayFromIndex(tt.want); back != tt.w {
			t.Errorf("weekdayFromIndex(%d) = %v, want %v", tt.want, back, tt.w)
		}
	}
}
