package period

import (
	"testing"
	"time"
)

func day(s string) time.Time {
	t, ok := Parse(s)
	if !ok {
		panic("bad date " + s)
	}
	return t
}

func TestStartAndNextRenewal(t *testing.T) {
	tests := []struct {
		name     string
		startDay int
		today    string
		start    string
		renewal  string
	}{
		{"first of month mid-month", 1, "2024-03-15", "2024-03-01", "2024-04-01"},
		{"exact boundary", 15, "2024-03-15", "2024-03-15", "2024-04-15"},
		{"day before boundary", 15, "2024-03-14", "2024-02-15", "2024-03-15"},
		{"december rolls year", 10, "2024-12-20", "2024-12-10", "2025-01-10"},
		{"january looks back a year", 10, "2025-01-05", "2024-12-10", "2025-01-10"},
		{"day 31 clamps in february", 31, "2024-02-10", "2024-01-31", "2024-02-29"},
		{"day 31 on leap day", 31, "2024-02-29", "2024-02-29", "2024-03-31"},
		{"day 31 in 30-day month last day", 31, "2024-04-30", "2024-04-30", "2024-05-31"},
		{"day 30 from march 1 non-leap", 30, "2023-03-01", "2023-02-28", "2023-03-30"},
		{"day 28 boundary", 28, "2023-02-28", "2023-02-28", "2023-03-28"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			today := day(tt.today)
			if got := Format(Start(tt.startDay, today)); got != tt.start {
				t.Errorf("Start(%d, %s) = %s, want %s", tt.startDay, tt.today, got, tt.start)
			}
			if got := Format(NextRenewal(tt.startDay, today)); got != tt.renewal {
				t.Errorf("NextRenewal(%d, %s) = %s, want %s", tt.startDay, tt.today, got, tt.renewal)
			}
		})
	}
}

func TestStartBeforeTodayBeforeRenewal(t *testing.T) {
	from := day("2023-01-01")
	to := day("2025-01-01")
	for startDay := 1; startDay <= 31; startDay++ {
		for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
			start := Start(startDay, d)
			renewal := NextRenewal(startDay, d)
			if start.After(d) {
				t.Fatalf("Start(%d, %s) = %s is after today", startDay, Format(d), Format(start))
			}
			if !d.Before(renewal) {
				t.Fatalf("NextRenewal(%d, %s) = %s is not after today", startDay, Format(d), Format(renewal))
			}
			if again := NextRenewal(startDay, d); !again.Equal(renewal) {
				t.Fatalf("NextRenewal(%d, %s) not stable: %s then %s", startDay, Format(d), Format(renewal), Format(again))
			}
			if got := NextRenewal(startDay, start); !got.Equal(renewal) {
				t.Fatalf("NextRenewal(%d, periodStart %s) = %s, want %s", startDay, Format(start), Format(got), Format(renewal))
			}
		}
	}
}

func TestToday(t *testing.T) {
	warsaw, err := time.LoadLocation("Europe/Warsaw")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	now := time.Date(2024, 3, 14, 23, 30, 0, 0, time.UTC)
	if got := Format(Today(now, warsaw)); got != "2024-03-15" {
		t.Errorf("Today in Warsaw = %s, want 2024-03-15", got)
	}
	if got := Format(Today(now, nil)); got != "2024-03-14" {
		t.Errorf("Today in UTC = %s, want 2024-03-14", got)
	}
}

func TestDaysBetween(t *testing.T) {
	if got := DaysBetween(day("2024-03-15"), day("2024-04-01")); got != 17 {
		t.Errorf("DaysBetween = %d, want 17", got)
	}
	if got := DaysBetween(day("2024-04-01"), day("2024-03-31")); got != -1 {
		t.Errorf("DaysBetween backwards = %d, want -1", got)
	}
}

func TestParse(t *testing.T) {
	if _, ok := Parse(""); ok {
		t.Error("Parse(\"\") should fail")
	}
	if _, ok := Parse("15/03/2024"); ok {
		t.Error("Parse of wrong layout should fail")
	}
	if got := SinceArg(day("2024-03-01")); got != "20240301" {
		t.Errorf("SinceArg = %s, want 20240301", got)
	}
}
