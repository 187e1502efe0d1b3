// Package period computes billing-cycle boundaries for a monthly cycle that
// renews on a fixed day of the month.
//
// All dates are civil dates represented as midnight UTC. A configured start
// day larger than a month's length clamps to that month's last day.
package period

import "time"

const dateLayout = "2006-01-02"

// Date truncates t to its calendar date in t's own location and returns that
// date as midnight UTC.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the calendar date of now as observed in loc.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return Date(now.In(loc))
}

// Start returns the first day of the billing period containing today.
func Start(startDay int, today time.Time) time.Time {
	y, m, d := today.Date()
	effective := clampDay(y, m, startDay)
	if d >= effective {
		return time.Date(y, m, effective, 0, 0, 0, 0, time.UTC)
	}
	py, pm := prevMonth(y, m)
	return time.Date(py, pm, clampDay(py, pm, startDay), 0, 0, 0, 0, time.UTC)
}

// NextRenewal returns the first day of the billing period following the one
// containing today.
func NextRenewal(startDay int, today time.Time) time.Time {
	y, m, d := today.Date()
	effective := clampDay(y, m, startDay)
	if d < effective {
		return time.Date(y, m, effective, 0, 0, 0, 0, time.UTC)
	}
	ny, nm := nextMonth(y, m)
	return time.Date(ny, nm, clampDay(ny, nm, startDay), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of calendar days from a to b. It is
// negative when b precedes a.
func DaysBetween(a, b time.Time) int {
	return int(Date(b).Sub(Date(a)).Hours() / 24)
}

// Format renders a period date as YYYY-MM-DD.
func Format(t time.Time) string {
	return t.Format(dateLayout)
}

// Parse reads a YYYY-MM-DD date. The empty string yields the zero time and
// ok=false.
func Parse(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// SinceArg renders a date in the compact YYYYMMDD form ccusage expects.
func SinceArg(t time.Time) string {
	return t.Format("20060102")
}

func daysIn(y int, m time.Month) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func clampDay(y int, m time.Month, day int) int {
	if day < 1 {
		return 1
	}
	if last := daysIn(y, m); day > last {
		return last
	}
	return day
}

func prevMonth(y int, m time.Month) (int, time.Month) {
	if m == time.January {
		return y - 1, time.December
	}
	return y, m - 1
}

func nextMonth(y int, m time.Month) (int, time.Month) {
	if m == time.December {
		return y + 1, time.January
	}
	return y, m + 1
}
