// Package timeutil provides timezone utilities for Tashkent timezone (UTC+5).
// Billing, attendance and freeze windows are all anchored to the local
// calendar day of the education center, so date math must happen in one zone.
// No external dependencies - uses only standard library.
package timeutil

import (
	"time"
)

// TashkentTZ is the Tashkent timezone (UTC+5, no DST).
// Uzbekistan abolished DST in 1992, so this is constant year-round.
var TashkentTZ = time.FixedZone("Asia/Tashkent", 5*60*60)

// Now returns the current time in Tashkent timezone.
func Now() time.Time {
	return time.Now().In(TashkentTZ)
}

// ToTashkent converts a time to Tashkent timezone.
func ToTashkent(t time.Time) time.Time {
	return t.In(TashkentTZ)
}

// ToUTC converts a time to UTC.
func ToUTC(t time.Time) time.Time {
	return t.UTC()
}

// Date creates a time in Tashkent timezone with the given date.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, TashkentTZ)
}

// StartOfDay returns the start of the day (00:00:00) in Tashkent timezone.
func StartOfDay(t time.Time) time.Time {
	local := ToTashkent(t)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, TashkentTZ)
}

// EndOfDay returns the end of the day (23:59:59.999999999) in Tashkent timezone.
func EndOfDay(t time.Time) time.Time {
	local := ToTashkent(t)
	return time.Date(local.Year(), local.Month(), local.Day(), 23, 59, 59, 999999999, TashkentTZ)
}

// StartOfMonth returns the start of the month in Tashkent timezone.
func StartOfMonth(t time.Time) time.Time {
	local := ToTashkent(t)
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, TashkentTZ)
}

// EndOfMonth returns the end of the month in Tashkent timezone.
func EndOfMonth(t time.Time) time.Time {
	start := StartOfMonth(t)
	return EndOfDay(start.AddDate(0, 1, -1))
}

// SameDay reports whether two times fall on the same local calendar day.
func SameDay(a, b time.Time) bool {
	la, lb := ToTashkent(a), ToTashkent(b)
	return la.Year() == lb.Year() && la.Month() == lb.Month() && la.Day() == lb.Day()
}

// DaysSince calculates the number of whole calendar days since the given time.
func DaysSince(t time.Time) int {
	now := StartOfDay(Now())
	then := StartOfDay(t)
	return int(now.Sub(then).Hours() / 24)
}

// DaysBetween calculates the number of whole calendar days from a to b.
// Negative when b is before a.
func DaysBetween(a, b time.Time) int {
	sa := StartOfDay(a)
	sb := StartOfDay(b)
	return int(sb.Sub(sa).Hours() / 24)
}

// FormatDate formats a time as a local calendar date (YYYY-MM-DD).
func FormatDate(t time.Time) string {
	return ToTashkent(t).Format("2006-01-02")
}
