// Package utcday provides UTC calendar-day arithmetic for daily quota windows.
//
// All quota bookkeeping is anchored to the UTC calendar day so that server
// timezone configuration never affects billing correctness. Counters created
// at any point during a UTC day expire at the following UTC midnight.
package utcday

import (
	"fmt"
	"time"
)

// Layout is the date format used for day-scoped quota keys.
const Layout = "2006-01-02"

// Today returns the current UTC calendar date formatted as YYYY-MM-DD.
// The result is stable for the entire UTC day regardless of the process
// timezone.
func Today() string {
	return todayAt(time.Now())
}

// NextMidnight returns the instant at 00:00:00 UTC on the calendar day
// following the current UTC day. Month and year boundaries roll over
// correctly (Dec 31 yields Jan 1 of the next year).
func NextMidnight() time.Time {
	return nextMidnightAt(time.Now())
}

// SecondsUntilMidnight returns the number of seconds until the next UTC
// midnight, rounded up. The result is always in [1, 86400]: exactly 86400
// at midnight itself, and 1 just before midnight. Fractional seconds round
// up so a zero TTL is never issued.
func SecondsUntilMidnight() int {
	return secondsUntilMidnightAt(time.Now())
}

// Parse converts a YYYY-MM-DD date string to the UTC midnight instant that
// begins that day. It inverts Today: Parse(Today()) is the start of the
// current UTC day.
func Parse(s string) (time.Time, error) {
	t, err := time.ParseInLocation(Layout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

func todayAt(now time.Time) string {
	return now.UTC().Format(Layout)
}

func nextMidnightAt(now time.Time) time.Time {
	u := now.UTC()
	return time.Date(u.Year(), u.Month(), u.Day()+1, 0, 0, 0, 0, time.UTC)
}

func secondsUntilMidnightAt(now time.Time) int {
	d := nextMidnightAt(now).Sub(now)
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}
