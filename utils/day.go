package utils

import "time"

// DayOf normalizes a wall-clock time to its UTC calendar day (midnight UTC).
// Every streak and daily-aggregate computation buckets time through here so
// that "same day" means the same thing regardless of the caller's zone.
func DayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayGap returns the number of calendar days from prev to cur. Both inputs
// must already be day-normalized. 0 = same day, 1 = consecutive days.
func DayGap(prev, cur time.Time) int {
	return int(cur.Sub(prev) / (24 * time.Hour))
}

// NextDay returns the day-normalized day after d.
func NextDay(d time.Time) time.Time {
	return d.AddDate(0, 0, 1)
}
