package models

import "time"

// DueWindowDays is how many days past today a deadline still counts as
// "expiring soon": today plus the next three days.
const DueWindowDays = 3

// StartOfDay returns local midnight of t's day.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DueWindow returns the half-open interval [start, end) of the expiring-soon
// window as seen at `now`. The window is computed from start-of-day, not raw
// timestamp subtraction, so every consumer (cache views, widget) reports the
// same set.
func DueWindow(now time.Time) (start, end time.Time) {
	start = StartOfDay(now)
	end = start.AddDate(0, 0, DueWindowDays+1)
	return start, end
}

// InDueWindow reports whether deadline falls inside the expiring-soon window
// as seen at `now`.
func InDueWindow(deadline, now time.Time) bool {
	start, end := DueWindow(now)
	return !deadline.Before(start) && deadline.Before(end)
}
