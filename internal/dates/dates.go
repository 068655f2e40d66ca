// Package dates holds the pure calendar rules for pickup scheduling: which
// dates exist (weekends only), which are currently open for ordering (the
// rolling three-week window), and the weekly Friday 18:00 cutoff.
package dates

import "time"

// CutoffHour is the hour of day (local) at which the weekly ordering
// deadline falls on Friday.
const CutoffHour = 18

// DateOnly strips the time-of-day and location from t, keeping the wall
// calendar date. All day-granularity comparisons in this package go through
// it so that a UTC-stored date and a local "now" compare correctly.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// WeekendsOfYear returns every Saturday and Sunday of the given calendar
// year in chronological order, as UTC midnights.
func WeekendsOfYear(year int) []time.Time {
	var weekends []time.Time
	d := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	for d.Year() == year {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			weekends = append(weekends, d)
		}
		d = d.AddDate(0, 0, 1)
	}
	return weekends
}

// AdmissionWindow returns the interval of pickup dates currently open for
// new orders: today through the third Sunday from now. The end is computed
// by advancing two weeks and rolling forward to the next Sunday; if the
// advanced date already is a Sunday it is not rolled further.
func AdmissionWindow(now time.Time) (start, end time.Time) {
	start = DateOnly(now)
	e := now.AddDate(0, 0, 14)
	for e.Weekday() != time.Sunday {
		e = e.AddDate(0, 0, 1)
	}
	return start, DateOnly(e)
}

// WithinAdmissionWindow reports whether candidate falls inside the current
// admission window, inclusive of both endpoints.
func WithinAdmissionWindow(candidate, now time.Time) bool {
	start, end := AdmissionWindow(now)
	c := DateOnly(candidate)
	return !c.Before(start) && !c.After(end)
}

// CutoffFor returns the ordering deadline relevant at the given instant:
// 18:00 of the current day rolled forward day-by-day until it lands on a
// Friday. A Friday "now" yields 18:00 of that same Friday.
func CutoffFor(now time.Time) time.Time {
	deadline := time.Date(now.Year(), now.Month(), now.Day(), CutoffHour, 0, 0, 0, now.Location())
	for deadline.Weekday() != time.Friday {
		deadline = deadline.AddDate(0, 0, 1)
	}
	return deadline
}

// BeforeCutoff reports whether an order for the given pickup date may still
// be placed (or cancelled by the customer) at the given instant. Two
// independent conditions must hold: now must not be past the Friday 18:00
// deadline, and that deadline must not be past the pickup date itself. The
// second condition also rejects pickup dates already in the past.
func BeforeCutoff(now, pickup time.Time) bool {
	deadline := CutoffFor(now)
	if now.After(deadline) {
		return false
	}
	pickupStart := time.Date(pickup.Year(), pickup.Month(), pickup.Day(), 0, 0, 0, 0, now.Location())
	return !deadline.After(pickupStart)
}
