package poll

import (
	"appointment-notifier/pkg/notifier"
	"time"
)

const (
	// DefaultWindowDays is the general-purpose notification horizon.
	DefaultWindowDays = 60
	// WatchWindowDays is the horizon the watcher passes explicitly.
	WatchWindowDays = 30
)

// ShouldNotify reports whether newDate is a new date that falls within
// [today, today+windowDays], with today taken from now's calendar date.
// A date equal to lastDate never notifies.
func ShouldNotify(newDate, lastDate notifier.AppointmentDate, windowDays int, now time.Time) bool {
	if newDate.IsZero() || newDate == lastDate {
		return false
	}
	return InWindow(newDate, windowDays, now)
}

// InWindow reports whether date falls within [today, today+windowDays] inclusive.
func InWindow(date notifier.AppointmentDate, windowDays int, now time.Time) bool {
	d, err := date.Time(now.Location())
	if err != nil {
		return false
	}
	y, m, day := now.Date()
	today := time.Date(y, m, day, 0, 0, 0, 0, now.Location())
	last := today.AddDate(0, 0, windowDays)
	return !d.Before(today) && !d.After(last)
}
