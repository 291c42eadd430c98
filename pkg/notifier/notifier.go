// Package notifier contains the core domain types for the appointment notification service.
package notifier

import (
	"fmt"
	"time"
)

// Persisted key names shared by the watcher and the registry.
const (
	KeyLastAppointmentDate = "last_appointment_date"
	KeyActiveChatIDs       = "active_chat_ids"
)

// AppointmentDate is a normalized MM/DD/YY or MM/DD/YYYY date as published on the
// appointment page. The zero value means no date is listed.
type AppointmentDate string

// Layouts accepted for an AppointmentDate, keyed by string length.
var dateLayouts = map[int]string{
	len("01/02/2006"): "01/02/2006",
	len("01/02/06"):   "01/02/06",
}

// Time returns the calendar date at midnight in loc.
func (d AppointmentDate) Time(loc *time.Location) (time.Time, error) {
	layout, ok := dateLayouts[len(d)]
	if !ok {
		return time.Time{}, fmt.Errorf("unsupported date %q", string(d))
	}
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(layout, string(d), loc)
}

// IsZero reports whether no date is set.
func (d AppointmentDate) IsZero() bool {
	return d == ""
}

func (d AppointmentDate) String() string {
	return string(d)
}

// SubscriberID identifies a notification recipient (a Telegram chat id).
type SubscriberID string
