package domain

import "time"

// Trigger is the trigger store's scheduling unit. It references a
// reminder by id only and carries no recurrence rules: when a recurring
// trigger fires, the delivery callback computes the next due instant and
// reschedules.
type Trigger struct {
	ID         string
	DueAt      time.Time // always UTC
	ReminderID string
	Recurring  bool
}
