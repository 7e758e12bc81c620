package domain

import (
	"fmt"
	"time"
)

type FrequencyKind string

const (
	FrequencyOnce    FrequencyKind = "once"
	FrequencyDaily   FrequencyKind = "daily"
	FrequencyWeekly  FrequencyKind = "weekly"
	FrequencyMonthly FrequencyKind = "monthly"
	FrequencyYearly  FrequencyKind = "yearly"
)

// Frequency is a tagged variant: Kind decides which of the remaining
// fields are meaningful. Year/Month/Day for once, Month/Day for yearly,
// Day for monthly, Weekday for weekly.
type Frequency struct {
	Kind    FrequencyKind
	Year    int
	Month   time.Month
	Day     int
	Weekday time.Weekday
}

func (f Frequency) Recurring() bool {
	return f.Kind != FrequencyOnce
}

func (f Frequency) Validate() error {
	switch f.Kind {
	case FrequencyOnce:
		if f.Year < 1 || f.Month < time.January || f.Month > time.December || f.Day < 1 || f.Day > 31 {
			return fmt.Errorf("invalid once date %04d/%02d/%02d", f.Year, f.Month, f.Day)
		}
	case FrequencyDaily:
	case FrequencyWeekly:
		if f.Weekday < time.Sunday || f.Weekday > time.Saturday {
			return fmt.Errorf("invalid weekday %d", f.Weekday)
		}
	case FrequencyMonthly:
		if f.Day < 1 || f.Day > 31 {
			return fmt.Errorf("invalid day of month %d", f.Day)
		}
	case FrequencyYearly:
		if f.Month < time.January || f.Month > time.December || f.Day < 1 || f.Day > 31 {
			return fmt.Errorf("invalid yearly date %02d/%02d", f.Month, f.Day)
		}
	default:
		return fmt.Errorf("unknown frequency kind %q", f.Kind)
	}
	return nil
}

// Describe renders the frequency together with a wall time for user-facing
// confirmations and listings, e.g. "every Wednesday at 09:00".
func (f Frequency) Describe(hour, minute int) string {
	clock := FormatClock(hour, minute)
	switch f.Kind {
	case FrequencyOnce:
		d := time.Date(f.Year, f.Month, f.Day, 0, 0, 0, 0, time.UTC)
		return fmt.Sprintf("on %s at %s", d.Format("Mon, 02 Jan 2006"), clock)
	case FrequencyDaily:
		return fmt.Sprintf("every day at %s", clock)
	case FrequencyWeekly:
		return fmt.Sprintf("every %s at %s", f.Weekday, clock)
	case FrequencyMonthly:
		return fmt.Sprintf("every %s of the month at %s", Ordinal(f.Day), clock)
	case FrequencyYearly:
		d := time.Date(2000, f.Month, f.Day, 0, 0, 0, 0, time.UTC)
		return fmt.Sprintf("every year on %s at %s", d.Format("02 Jan"), clock)
	}
	return clock
}

// Reminder is a finalized, scheduled reminder. Hour and Minute are the
// wall time in Timezone's local frame; they are never pre-converted to
// UTC so that recurrence stays correct across DST transitions.
type Reminder struct {
	ID        string
	ChatID    int64
	UserID    int64
	Text      string
	FileID    string
	Timezone  string
	Hour      int
	Minute    int
	Frequency Frequency
	TriggerID string
	CreatedAt time.Time
}

func (r *Reminder) Location() (*time.Location, error) {
	return time.LoadLocation(r.Timezone)
}

// FormatClock renders a wall time as HH:MM.
func FormatClock(hour, minute int) string {
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

// Ordinal formats a day of month: 1 -> 1st, 2 -> 2nd, 11 -> 11th.
func Ordinal(day int) string {
	switch {
	case day%100 >= 11 && day%100 <= 13:
		return fmt.Sprintf("%dth", day)
	case day%10 == 1:
		return fmt.Sprintf("%dst", day)
	case day%10 == 2:
		return fmt.Sprintf("%dnd", day)
	case day%10 == 3:
		return fmt.Sprintf("%drd", day)
	default:
		return fmt.Sprintf("%dth", day)
	}
}
