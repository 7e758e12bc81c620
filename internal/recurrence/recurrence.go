// Package recurrence computes trigger instants for reminder frequencies.
// All functions are pure: given a frequency, a wall time, a timezone and
// a reference instant they return the next due instant in UTC.
//
// The wall time is composed with a concrete local date before every UTC
// conversion, so the zone's offset as of that date applies. This is what
// keeps a 09:00 reminder at 09:00 local across DST transitions.
package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/tazhate/remindbot/internal/domain"
)

var ErrNoLocation = errors.New("recurrence: timezone location is required")

// NextDue returns the next instant, strictly after the given reference
// instant, at which a reminder with the given frequency and wall time
// fires. The result is in UTC.
//
// Once frequencies are the exception: they are composed from their fixed
// date without any adjustment, since a once-off is only ever computed at
// construction time.
func NextDue(freq domain.Frequency, hour, minute int, loc *time.Location, after time.Time) (time.Time, error) {
	if loc == nil {
		return time.Time{}, ErrNoLocation
	}
	if err := freq.Validate(); err != nil {
		return time.Time{}, fmt.Errorf("recurrence: %w", err)
	}

	switch freq.Kind {
	case domain.FrequencyOnce:
		return nextOnce(freq, hour, minute, loc)
	case domain.FrequencyDaily:
		return nextDaily(hour, minute, loc, after), nil
	case domain.FrequencyWeekly:
		return nextWeekly(freq.Weekday, hour, minute, loc, after), nil
	case domain.FrequencyMonthly:
		return nextMonthly(freq.Day, hour, minute, loc, after)
	case domain.FrequencyYearly:
		return nextYearly(freq.Month, freq.Day, hour, minute, loc, after)
	}
	return time.Time{}, fmt.Errorf("recurrence: unknown frequency kind %q", freq.Kind)
}

func nextOnce(freq domain.Frequency, hour, minute int, loc *time.Location) (time.Time, error) {
	if freq.Day > DaysInMonth(freq.Year, freq.Month) {
		return time.Time{}, fmt.Errorf("recurrence: %04d/%02d has no day %d", freq.Year, freq.Month, freq.Day)
	}
	t := time.Date(freq.Year, freq.Month, freq.Day, hour, minute, 0, 0, loc)
	return t.UTC(), nil
}

func nextDaily(hour, minute int, loc *time.Location, after time.Time) time.Time {
	local := after.In(loc)
	t := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !t.After(after) {
		// One local calendar day, not 24 raw hours: AddDate keeps the
		// wall clock and picks up the offset of the new date.
		t = t.AddDate(0, 0, 1)
	}
	return t.UTC()
}

func nextWeekly(weekday time.Weekday, hour, minute int, loc *time.Location, after time.Time) time.Time {
	local := after.In(loc)
	// Anchor mid-month so that shifting by a weekday delta can never
	// underflow or overflow the month.
	anchor := time.Date(local.Year(), local.Month(), 15, hour, minute, 0, 0, loc)
	t := anchor.AddDate(0, 0, int(weekday)-int(anchor.Weekday()))
	for t.After(after) {
		t = t.AddDate(0, 0, -7)
	}
	for !t.After(after) {
		t = t.AddDate(0, 0, 7)
	}
	return t.UTC()
}

// nextMonthly skips months shorter than the requested day entirely: a
// reminder for the 31st never fires in April. Clamping to the last day
// was rejected because it silently changes the date the user asked for.
func nextMonthly(day, hour, minute int, loc *time.Location, after time.Time) (time.Time, error) {
	local := after.In(loc)
	year, month := local.Year(), local.Month()
	for i := 0; i < 48; i++ {
		if day <= DaysInMonth(year, month) {
			t := time.Date(year, month, day, hour, minute, 0, 0, loc)
			if t.After(after) {
				return t.UTC(), nil
			}
		}
		month++
		if month > time.December {
			month = time.January
			year++
		}
	}
	return time.Time{}, fmt.Errorf("recurrence: no month admits day %d", day)
}

// nextYearly applies the same skip policy to years: Feb 29 only fires in
// leap years.
func nextYearly(month time.Month, day, hour, minute int, loc *time.Location, after time.Time) (time.Time, error) {
	year := after.In(loc).Year()
	for i := 0; i < 8; i++ {
		if day <= DaysInMonth(year, month) {
			t := time.Date(year, month, day, hour, minute, 0, 0, loc)
			if t.After(after) {
				return t.UTC(), nil
			}
		}
		year++
	}
	return time.Time{}, fmt.Errorf("recurrence: no year admits %02d/%02d", month, day)
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	t := time.Date(year, month, 32, 0, 0, 0, 0, time.UTC)
	return 32 - t.Day()
}
