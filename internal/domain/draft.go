package domain

import "time"

// BuildStep is the step a draft is waiting on. It is never stored: the
// step is derived from which fields the draft has accumulated so far, so
// a repeated or out-of-order message is always re-interpreted as input
// for the same waiting step.
type BuildStep int

const (
	StepContent BuildStep = iota
	StepTime
	StepFrequency
	StepWeekday
	StepDayOfMonth
	StepDate
	StepComplete
)

// Draft is a reminder under construction, at most one per (chat, user).
// Fields fill in monotonically: content, then time, then frequency kind,
// then the frequency detail.
type Draft struct {
	ChatID    int64
	UserID    int64
	Text      string
	FileID    string
	Time      string // "HH:MM" in Timezone, empty until set
	Timezone  string // captured when the construction starts
	FreqKind  FrequencyKind
	Weekday   int // 0-6 (Sunday=0), -1 until set
	Day       int // 0 until set
	Month     int // 0 until set
	Year      int // 0 until set
	CreatedAt time.Time
}

func (d *Draft) HasContent() bool {
	return d.Text != "" || d.FileID != ""
}

func (d *Draft) Step() BuildStep {
	switch {
	case !d.HasContent():
		return StepContent
	case d.Time == "":
		return StepTime
	case d.FreqKind == "":
		return StepFrequency
	case d.FreqKind == FrequencyWeekly && d.Weekday < 0:
		return StepWeekday
	case d.FreqKind == FrequencyMonthly && d.Day == 0:
		return StepDayOfMonth
	case (d.FreqKind == FrequencyOnce || d.FreqKind == FrequencyYearly) && d.Day == 0:
		return StepDate
	}
	return StepComplete
}

// Frequency assembles the total frequency descriptor. Only valid once
// Step() == StepComplete.
func (d *Draft) Frequency() Frequency {
	return Frequency{
		Kind:    d.FreqKind,
		Year:    d.Year,
		Month:   time.Month(d.Month),
		Day:     d.Day,
		Weekday: time.Weekday(d.Weekday),
	}
}

// ParseWeekday maps a weekday name from the reply keyboard to its
// time.Weekday value.
func ParseWeekday(name string) (time.Weekday, bool) {
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if wd.String() == name {
			return wd, true
		}
	}
	return 0, false
}
