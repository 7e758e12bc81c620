package service

import (
	"errors"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"time"

	"github.com/tazhate/remindbot/internal/domain"
	"github.com/tazhate/remindbot/internal/storage"
)

var clockRe = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)

func parseClock(s string) (hour, minute int, err error) {
	m := clockRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, fmt.Errorf("invalid time %q", s)
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	return hour, minute, nil
}

// Reply keyboard labels. The bot layer renders them; the builder matches
// them back against inbound text.
var (
	FrequencyChoices = []string{"Once", "Daily", "Weekly", "Monthly", "Yearly"}
	WeekdayChoices   = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}
)

var frequencyByLabel = map[string]domain.FrequencyKind{
	"Once":    domain.FrequencyOnce,
	"Daily":   domain.FrequencyDaily,
	"Weekly":  domain.FrequencyWeekly,
	"Monthly": domain.FrequencyMonthly,
	"Yearly":  domain.FrequencyYearly,
}

// KeyboardKind tells the bot layer which markup to attach to a prompt.
type KeyboardKind int

const (
	KeyboardNone KeyboardKind = iota
	KeyboardRemove
	KeyboardFrequency
	KeyboardWeekday
	KeyboardCalendar
)

// StepInput is one inbound message fed into the state machine.
type StepInput struct {
	Text   string
	FileID string
}

// StepResult is what the chat should see after a step: a prompt, the
// keyboard to show with it, and the finished reminder once Done.
type StepResult struct {
	Prompt   string
	Keyboard KeyboardKind
	Done     bool
	Reminder *domain.Reminder
}

const (
	promptContent    = "What do you want to be reminded about? Send text, or a photo with a caption."
	promptTime       = "When? Send the time in <b>HH:MM</b> format (24-hour)."
	promptBadTime    = "That doesn't look like a time. Send it in <b>HH:MM</b> format, e.g. <code>09:30</code>."
	promptFrequency  = "How often should I remind you?"
	promptWeekday    = "Which day of the week?"
	promptDayOfMonth = "Which day of the month? Send a number from 1 to 31."
	promptBadDay     = "Send a number from 1 to 31."
	promptDate       = "Pick a date:"
	promptPastTime   = "That time has already passed. Send a new time in <b>HH:MM</b> format."
)

// BuilderService is the multi-turn construction flow. One draft per
// (chat, user); the step is derived from the draft's fields, so every
// inbound message is interpreted as input for whatever the draft is
// waiting on.
type BuilderService struct {
	storage   *storage.Storage
	reminders *ReminderService
	settings  *SettingsService
	locks     *keyedMutex
}

func NewBuilderService(st *storage.Storage, reminders *ReminderService, settings *SettingsService) *BuilderService {
	return &BuilderService{
		storage:   st,
		reminders: reminders,
		settings:  settings,
		locks:     newKeyedMutex(),
	}
}

func draftKey(chatID, userID int64) string {
	return fmt.Sprintf("draft:%d:%d", chatID, userID)
}

// Begin starts a fresh construction, discarding any draft the user
// already had in this chat.
func (s *BuilderService) Begin(chatID, userID int64) (*StepResult, error) {
	unlock := s.locks.Lock(draftKey(chatID, userID))
	defer unlock()

	d := &domain.Draft{
		ChatID:   chatID,
		UserID:   userID,
		Timezone: s.settings.Timezone(chatID),
		Weekday:  -1,
	}
	if err := s.storage.SaveDraft(d); err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}
	return &StepResult{Prompt: promptContent, Keyboard: KeyboardRemove}, nil
}

// Active reports whether the user has a draft in progress in this chat.
func (s *BuilderService) Active(chatID, userID int64) (bool, error) {
	d, err := s.storage.GetDraft(chatID, userID)
	if err != nil {
		return false, err
	}
	return d != nil, nil
}

// Cancel discards the draft. Returns false when there was nothing to
// cancel.
func (s *BuilderService) Cancel(chatID, userID int64) (bool, error) {
	unlock := s.locks.Lock(draftKey(chatID, userID))
	defer unlock()

	d, err := s.storage.GetDraft(chatID, userID)
	if err != nil {
		return false, err
	}
	if d == nil {
		return false, nil
	}
	if err := s.storage.DeleteDraft(chatID, userID); err != nil {
		return false, fmt.Errorf("delete draft: %w", err)
	}
	return true, nil
}

// Advance feeds one inbound message into the state machine. Returns
// (nil, nil) when the user has no draft. Invalid input re-prompts and
// leaves the draft untouched. The per-key lock makes concurrent
// messages for one draft apply one at a time, in arrival order.
func (s *BuilderService) Advance(chatID, userID int64, in StepInput) (*StepResult, error) {
	unlock := s.locks.Lock(draftKey(chatID, userID))
	defer unlock()

	d, err := s.storage.GetDraft(chatID, userID)
	if err != nil {
		return nil, fmt.Errorf("get draft: %w", err)
	}
	if d == nil {
		return nil, nil
	}

	switch d.Step() {
	case domain.StepContent:
		if in.Text == "" && in.FileID == "" {
			return &StepResult{Prompt: promptContent}, nil
		}
		d.Text = in.Text
		d.FileID = in.FileID
		return s.save(d, &StepResult{Prompt: promptTime})

	case domain.StepTime:
		if !clockRe.MatchString(in.Text) {
			return &StepResult{Prompt: promptBadTime}, nil
		}
		d.Time = in.Text
		// A draft re-entering the time step after a past-time rejection
		// already carries its frequency; the new time completes it.
		if d.Step() == domain.StepComplete {
			return s.finalize(d)
		}
		return s.save(d, &StepResult{Prompt: promptFrequency, Keyboard: KeyboardFrequency})

	case domain.StepFrequency:
		kind, ok := frequencyByLabel[in.Text]
		if !ok {
			return &StepResult{Prompt: promptFrequency, Keyboard: KeyboardFrequency}, nil
		}
		d.FreqKind = kind
		switch kind {
		case domain.FrequencyDaily:
			return s.finalize(d)
		case domain.FrequencyWeekly:
			return s.save(d, &StepResult{Prompt: promptWeekday, Keyboard: KeyboardWeekday})
		case domain.FrequencyMonthly:
			return s.save(d, &StepResult{Prompt: promptDayOfMonth, Keyboard: KeyboardRemove})
		default: // once, yearly
			return s.save(d, &StepResult{Prompt: promptDate, Keyboard: KeyboardCalendar})
		}

	case domain.StepWeekday:
		wd, ok := domain.ParseWeekday(in.Text)
		if !ok {
			return &StepResult{Prompt: promptWeekday, Keyboard: KeyboardWeekday}, nil
		}
		d.Weekday = int(wd)
		return s.finalize(d)

	case domain.StepDayOfMonth:
		day, err := strconv.Atoi(in.Text)
		if err != nil || day < 1 || day > 31 {
			return &StepResult{Prompt: promptBadDay}, nil
		}
		d.Day = day
		return s.finalize(d)

	case domain.StepDate:
		// Supplied by the inline calendar as YYYY-MM-DD.
		picked, err := time.Parse("2006-01-02", in.Text)
		if err != nil {
			return &StepResult{Prompt: promptDate, Keyboard: KeyboardCalendar}, nil
		}
		d.Year = picked.Year()
		d.Month = int(picked.Month())
		d.Day = picked.Day()
		return s.finalize(d)
	}

	// StepComplete with a still-stored draft should not happen; recover
	// by finalizing.
	return s.finalize(d)
}

func (s *BuilderService) save(d *domain.Draft, res *StepResult) (*StepResult, error) {
	if err := s.storage.SaveDraft(d); err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}
	return res, nil
}

// finalize hands the completed draft to the reminder service and drops
// it. A once-off that resolved to a past instant sends the user back to
// the time step with the rest of the draft intact.
func (s *BuilderService) finalize(d *domain.Draft) (*StepResult, error) {
	if err := s.storage.SaveDraft(d); err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}

	r, err := s.reminders.Create(d)
	if errors.Is(err, ErrPastTime) {
		d.Time = ""
		return s.save(d, &StepResult{Prompt: promptPastTime})
	}
	if err != nil {
		return nil, err
	}

	if err := s.storage.DeleteDraft(d.ChatID, d.UserID); err != nil {
		// The reminder is scheduled; a stuck draft only blocks the next
		// construction until /cancel.
		log.Printf("Error deleting finished draft %d/%d: %v", d.ChatID, d.UserID, err)
	}

	return &StepResult{
		Prompt:   fmt.Sprintf("✅ Got it. I will remind you %s.", r.Frequency.Describe(r.Hour, r.Minute)),
		Keyboard: KeyboardRemove,
		Done:     true,
		Reminder: r,
	}, nil
}
