package service

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/tazhate/remindbot/internal/domain"
	"github.com/tazhate/remindbot/internal/recurrence"
	"github.com/tazhate/remindbot/internal/scheduler"
	"github.com/tazhate/remindbot/internal/storage"
)

// ErrPastTime means a once-off reminder resolved to an instant that has
// already passed. Only once-offs can hit this: recurring kinds always
// have a future occurrence.
var ErrPastTime = errors.New("reminder time is in the past")

// A once-off that cannot be delivered is retried every tick; after this
// long it is dropped rather than spamming a dead chat forever.
const giveUpAfter = 24 * time.Hour

// ReminderSender delivers a reminder to its chat. Implemented by the bot
// layer; kept as an interface so the service stays transport-free.
type ReminderSender interface {
	SendReminder(r *domain.Reminder) error
}

type ReminderService struct {
	storage  *storage.Storage
	triggers *scheduler.Store
	settings *SettingsService
	sender   ReminderSender
	calendar *CalendarService
	locks    *keyedMutex
	now      func() time.Time
}

func NewReminderService(st *storage.Storage, triggers *scheduler.Store, settings *SettingsService) *ReminderService {
	return &ReminderService{
		storage:  st,
		triggers: triggers,
		settings: settings,
		locks:    newKeyedMutex(),
		now:      time.Now,
	}
}

func (s *ReminderService) SetSender(sender ReminderSender) {
	s.sender = sender
}

func (s *ReminderService) SetCalendar(c *CalendarService) {
	s.calendar = c
}

// Create turns a completed draft into a scheduled reminder. The trigger
// is persisted first so that a reminder row never points at a trigger
// that does not exist; if the reminder write fails the trigger is
// cancelled again.
func (s *ReminderService) Create(d *domain.Draft) (*domain.Reminder, error) {
	hour, minute, err := parseClock(d.Time)
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(d.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", d.Timezone, err)
	}

	freq := d.Frequency()
	due, err := recurrence.NextDue(freq, hour, minute, loc, s.now())
	if err != nil {
		return nil, err
	}
	if !due.After(s.now()) {
		return nil, ErrPastTime
	}

	r := &domain.Reminder{
		ID:        uuid.NewString(),
		ChatID:    d.ChatID,
		UserID:    d.UserID,
		Text:      d.Text,
		FileID:    d.FileID,
		Timezone:  d.Timezone,
		Hour:      hour,
		Minute:    minute,
		Frequency: freq,
		TriggerID: uuid.NewString(),
	}

	trigger := &domain.Trigger{ID: r.TriggerID, DueAt: due, ReminderID: r.ID, Recurring: freq.Recurring()}
	if err := s.triggers.Schedule(trigger); err != nil {
		return nil, fmt.Errorf("schedule trigger: %w", err)
	}

	if err := s.storage.CreateReminder(r); err != nil {
		if cerr := s.triggers.Cancel(r.TriggerID); cerr != nil {
			log.Printf("Error cancelling trigger %s after failed create: %v", r.TriggerID, cerr)
		}
		return nil, fmt.Errorf("create reminder: %w", err)
	}

	if s.calendar != nil {
		s.calendar.PublishReminder(r)
	}
	return r, nil
}

// Snooze schedules a fresh once-off with the same content a duration
// from now. Backs the "remind me again in ..." buttons on a delivered
// reminder.
func (s *ReminderService) Snooze(chatID, userID int64, text, fileID string, d time.Duration) (*domain.Reminder, error) {
	tz := s.settings.Timezone(chatID)
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}

	local := s.now().Add(d).In(loc)
	return s.Create(&domain.Draft{
		ChatID:   chatID,
		UserID:   userID,
		Text:     text,
		FileID:   fileID,
		Time:     local.Format("15:04"),
		Timezone: tz,
		FreqKind: domain.FrequencyOnce,
		Weekday:  -1,
		Day:      local.Day(),
		Month:    int(local.Month()),
		Year:     local.Year(),
	})
}

func (s *ReminderService) Get(id string) (*domain.Reminder, error) {
	return s.storage.GetReminder(id)
}

func (s *ReminderService) List(chatID int64) ([]*domain.Reminder, error) {
	return s.storage.ListReminders(chatID)
}

// Delete removes a reminder and cancels its trigger. The per-reminder
// lock keeps it from racing a concurrent fire; deleting a reminder that
// is gone already is a no-op.
func (s *ReminderService) Delete(chatID int64, id string) error {
	unlock := s.locks.Lock("reminder:" + id)
	defer unlock()

	r, err := s.storage.GetReminder(id)
	if err != nil {
		return fmt.Errorf("get reminder: %w", err)
	}
	if r == nil {
		return nil
	}
	if chatID != 0 && r.ChatID != chatID {
		return fmt.Errorf("reminder %s does not belong to chat %d", id, chatID)
	}

	// Reminder row first: an orphaned trigger self-heals on fire, an
	// orphaned reminder would never fire at all.
	if err := s.storage.DeleteReminder(id); err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	if err := s.triggers.Cancel(r.TriggerID); err != nil {
		return fmt.Errorf("cancel trigger: %w", err)
	}

	if s.calendar != nil {
		s.calendar.RemoveReminder(id)
	}
	return nil
}

// Deliver is the trigger store's fire callback. Delivery is
// at-least-once, so it starts by re-checking that the reminder still
// exists: a trigger whose reminder is gone cancels itself.
func (s *ReminderService) Deliver(t *domain.Trigger) error {
	unlock := s.locks.Lock("reminder:" + t.ReminderID)
	defer unlock()

	r, err := s.storage.GetReminder(t.ReminderID)
	if err != nil {
		return fmt.Errorf("get reminder: %w", err)
	}
	if r == nil {
		return s.triggers.Cancel(t.ID)
	}

	var sendErr error
	if s.sender == nil {
		sendErr = fmt.Errorf("no sender configured")
	} else {
		sendErr = s.sender.SendReminder(r)
	}

	if r.Frequency.Recurring() {
		// A failed send must not stall the series: log and advance.
		if sendErr != nil {
			log.Printf("Error delivering reminder %s: %v", r.ID, sendErr)
		}
		loc, err := r.Location()
		if err != nil {
			return fmt.Errorf("load timezone %q: %w", r.Timezone, err)
		}
		due, err := recurrence.NextDue(r.Frequency, r.Hour, r.Minute, loc, s.now())
		if err != nil {
			return fmt.Errorf("compute next due: %w", err)
		}
		return s.triggers.Schedule(&domain.Trigger{ID: t.ID, DueAt: due, ReminderID: r.ID, Recurring: true})
	}

	if sendErr != nil {
		if s.now().Sub(t.DueAt) > giveUpAfter {
			log.Printf("Giving up on reminder %s after %s: %v", r.ID, giveUpAfter, sendErr)
			return s.removeDelivered(r)
		}
		return sendErr
	}
	return s.removeDelivered(r)
}

// removeDelivered drops a fired once-off. The trigger row itself is
// deleted by the store once the callback returns nil.
func (s *ReminderService) removeDelivered(r *domain.Reminder) error {
	if err := s.storage.DeleteReminder(r.ID); err != nil {
		return fmt.Errorf("delete delivered reminder: %w", err)
	}
	if s.calendar != nil {
		s.calendar.RemoveReminder(r.ID)
	}
	return nil
}
