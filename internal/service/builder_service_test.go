package service

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tazhate/remindbot/internal/domain"
	"github.com/tazhate/remindbot/internal/scheduler"
	"github.com/tazhate/remindbot/internal/storage"
)

const (
	testChatID = int64(100)
	testUserID = int64(7)
)

type fakeSender struct {
	mu   sync.Mutex
	sent []*domain.Reminder
	err  error
}

func (f *fakeSender) SendReminder(r *domain.Reminder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, r)
	return nil
}

type testEnv struct {
	storage   *storage.Storage
	triggers  *scheduler.Store
	settings  *SettingsService
	reminders *ReminderService
	builder   *BuilderService
	sender    *fakeSender
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st, err := storage.New(filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	triggers := scheduler.New(st)
	settings := NewSettingsService(st, "Asia/Singapore")
	reminders := NewReminderService(st, triggers, settings)
	sender := &fakeSender{}
	reminders.SetSender(sender)
	triggers.SetFireFunc(reminders.Deliver)

	return &testEnv{
		storage:   st,
		triggers:  triggers,
		settings:  settings,
		reminders: reminders,
		builder:   NewBuilderService(st, reminders, settings),
		sender:    sender,
	}
}

func (e *testEnv) advance(t *testing.T, text string) *StepResult {
	t.Helper()
	res, err := e.builder.Advance(testChatID, testUserID, StepInput{Text: text})
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func TestBuilderWeeklyFlow(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.builder.Begin(testChatID, testUserID)
	require.NoError(t, err)
	require.Equal(t, promptContent, res.Prompt)

	res = env.advance(t, "water the plants")
	require.Equal(t, promptTime, res.Prompt)

	res = env.advance(t, "09:30")
	require.Equal(t, KeyboardFrequency, res.Keyboard)

	res = env.advance(t, "Weekly")
	require.Equal(t, KeyboardWeekday, res.Keyboard)

	res = env.advance(t, "Wednesday")
	require.True(t, res.Done)
	require.NotNil(t, res.Reminder)
	require.Equal(t, domain.FrequencyWeekly, res.Reminder.Frequency.Kind)
	require.Equal(t, time.Wednesday, res.Reminder.Frequency.Weekday)
	require.Equal(t, 9, res.Reminder.Hour)
	require.Equal(t, 30, res.Reminder.Minute)

	// Draft is gone, reminder and trigger are persisted.
	d, err := env.storage.GetDraft(testChatID, testUserID)
	require.NoError(t, err)
	require.Nil(t, d)

	r, err := env.storage.GetReminder(res.Reminder.ID)
	require.NoError(t, err)
	require.NotNil(t, r)

	tr, err := env.storage.GetTrigger(r.TriggerID)
	require.NoError(t, err)
	require.NotNil(t, tr)
	require.True(t, tr.Recurring)
	require.True(t, tr.DueAt.After(time.Now().UTC()))
}

func TestBuilderInvalidTimeLeavesDraftUntouched(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.builder.Begin(testChatID, testUserID)
	require.NoError(t, err)
	env.advance(t, "pay rent")

	for _, bad := range []string{"25:00", "9:5", "noon", "12:60", ""} {
		res := env.advance(t, bad)
		require.Equal(t, promptBadTime, res.Prompt)
	}

	d, err := env.storage.GetDraft(testChatID, testUserID)
	require.NoError(t, err)
	require.Equal(t, domain.StepTime, d.Step())
	require.Empty(t, d.Time)
}

func TestBuilderUnknownFrequencyReshowsKeyboard(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.builder.Begin(testChatID, testUserID)
	require.NoError(t, err)
	env.advance(t, "pay rent")
	env.advance(t, "08:00")

	res := env.advance(t, "fortnightly")
	require.Equal(t, promptFrequency, res.Prompt)
	require.Equal(t, KeyboardFrequency, res.Keyboard)
}

func TestBuilderMonthlyDayValidation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.builder.Begin(testChatID, testUserID)
	require.NoError(t, err)
	env.advance(t, "pay rent")
	env.advance(t, "08:00")
	env.advance(t, "Monthly")

	for _, bad := range []string{"0", "32", "first", "-3"} {
		res := env.advance(t, bad)
		require.Equal(t, promptBadDay, res.Prompt)
	}

	res := env.advance(t, "31")
	require.True(t, res.Done)
	require.Equal(t, 31, res.Reminder.Frequency.Day)
}

func TestBuilderOnceViaCalendarDate(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.builder.Begin(testChatID, testUserID)
	require.NoError(t, err)
	env.advance(t, "dentist")
	env.advance(t, "15:45")

	res := env.advance(t, "Once")
	require.Equal(t, KeyboardCalendar, res.Keyboard)

	date := time.Now().AddDate(0, 0, 7).Format("2006-01-02")
	res = env.advance(t, date)
	require.True(t, res.Done)
	require.Equal(t, domain.FrequencyOnce, res.Reminder.Frequency.Kind)
	require.False(t, res.Reminder.Frequency.Recurring())
}

func TestBuilderPastOnceTimeReturnsToTimeStep(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.builder.Begin(testChatID, testUserID)
	require.NoError(t, err)
	env.advance(t, "dentist")

	// A fixed clock well past 08:00 in the chat's zone.
	sg, err := time.LoadLocation("Asia/Singapore")
	require.NoError(t, err)
	now := time.Date(2025, time.June, 10, 20, 0, 0, 0, sg)
	env.reminders.now = func() time.Time { return now }

	env.advance(t, "08:00")
	env.advance(t, "Once")
	res := env.advance(t, "2025-06-10")
	require.Equal(t, promptPastTime, res.Prompt)

	// No partial reminder was created; the draft is back at the time
	// step with the rest intact.
	d, err := env.storage.GetDraft(testChatID, testUserID)
	require.NoError(t, err)
	require.Equal(t, domain.StepTime, d.Step())
	require.Equal(t, "dentist", d.Text)

	list, err := env.storage.ListReminders(testChatID)
	require.NoError(t, err)
	require.Empty(t, list)

	// The re-entered time completes the draft on the spot: no second
	// trip through the frequency keyboard.
	res = env.advance(t, "22:00")
	require.True(t, res.Done)
	require.NotNil(t, res.Reminder)
	require.Equal(t, 22, res.Reminder.Hour)

	d, err = env.storage.GetDraft(testChatID, testUserID)
	require.NoError(t, err)
	require.Nil(t, d)
}

func TestBuilderCancel(t *testing.T) {
	env := newTestEnv(t)

	ok, err := env.builder.Cancel(testChatID, testUserID)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = env.builder.Begin(testChatID, testUserID)
	require.NoError(t, err)
	env.advance(t, "pay rent")

	ok, err = env.builder.Cancel(testChatID, testUserID)
	require.NoError(t, err)
	require.True(t, ok)

	res, err := env.builder.Advance(testChatID, testUserID, StepInput{Text: "09:00"})
	require.NoError(t, err)
	require.Nil(t, res)
}

func TestBuilderBeginDiscardsExistingDraft(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.builder.Begin(testChatID, testUserID)
	require.NoError(t, err)
	env.advance(t, "old thing")
	env.advance(t, "09:00")

	_, err = env.builder.Begin(testChatID, testUserID)
	require.NoError(t, err)

	d, err := env.storage.GetDraft(testChatID, testUserID)
	require.NoError(t, err)
	require.Equal(t, domain.StepContent, d.Step())
	require.Empty(t, d.Time)
}

func TestBuilderDraftsAreIndependentPerUser(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.builder.Begin(testChatID, testUserID)
	require.NoError(t, err)
	_, err = env.builder.Begin(testChatID, testUserID+1)
	require.NoError(t, err)

	_, err = env.builder.Advance(testChatID, testUserID, StepInput{Text: "mine"})
	require.NoError(t, err)

	d, err := env.storage.GetDraft(testChatID, testUserID+1)
	require.NoError(t, err)
	require.Equal(t, domain.StepContent, d.Step())
}

func TestBuilderConcurrentAdvanceOneWins(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.builder.Begin(testChatID, testUserID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, text := range []string{"first message", "second message"} {
		wg.Add(1)
		go func(text string) {
			defer wg.Done()
			_, err := env.builder.Advance(testChatID, testUserID, StepInput{Text: text})
			require.NoError(t, err)
		}(text)
	}
	wg.Wait()

	// One message became the content; the other was consumed by the
	// time step and rejected there. Either order is fine, but the draft
	// must be in exactly one consistent state.
	d, err := env.storage.GetDraft(testChatID, testUserID)
	require.NoError(t, err)
	require.Equal(t, domain.StepTime, d.Step())
	require.Contains(t, []string{"first message", "second message"}, d.Text)
	require.Empty(t, d.Time)
}

func TestParseClock(t *testing.T) {
	hour, minute, err := parseClock("23:59")
	require.NoError(t, err)
	require.Equal(t, 23, hour)
	require.Equal(t, 59, minute)

	hour, minute, err = parseClock("00:00")
	require.NoError(t, err)
	require.Zero(t, hour)
	require.Zero(t, minute)

	for _, bad := range []string{"24:00", "7:30", "07:3", "0730", "aa:bb"} {
		_, _, err := parseClock(bad)
		require.Error(t, err, bad)
	}
}
