package bot

import (
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/remindbot/internal/domain"
)

func sampleReminders(n int) []*domain.Reminder {
	out := make([]*domain.Reminder, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &domain.Reminder{
			ID:   fmt.Sprintf("r%d", i),
			Text: fmt.Sprintf("reminder %d", i),
			Hour: 9, Minute: 30,
		})
	}
	return out
}

func TestListKeyboardPagination(t *testing.T) {
	reminders := sampleReminders(12)

	// First page: 5 reminders plus a forward-only nav row.
	kb := listKeyboard(reminders, 0)
	require.Len(t, kb.InlineKeyboard, 6)
	nav := kb.InlineKeyboard[5]
	require.Len(t, nav, 1)
	require.Equal(t, "rlist:1", *nav[0].CallbackData)

	// Middle page navigates both ways.
	kb = listKeyboard(reminders, 1)
	nav = kb.InlineKeyboard[len(kb.InlineKeyboard)-1]
	require.Len(t, nav, 2)
	require.Equal(t, "rlist:0", *nav[0].CallbackData)
	require.Equal(t, "rlist:2", *nav[1].CallbackData)

	// Last page: 2 reminders, back only.
	kb = listKeyboard(reminders, 2)
	require.Len(t, kb.InlineKeyboard, 3)
	nav = kb.InlineKeyboard[2]
	require.Len(t, nav, 1)
	require.Equal(t, "rlist:1", *nav[0].CallbackData)
}

func TestPageClamping(t *testing.T) {
	require.Equal(t, 1, pageCount(0))
	require.Equal(t, 1, pageCount(5))
	require.Equal(t, 2, pageCount(6))
	require.Equal(t, 3, pageCount(12))

	require.Zero(t, clampPage(-1, 12))
	require.Equal(t, 2, clampPage(99, 12))
	require.Equal(t, 1, clampPage(1, 12))
}

func TestListLabelTruncatesLongText(t *testing.T) {
	r := &domain.Reminder{Text: "water the plants", Hour: 9, Minute: 30}
	require.Equal(t, "09:30 · water the plants", listLabel(r))

	r.Text = "a very long reminder text that certainly exceeds forty characters"
	label := listLabel(r)
	require.Contains(t, label, "...")

	// Truncation must cut between runes, not inside one.
	r.Text = strings.Repeat("über-wichtig ", 5)
	label = listLabel(r)
	require.True(t, utf8.ValidString(label))
	require.Contains(t, label, "...")

	r.Text = ""
	require.Equal(t, "09:30 · 🖼 Photo reminder", listLabel(r))
}

func TestIsCancelLabel(t *testing.T) {
	require.True(t, isCancelLabel(cancelLabel))
	require.True(t, isCancelLabel("cancel"))
	require.True(t, isCancelLabel(" Cancel "))
	require.False(t, isCancelLabel("cancel it"))
	require.False(t, isCancelLabel(""))
}

func TestCalendarKeyboardGrid(t *testing.T) {
	// June 2025: starts on a Sunday, 30 days.
	minDate := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)
	kb := calendarKeyboard(2025, time.June, minDate)

	// Header + weekday row + 6 week rows (June 2025 starts on a Sunday,
	// so Monday-first layout leaves 6 leading blanks).
	require.Len(t, kb.InlineKeyboard, 8)
	header := kb.InlineKeyboard[0]
	require.Equal(t, "cal:prev:2025-06", *header[0].CallbackData)
	require.Equal(t, "cal:next:2025-06", *header[2].CallbackData)

	// Every week row has exactly 7 cells.
	for _, row := range kb.InlineKeyboard[2:] {
		require.Len(t, row, 7)
	}

	var dead, live int
	for _, row := range kb.InlineKeyboard[2:] {
		for _, btn := range row {
			switch {
			case btn.Text == "·":
				dead++
			case *btn.CallbackData != "cal:ignore":
				live++
			}
		}
	}
	// Days 1-9 are before minDate, days 10-30 are selectable.
	require.Equal(t, 9, dead)
	require.Equal(t, 21, live)
}

func TestReminderContentStripsDeliveryHeader(t *testing.T) {
	text, fileID := reminderContent(&tgbotapi.Message{Text: "🔔 Reminder\n\nwater the plants"})
	require.Equal(t, "water the plants", text)
	require.Empty(t, fileID)

	// Header only, no body.
	text, _ = reminderContent(&tgbotapi.Message{Text: "🔔 Reminder"})
	require.Empty(t, text)

	// Photo reminders carry the content in the caption.
	text, fileID = reminderContent(&tgbotapi.Message{
		Caption: "🔔 Reminder\n\npay rent",
		Photo:   []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "big"}},
	})
	require.Equal(t, "pay rent", text)
	require.Equal(t, "big", fileID)
}

func TestDaysIn(t *testing.T) {
	require.Equal(t, 30, daysIn(2025, time.June))
	require.Equal(t, 28, daysIn(2025, time.February))
	require.Equal(t, 29, daysIn(2028, time.February))
}
