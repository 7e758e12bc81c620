package bot

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Inline month picker. Navigation carries the displayed month in the
// callback data ("cal:prev:2025-06"), a day tap carries the full date
// ("cal:day:2025-06-10"). Days before minDate are dead cells: the
// construction flow never accepts a date in the past.

const calMonthLayout = "2006-01"

func calendarKeyboard(year int, month time.Month, minDate time.Time) tgbotapi.InlineKeyboardMarkup {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	cur := first.Format(calMonthLayout)

	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("«", "cal:prev:"+cur),
			tgbotapi.NewInlineKeyboardButtonData(first.Format("January 2006"), "cal:ignore"),
			tgbotapi.NewInlineKeyboardButtonData("»", "cal:next:"+cur),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Mo", "cal:ignore"),
			tgbotapi.NewInlineKeyboardButtonData("Tu", "cal:ignore"),
			tgbotapi.NewInlineKeyboardButtonData("We", "cal:ignore"),
			tgbotapi.NewInlineKeyboardButtonData("Th", "cal:ignore"),
			tgbotapi.NewInlineKeyboardButtonData("Fr", "cal:ignore"),
			tgbotapi.NewInlineKeyboardButtonData("Sa", "cal:ignore"),
			tgbotapi.NewInlineKeyboardButtonData("Su", "cal:ignore"),
		),
	}

	// Monday-first column of the 1st.
	lead := (int(first.Weekday()) + 6) % 7
	days := daysIn(year, month)

	row := make([]tgbotapi.InlineKeyboardButton, 0, 7)
	for i := 0; i < lead; i++ {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(" ", "cal:ignore"))
	}
	for day := 1; day <= days; day++ {
		date := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		if date.Before(minDate) {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData("·", "cal:ignore"))
		} else {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("%d", day),
				"cal:day:"+date.Format("2006-01-02"),
			))
		}
		if len(row) == 7 {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(row...))
			row = make([]tgbotapi.InlineKeyboardButton, 0, 7)
		}
	}
	if len(row) > 0 {
		for len(row) < 7 {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(" ", "cal:ignore"))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(row...))
	}

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// calendarForChat opens the picker on the current month in the chat's
// zone, with today as the minimum selectable date.
func (b *Bot) calendarForChat(chatID int64) tgbotapi.InlineKeyboardMarkup {
	loc, err := time.LoadLocation(b.settings.Timezone(chatID))
	if err != nil {
		loc = time.UTC
	}
	now := time.Now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return calendarKeyboard(now.Year(), now.Month(), today)
}

// shiftedCalendar re-renders the picker one month away from the given
// "YYYY-MM" month, never navigating before the current month.
func (b *Bot) shiftedCalendar(chatID int64, month string, delta int) (tgbotapi.InlineKeyboardMarkup, error) {
	cur, err := time.Parse(calMonthLayout, month)
	if err != nil {
		return tgbotapi.InlineKeyboardMarkup{}, fmt.Errorf("parse calendar month %q: %w", month, err)
	}

	loc, lerr := time.LoadLocation(b.settings.Timezone(chatID))
	if lerr != nil {
		loc = time.UTC
	}
	now := time.Now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	target := cur.AddDate(0, delta, 0)
	if target.Year() < now.Year() || (target.Year() == now.Year() && target.Month() < now.Month()) {
		target = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return calendarKeyboard(target.Year(), target.Month(), today), nil
}

func daysIn(year int, month time.Month) int {
	return 32 - time.Date(year, month, 32, 0, 0, 0, 0, time.UTC).Day()
}
