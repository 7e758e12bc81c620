package bot

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/tazhate/remindbot/internal/domain"
	"github.com/tazhate/remindbot/internal/service"
)

const cancelLabel = "❌ Cancel"

func frequencyKeyboard() tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton
	for i := 0; i < len(service.FrequencyChoices); i += 2 {
		row := []tgbotapi.KeyboardButton{tgbotapi.NewKeyboardButton(service.FrequencyChoices[i])}
		if i+1 < len(service.FrequencyChoices) {
			row = append(row, tgbotapi.NewKeyboardButton(service.FrequencyChoices[i+1]))
		}
		rows = append(rows, row)
	}
	rows = append(rows, []tgbotapi.KeyboardButton{tgbotapi.NewKeyboardButton(cancelLabel)})

	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.OneTimeKeyboard = true
	return kb
}

func weekdayKeyboard() tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton
	for i := 0; i < len(service.WeekdayChoices); i += 2 {
		row := []tgbotapi.KeyboardButton{tgbotapi.NewKeyboardButton(service.WeekdayChoices[i])}
		if i+1 < len(service.WeekdayChoices) {
			row = append(row, tgbotapi.NewKeyboardButton(service.WeekdayChoices[i+1]))
		}
		rows = append(rows, row)
	}
	rows = append(rows, []tgbotapi.KeyboardButton{tgbotapi.NewKeyboardButton(cancelLabel)})

	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.OneTimeKeyboard = true
	return kb
}

// renewKeyboard is attached to every delivered reminder: one tap
// schedules the same content again a bit later.
func renewKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("15 min", "renew:15m"),
			tgbotapi.NewInlineKeyboardButtonData("30 min", "renew:30m"),
			tgbotapi.NewInlineKeyboardButtonData("1 hour", "renew:1h"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("3 hours", "renew:3h"),
			tgbotapi.NewInlineKeyboardButtonData("1 day", "renew:1d"),
			tgbotapi.NewInlineKeyboardButtonData("✖️", "renew:cancel"),
		),
	)
}

func settingsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🌍 Change time zone", "settz"),
		),
	)
}

const listPageSize = 5

// listKeyboard renders one page of reminders as buttons plus nav arrows.
func listKeyboard(reminders []*domain.Reminder, page int) tgbotapi.InlineKeyboardMarkup {
	start := page * listPageSize
	end := start + listPageSize
	if end > len(reminders) {
		end = len(reminders)
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, r := range reminders[start:end] {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(listLabel(r), "rview:"+r.ID),
		))
	}

	var nav []tgbotapi.InlineKeyboardButton
	if page > 0 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("«", fmt.Sprintf("rlist:%d", page-1)))
	}
	if end < len(reminders) {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("»", fmt.Sprintf("rlist:%d", page+1)))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func listLabel(r *domain.Reminder) string {
	text := r.Text
	if text == "" {
		text = "🖼 Photo reminder"
	}
	if r := []rune(text); len(r) > 40 {
		text = string(r[:37]) + "..."
	}
	return fmt.Sprintf("%02d:%02d · %s", r.Hour, r.Minute, text)
}

func reminderViewKeyboard(id string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 Delete", "rdel:"+id),
			tgbotapi.NewInlineKeyboardButtonData("« Back", "rlist:0"),
		),
	)
}

func deleteConfirmKeyboard(id string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Yes, delete", "rdelyes:"+id),
			tgbotapi.NewInlineKeyboardButtonData("« No", "rview:"+id),
		),
	)
}

func pageCount(total int) int {
	if total == 0 {
		return 1
	}
	return (total + listPageSize - 1) / listPageSize
}

func clampPage(page, total int) int {
	if page < 0 {
		return 0
	}
	if max := pageCount(total) - 1; page > max {
		return max
	}
	return page
}

func isCancelLabel(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), "cancel") || text == cancelLabel
}
