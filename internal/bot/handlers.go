package bot

import (
	"errors"
	"fmt"
	"html"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/tazhate/remindbot/internal/domain"
	"github.com/tazhate/remindbot/internal/service"
)

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		b.handleMessage(update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(update.CallbackQuery)
	case update.MyChatMember != nil:
		b.handleChatMember(update.MyChatMember)
	}
}

func (b *Bot) handleMessage(m *tgbotapi.Message) {
	chatID := m.Chat.ID

	// Group upgraded to supergroup: re-key everything we stored.
	if m.MigrateToChatID != 0 {
		if err := b.storage.MigrateChat(chatID, m.MigrateToChatID); err != nil {
			log.Printf("Error migrating chat %d -> %d: %v", chatID, m.MigrateToChatID, err)
		} else {
			log.Printf("Migrated chat %d -> %d", chatID, m.MigrateToChatID)
		}
		return
	}

	// Bot removed from a group: drop the chat's data.
	if m.LeftChatMember != nil && m.LeftChatMember.ID == b.api.Self.ID {
		b.purgeChat(chatID)
		return
	}

	if m.IsCommand() {
		b.handleCommand(m)
		return
	}
	if m.From == nil {
		return
	}
	userID := m.From.ID

	text := m.Text
	fileID := ""
	if len(m.Photo) > 0 {
		fileID = m.Photo[len(m.Photo)-1].FileID
		text = m.Caption
	}

	// Cancel button on the reply keyboards.
	if isCancelLabel(text) {
		b.cancelDraft(chatID, userID)
		return
	}

	// A pending timezone change claims the next plain message.
	if awaiting, err := b.settings.AwaitingTimezone(chatID); err == nil && awaiting && text != "" {
		b.applyTimezone(chatID, text)
		return
	}

	res, err := b.builder.Advance(chatID, userID, service.StepInput{Text: text, FileID: fileID})
	if err != nil {
		log.Printf("Error advancing draft %d/%d: %v", chatID, userID, err)
		b.SendMessage(chatID, "Something went wrong, please try again.")
		return
	}
	if res == nil {
		// No construction in progress; plain chatter is ignored.
		return
	}
	b.sendStep(chatID, res)
}

func (b *Bot) sendStep(chatID int64, res *service.StepResult) {
	var err error
	switch res.Keyboard {
	case service.KeyboardFrequency:
		err = b.SendMessageWithKeyboard(chatID, res.Prompt, frequencyKeyboard())
	case service.KeyboardWeekday:
		err = b.SendMessageWithKeyboard(chatID, res.Prompt, weekdayKeyboard())
	case service.KeyboardCalendar:
		err = b.SendMessageWithKeyboard(chatID, res.Prompt, b.calendarForChat(chatID))
	case service.KeyboardRemove:
		err = b.SendMessageWithKeyboard(chatID, res.Prompt, tgbotapi.NewRemoveKeyboard(true))
	default:
		err = b.SendMessage(chatID, res.Prompt)
	}
	if err != nil {
		log.Printf("Error sending step prompt to %d: %v", chatID, err)
	}
}

func (b *Bot) cancelDraft(chatID, userID int64) {
	ok, err := b.builder.Cancel(chatID, userID)
	if err != nil {
		log.Printf("Error cancelling draft %d/%d: %v", chatID, userID, err)
		return
	}
	if !ok {
		return
	}
	if err := b.SendMessageWithKeyboard(chatID, "Cancelled.", tgbotapi.NewRemoveKeyboard(true)); err != nil {
		log.Printf("Error sending cancel ack to %d: %v", chatID, err)
	}
}

func (b *Bot) applyTimezone(chatID int64, text string) {
	name := strings.TrimSpace(text)
	if err := b.settings.SetTimezone(chatID, name); err != nil {
		if errors.Is(err, service.ErrUnknownTimezone) {
			b.SendMessage(chatID, "I don't know that time zone. Send an IANA name like <code>Europe/Berlin</code> or <code>Asia/Singapore</code>.")
			return
		}
		log.Printf("Error setting timezone for chat %d: %v", chatID, err)
		b.SendMessage(chatID, "Something went wrong, please try again.")
		return
	}
	b.SendMessage(chatID, fmt.Sprintf("Time zone set to <b>%s</b>.", html.EscapeString(name)))
}

func (b *Bot) purgeChat(chatID int64) {
	if err := b.storage.PurgeChat(chatID); err != nil {
		log.Printf("Error purging chat %d: %v", chatID, err)
		return
	}
	log.Printf("Purged chat %d", chatID)
}

func (b *Bot) handleChatMember(m *tgbotapi.ChatMemberUpdated) {
	if m.NewChatMember.User == nil || m.NewChatMember.User.ID != b.api.Self.ID {
		return
	}
	switch m.NewChatMember.Status {
	case "kicked", "left":
		b.purgeChat(m.Chat.ID)
	}
}

// === Callbacks ===

var renewDurations = map[string]time.Duration{
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"3h":  3 * time.Hour,
	"1d":  24 * time.Hour,
}

func (b *Bot) handleCallback(cq *tgbotapi.CallbackQuery) {
	defer func() {
		if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
			log.Printf("Error answering callback: %v", err)
		}
	}()

	if cq.Message == nil {
		return
	}
	data := cq.Data

	switch {
	case data == "cal:ignore":
	case strings.HasPrefix(data, "cal:prev:"):
		b.shiftCalendar(cq, strings.TrimPrefix(data, "cal:prev:"), -1)
	case strings.HasPrefix(data, "cal:next:"):
		b.shiftCalendar(cq, strings.TrimPrefix(data, "cal:next:"), 1)
	case strings.HasPrefix(data, "cal:day:"):
		b.pickDate(cq, strings.TrimPrefix(data, "cal:day:"))
	case strings.HasPrefix(data, "renew:"):
		b.renew(cq, strings.TrimPrefix(data, "renew:"))
	case strings.HasPrefix(data, "rlist:"):
		page, err := strconv.Atoi(strings.TrimPrefix(data, "rlist:"))
		if err != nil {
			return
		}
		b.showList(cq, page)
	case strings.HasPrefix(data, "rview:"):
		b.showReminder(cq, strings.TrimPrefix(data, "rview:"))
	case strings.HasPrefix(data, "rdel:"):
		b.confirmDelete(cq, strings.TrimPrefix(data, "rdel:"))
	case strings.HasPrefix(data, "rdelyes:"):
		b.deleteReminder(cq, strings.TrimPrefix(data, "rdelyes:"))
	case data == "settz":
		b.beginTimezoneChange(cq)
	}
}

func (b *Bot) shiftCalendar(cq *tgbotapi.CallbackQuery, month string, delta int) {
	chatID := cq.Message.Chat.ID
	kb, err := b.shiftedCalendar(chatID, month, delta)
	if err != nil {
		log.Printf("Error shifting calendar: %v", err)
		return
	}
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, cq.Message.MessageID, kb)
	if _, err := b.api.Request(edit); err != nil {
		log.Printf("Error updating calendar: %v", err)
	}
}

func (b *Bot) pickDate(cq *tgbotapi.CallbackQuery, date string) {
	chatID := cq.Message.Chat.ID
	userID := cq.From.ID

	res, err := b.builder.Advance(chatID, userID, service.StepInput{Text: date})
	if err != nil {
		log.Printf("Error advancing draft with date %s: %v", date, err)
		b.SendMessage(chatID, "Something went wrong, please try again.")
		return
	}
	if res == nil {
		return
	}

	// Replace the picker so the date can't be tapped twice.
	edit := tgbotapi.NewEditMessageText(chatID, cq.Message.MessageID, "📅 "+date)
	if _, err := b.api.Request(edit); err != nil {
		log.Printf("Error collapsing calendar: %v", err)
	}
	b.sendStep(chatID, res)
}

func (b *Bot) renew(cq *tgbotapi.CallbackQuery, arg string) {
	chatID := cq.Message.Chat.ID

	if arg == "cancel" {
		edit := tgbotapi.NewEditMessageReplyMarkup(chatID, cq.Message.MessageID,
			tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
		if _, err := b.api.Request(edit); err != nil {
			log.Printf("Error clearing renew keyboard: %v", err)
		}
		return
	}

	d, ok := renewDurations[arg]
	if !ok {
		return
	}

	text, fileID := reminderContent(cq.Message)
	r, err := b.reminders.Snooze(chatID, cq.From.ID, text, fileID, d)
	if err != nil {
		log.Printf("Error renewing reminder in chat %d: %v", chatID, err)
		b.SendMessage(chatID, "Could not schedule that, please try again.")
		return
	}
	b.SendMessage(chatID, fmt.Sprintf("⏰ OK, I'll remind you again at <b>%02d:%02d</b>.", r.Hour, r.Minute))
}

// reminderContent recovers text and photo from a delivered reminder
// message so renew can schedule the same content again.
func reminderContent(m *tgbotapi.Message) (text, fileID string) {
	text = m.Text
	if len(m.Photo) > 0 {
		fileID = m.Photo[len(m.Photo)-1].FileID
		text = m.Caption
	}

	// The delivery header renders as plain text in the message.
	if idx := strings.Index(text, "\n\n"); idx >= 0 && strings.HasPrefix(text, "🔔") {
		text = text[idx+2:]
	} else if strings.HasPrefix(text, "🔔") {
		text = ""
	}
	return text, fileID
}

const listHeader = "📋 <b>Your reminders</b>"

func listText(reminders []*domain.Reminder, page int) string {
	return fmt.Sprintf("%s — %d total (page %d/%d)", listHeader, len(reminders), page+1, pageCount(len(reminders)))
}

func (b *Bot) showList(cq *tgbotapi.CallbackQuery, page int) {
	chatID := cq.Message.Chat.ID

	reminders, err := b.reminders.List(chatID)
	if err != nil {
		log.Printf("Error listing reminders for chat %d: %v", chatID, err)
		return
	}
	if len(reminders) == 0 {
		edit := tgbotapi.NewEditMessageText(chatID, cq.Message.MessageID, "You have no reminders yet. Use /remind to create one.")
		if _, err := b.api.Request(edit); err != nil {
			log.Printf("Error updating list: %v", err)
		}
		return
	}

	page = clampPage(page, len(reminders))
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, cq.Message.MessageID, listText(reminders, page), listKeyboard(reminders, page))
	edit.ParseMode = "HTML"
	if _, err := b.api.Request(edit); err != nil {
		log.Printf("Error updating list: %v", err)
	}
}

func reminderDetails(r *domain.Reminder) string {
	text := r.Text
	if text == "" {
		text = "🖼 Photo reminder"
	}
	return fmt.Sprintf("🔔 <b>%s</b>\n\nFires %s (%s).",
		html.EscapeString(text),
		r.Frequency.Describe(r.Hour, r.Minute),
		r.Timezone,
	)
}

func (b *Bot) showReminder(cq *tgbotapi.CallbackQuery, id string) {
	chatID := cq.Message.Chat.ID

	r, err := b.reminders.Get(id)
	if err != nil {
		log.Printf("Error loading reminder %s: %v", id, err)
		return
	}
	if r == nil || r.ChatID != chatID {
		b.showList(cq, 0)
		return
	}

	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, cq.Message.MessageID, reminderDetails(r), reminderViewKeyboard(id))
	edit.ParseMode = "HTML"
	if _, err := b.api.Request(edit); err != nil {
		log.Printf("Error showing reminder %s: %v", id, err)
	}
}

func (b *Bot) confirmDelete(cq *tgbotapi.CallbackQuery, id string) {
	chatID := cq.Message.Chat.ID
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, cq.Message.MessageID, "Delete this reminder?", deleteConfirmKeyboard(id))
	if _, err := b.api.Request(edit); err != nil {
		log.Printf("Error asking delete confirmation: %v", err)
	}
}

func (b *Bot) deleteReminder(cq *tgbotapi.CallbackQuery, id string) {
	chatID := cq.Message.Chat.ID

	if err := b.reminders.Delete(chatID, id); err != nil {
		log.Printf("Error deleting reminder %s: %v", id, err)
		b.SendMessage(chatID, "Could not delete that reminder.")
		return
	}
	edit := tgbotapi.NewEditMessageText(chatID, cq.Message.MessageID, "🗑 Reminder deleted.")
	if _, err := b.api.Request(edit); err != nil {
		log.Printf("Error confirming delete: %v", err)
	}
}

func (b *Bot) beginTimezoneChange(cq *tgbotapi.CallbackQuery) {
	chatID := cq.Message.Chat.ID
	if err := b.settings.BeginTimezoneChange(chatID); err != nil {
		log.Printf("Error starting timezone change for chat %d: %v", chatID, err)
		return
	}
	b.SendMessage(chatID, "Send the new time zone as an IANA name, e.g. <code>Europe/Berlin</code>.")
}
