package bot

import (
	"fmt"
	"html"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const helpText = `⏰ <b>I can remind you about things.</b>

/remind — set a new reminder: tell me what, when, and how often
/list — your reminders, with delete
/settings — change the chat's time zone
/export — download all reminders as an .ics calendar file
/cancel — abort the reminder you're setting up
/support — where to report problems

Reminders can repeat daily, weekly, monthly or yearly. Times are
interpreted in the chat's time zone, and a photo with a caption works
as reminder content too.`

const supportText = `Found a bug or have an idea? Open an issue:
https://github.com/tazhate/remindbot/issues`

func (b *Bot) handleCommand(m *tgbotapi.Message) {
	chatID := m.Chat.ID
	if m.From == nil {
		return
	}
	userID := m.From.ID

	switch m.Command() {
	case "start", "help":
		b.SendMessage(chatID, helpText)

	case "support":
		b.SendMessage(chatID, supportText)

	case "remind":
		res, err := b.builder.Begin(chatID, userID)
		if err != nil {
			log.Printf("Error starting draft %d/%d: %v", chatID, userID, err)
			b.SendMessage(chatID, "Something went wrong, please try again.")
			return
		}
		b.sendStep(chatID, res)

	case "cancel":
		b.cancelDraft(chatID, userID)

	case "list":
		b.sendList(chatID)

	case "settings":
		b.sendSettings(chatID)

	case "export":
		b.sendExport(chatID)
	}
}

func (b *Bot) sendList(chatID int64) {
	reminders, err := b.reminders.List(chatID)
	if err != nil {
		log.Printf("Error listing reminders for chat %d: %v", chatID, err)
		b.SendMessage(chatID, "Something went wrong, please try again.")
		return
	}
	if len(reminders) == 0 {
		b.SendMessage(chatID, "You have no reminders yet. Use /remind to create one.")
		return
	}
	if err := b.SendMessageWithKeyboard(chatID, listText(reminders, 0), listKeyboard(reminders, 0)); err != nil {
		log.Printf("Error sending list to %d: %v", chatID, err)
	}
}

func (b *Bot) sendSettings(chatID int64) {
	tz := b.settings.Timezone(chatID)
	text := fmt.Sprintf("⚙️ <b>Settings</b>\n\nTime zone: <b>%s</b>", html.EscapeString(tz))
	if err := b.SendMessageWithKeyboard(chatID, text, settingsKeyboard()); err != nil {
		log.Printf("Error sending settings to %d: %v", chatID, err)
	}
}

func (b *Bot) sendExport(chatID int64) {
	reminders, err := b.reminders.List(chatID)
	if err != nil {
		log.Printf("Error listing reminders for chat %d: %v", chatID, err)
		b.SendMessage(chatID, "Something went wrong, please try again.")
		return
	}
	if len(reminders) == 0 {
		b.SendMessage(chatID, "Nothing to export yet. Use /remind to create a reminder first.")
		return
	}

	data, err := b.calendar.ExportICS(chatID)
	if err != nil {
		log.Printf("Error exporting chat %d: %v", chatID, err)
		b.SendMessage(chatID, "Export failed, please try again.")
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: "reminders.ics", Bytes: data})
	doc.Caption = "📅 Your reminders as an iCalendar file."
	if _, err := b.api.Send(doc); err != nil {
		log.Printf("Error sending export to %d: %v", chatID, err)
	}
}
