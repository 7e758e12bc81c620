package bot

import (
	"context"
	"fmt"
	"html"
	"log"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/tazhate/remindbot/config"
	"github.com/tazhate/remindbot/internal/domain"
	"github.com/tazhate/remindbot/internal/service"
	"github.com/tazhate/remindbot/internal/storage"
)

type Bot struct {
	api       *tgbotapi.BotAPI
	cfg       *config.Config
	storage   *storage.Storage
	builder   *service.BuilderService
	reminders *service.ReminderService
	settings  *service.SettingsService
	calendar  *service.CalendarService
	server    *http.Server
}

func New(cfg *config.Config, storage *storage.Storage, builder *service.BuilderService, reminderSvc *service.ReminderService, settingsSvc *service.SettingsService, calendarSvc *service.CalendarService) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("Authorized as @%s", api.Self.UserName)

	bot := &Bot{
		api:       api,
		cfg:       cfg,
		storage:   storage,
		builder:   builder,
		reminders: reminderSvc,
		settings:  settingsSvc,
		calendar:  calendarSvc,
	}

	// Set bot commands (menu button)
	bot.setCommands()

	return bot, nil
}

func (b *Bot) setCommands() {
	commands := []tgbotapi.BotCommand{
		{Command: "remind", Description: "⏰ Set a new reminder"},
		{Command: "list", Description: "📋 List reminders"},
		{Command: "settings", Description: "⚙️ Time zone settings"},
		{Command: "export", Description: "📅 Export reminders as .ics"},
		{Command: "cancel", Description: "❌ Cancel the current reminder"},
		{Command: "help", Description: "❓ Help"},
	}

	cfg := tgbotapi.NewSetMyCommands(commands...)
	if _, err := b.api.Request(cfg); err != nil {
		log.Printf("Failed to set commands: %v", err)
	}
}

func (b *Bot) SetupWebhook() error {
	webhookURL := b.cfg.WebhookURL + "/bot"

	wh, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return fmt.Errorf("create webhook: %w", err)
	}

	if _, err := b.api.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}

	info, err := b.api.GetWebhookInfo()
	if err != nil {
		return fmt.Errorf("get webhook info: %w", err)
	}

	if info.LastErrorDate != 0 {
		log.Printf("Webhook last error: %s", info.LastErrorMessage)
	}

	log.Printf("Webhook set to: %s", webhookURL)
	return nil
}

func (b *Bot) Start(ctx context.Context) error {
	updates := b.api.ListenForWebhook("/bot")

	// Health check endpoint
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Setup REST API with Basic Auth
	b.SetupAPI()

	b.server = &http.Server{
		Addr:    ":" + b.cfg.ServerPort,
		Handler: nil, // use DefaultServeMux
	}

	go func() {
		log.Printf("Starting webhook server on :%s", b.cfg.ServerPort)
		if err := b.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-updates:
			go b.handleUpdate(update)
		}
	}
}

func (b *Bot) Stop(ctx context.Context) error {
	if b.server != nil {
		return b.server.Shutdown(ctx)
	}
	return nil
}

func (b *Bot) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "HTML"
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) SendMessageWithKeyboard(chatID int64, text string, keyboard interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "HTML"
	msg.ReplyMarkup = keyboard
	_, err := b.api.Send(msg)
	return err
}

// SendReminder delivers a fired reminder to its chat with the renew
// buttons attached. Implements service.ReminderSender.
func (b *Bot) SendReminder(r *domain.Reminder) error {
	if r.FileID != "" {
		photo := tgbotapi.NewPhoto(r.ChatID, tgbotapi.FileID(r.FileID))
		photo.Caption = reminderCaption(r)
		photo.ParseMode = "HTML"
		photo.ReplyMarkup = renewKeyboard()
		_, err := b.api.Send(photo)
		return err
	}

	msg := tgbotapi.NewMessage(r.ChatID, reminderCaption(r))
	msg.ParseMode = "HTML"
	msg.ReplyMarkup = renewKeyboard()
	_, err := b.api.Send(msg)
	return err
}

const reminderHeader = "🔔 <b>Reminder</b>"

func reminderCaption(r *domain.Reminder) string {
	if r.Text == "" {
		return reminderHeader
	}
	return reminderHeader + "\n\n" + html.EscapeString(r.Text)
}

func (b *Bot) API() *tgbotapi.BotAPI {
	return b.api
}
