package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tazhate/remindbot/config"
	"github.com/tazhate/remindbot/internal/bot"
	"github.com/tazhate/remindbot/internal/clients/caldav"
	"github.com/tazhate/remindbot/internal/scheduler"
	"github.com/tazhate/remindbot/internal/service"
	"github.com/tazhate/remindbot/internal/storage"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to init storage: %v", err)
	}
	defer store.Close()

	triggers := scheduler.New(store)

	settingsSvc := service.NewSettingsService(store, cfg.DefaultTimezone)
	reminderSvc := service.NewReminderService(store, triggers, settingsSvc)
	builderSvc := service.NewBuilderService(store, reminderSvc, settingsSvc)

	caldavClient := caldav.NewClient(cfg.CalDAVURL, cfg.CalDAVUsername, cfg.CalDAVPassword, cfg.CalDAVCalendar)
	calendarSvc := service.NewCalendarService(store, caldavClient)
	reminderSvc.SetCalendar(calendarSvc)

	tgBot, err := bot.New(cfg, store, builderSvc, reminderSvc, settingsSvc, calendarSvc)
	if err != nil {
		log.Fatalf("Failed to init bot: %v", err)
	}

	if err := tgBot.SetupWebhook(); err != nil {
		log.Fatalf("Failed to setup webhook: %v", err)
	}

	reminderSvc.SetSender(tgBot)
	triggers.SetFireFunc(reminderSvc.Deliver)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := triggers.Start(ctx); err != nil {
			log.Printf("Trigger store error: %v", err)
		}
	}()

	go func() {
		if err := tgBot.Start(ctx); err != nil {
			log.Printf("Bot error: %v", err)
		}
	}()

	log.Println("RemindBot started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")

	cancel()
	triggers.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := tgBot.Stop(shutdownCtx); err != nil {
		log.Printf("Error stopping bot: %v", err)
	}

	log.Println("RemindBot stopped")
}
