package config

import (
	"fmt"
	"os"
	"time"
)

type Config struct {
	TelegramToken   string
	DatabasePath    string
	DefaultTimezone string
	WebhookURL      string
	ServerPort      string

	// Optional Basic-Auth REST API. Disabled when either is empty.
	APIUsername string
	APIPassword string

	// Optional CalDAV mirror. Disabled unless all are set.
	CalDAVURL      string
	CalDAVUsername string
	CalDAVPassword string
	CalDAVCalendar string
}

func Load() (*Config, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./data/remindbot.db"
	}

	tzName := os.Getenv("DEFAULT_TIMEZONE")
	if tzName == "" {
		tzName = "Asia/Singapore"
	}
	if _, err := time.LoadLocation(tzName); err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_TIMEZONE: %w", err)
	}

	webhookURL := os.Getenv("WEBHOOK_URL")
	if webhookURL == "" {
		return nil, fmt.Errorf("WEBHOOK_URL is required")
	}

	serverPort := os.Getenv("SERVER_PORT")
	if serverPort == "" {
		serverPort = "8080"
	}

	return &Config{
		TelegramToken:   token,
		DatabasePath:    dbPath,
		DefaultTimezone: tzName,
		WebhookURL:      webhookURL,
		ServerPort:      serverPort,
		APIUsername:     os.Getenv("API_USERNAME"),
		APIPassword:     os.Getenv("API_PASSWORD"),
		CalDAVURL:       os.Getenv("CALDAV_URL"),
		CalDAVUsername:  os.Getenv("CALDAV_USERNAME"),
		CalDAVPassword:  os.Getenv("CALDAV_PASSWORD"),
		CalDAVCalendar:  os.Getenv("CALDAV_CALENDAR"),
	}, nil
}
