package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/tazhate/remindbot/internal/domain"
	"github.com/tazhate/remindbot/internal/storage"
)

var ErrUnknownTimezone = errors.New("unknown timezone")

// SettingsService owns per-chat configuration. Every chat gets a row
// with the default timezone the first time it is looked at.
type SettingsService struct {
	storage   *storage.Storage
	defaultTZ string
}

func NewSettingsService(st *storage.Storage, defaultTZ string) *SettingsService {
	return &SettingsService{storage: st, defaultTZ: defaultTZ}
}

func (s *SettingsService) Get(chatID int64) (*domain.ChatSettings, error) {
	c, err := s.storage.GetChatSettings(chatID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		c = &domain.ChatSettings{ChatID: chatID, Timezone: s.defaultTZ}
		if err := s.storage.SaveChatSettings(c); err != nil {
			return nil, fmt.Errorf("save chat settings: %w", err)
		}
	}
	return c, nil
}

// Timezone never fails: on any storage trouble it falls back to the
// configured default.
func (s *SettingsService) Timezone(chatID int64) string {
	c, err := s.Get(chatID)
	if err != nil || c == nil {
		return s.defaultTZ
	}
	return c.Timezone
}

// AwaitingTimezone reports whether the next plain message in the chat
// should be treated as a timezone name.
func (s *SettingsService) AwaitingTimezone(chatID int64) (bool, error) {
	c, err := s.storage.GetChatSettings(chatID)
	if err != nil {
		return false, err
	}
	return c != nil && c.AwaitingTimezone, nil
}

func (s *SettingsService) BeginTimezoneChange(chatID int64) error {
	return s.setAwaiting(chatID, true)
}

func (s *SettingsService) CancelTimezoneChange(chatID int64) error {
	return s.setAwaiting(chatID, false)
}

func (s *SettingsService) setAwaiting(chatID int64, v bool) error {
	c, err := s.Get(chatID)
	if err != nil {
		return err
	}
	c.AwaitingTimezone = v
	return s.storage.SaveChatSettings(c)
}

// SetTimezone validates the name against the IANA database and stores
// it, clearing the awaiting flag.
func (s *SettingsService) SetTimezone(chatID int64, name string) error {
	if name == "" {
		return ErrUnknownTimezone
	}
	if _, err := time.LoadLocation(name); err != nil {
		return ErrUnknownTimezone
	}

	c, err := s.Get(chatID)
	if err != nil {
		return err
	}
	c.Timezone = name
	c.AwaitingTimezone = false
	return s.storage.SaveChatSettings(c)
}
