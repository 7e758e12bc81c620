package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tazhate/remindbot/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

type Storage struct {
	db *sql.DB
}

func New(dbPath string) (*Storage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS chats (
			chat_id INTEGER PRIMARY KEY,
			timezone TEXT NOT NULL,
			awaiting_timezone INTEGER DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS reminders (
			id TEXT PRIMARY KEY,
			chat_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			text TEXT DEFAULT '',
			file_id TEXT DEFAULT '',
			timezone TEXT NOT NULL,
			hour INTEGER NOT NULL,
			minute INTEGER NOT NULL,
			freq_kind TEXT NOT NULL,
			freq_year INTEGER DEFAULT 0,
			freq_month INTEGER DEFAULT 0,
			freq_day INTEGER DEFAULT 0,
			freq_weekday INTEGER DEFAULT 0,
			trigger_id TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_chat_id ON reminders(chat_id)`,
		`CREATE TABLE IF NOT EXISTS triggers (
			id TEXT PRIMARY KEY,
			due_at DATETIME NOT NULL,
			reminder_id TEXT NOT NULL,
			recurring INTEGER DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_triggers_due_at ON triggers(due_at)`,
		`CREATE TABLE IF NOT EXISTS drafts (
			chat_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			text TEXT DEFAULT '',
			file_id TEXT DEFAULT '',
			time TEXT DEFAULT '',
			timezone TEXT NOT NULL,
			freq_kind TEXT DEFAULT '',
			weekday INTEGER DEFAULT -1,
			day INTEGER DEFAULT 0,
			month INTEGER DEFAULT 0,
			year INTEGER DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (chat_id, user_id)
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			// Ignore "duplicate column" errors for ALTER TABLE
			if !strings.Contains(err.Error(), "duplicate column") {
				return fmt.Errorf("exec migration: %w", err)
			}
		}
	}
	return nil
}

// === Chats ===

func (s *Storage) GetChatSettings(chatID int64) (*domain.ChatSettings, error) {
	c := &domain.ChatSettings{}
	err := s.db.QueryRow(
		`SELECT chat_id, timezone, awaiting_timezone, created_at FROM chats WHERE chat_id = ?`,
		chatID,
	).Scan(&c.ChatID, &c.Timezone, &c.AwaitingTimezone, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

func (s *Storage) SaveChatSettings(c *domain.ChatSettings) error {
	_, err := s.db.Exec(
		`INSERT INTO chats (chat_id, timezone, awaiting_timezone) VALUES (?, ?, ?)
		 ON CONFLICT(chat_id) DO UPDATE SET timezone = excluded.timezone, awaiting_timezone = excluded.awaiting_timezone`,
		c.ChatID, c.Timezone, c.AwaitingTimezone,
	)
	return err
}

// === Reminders ===

func (s *Storage) CreateReminder(r *domain.Reminder) error {
	_, err := s.db.Exec(
		`INSERT INTO reminders (id, chat_id, user_id, text, file_id, timezone, hour, minute, freq_kind, freq_year, freq_month, freq_day, freq_weekday, trigger_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ChatID, r.UserID, r.Text, r.FileID, r.Timezone, r.Hour, r.Minute,
		r.Frequency.Kind, r.Frequency.Year, int(r.Frequency.Month), r.Frequency.Day, int(r.Frequency.Weekday), r.TriggerID,
	)
	if err != nil {
		return err
	}
	r.CreatedAt = time.Now()
	return nil
}

const reminderColumns = `id, chat_id, user_id, text, file_id, timezone, hour, minute, freq_kind, freq_year, freq_month, freq_day, freq_weekday, trigger_id, created_at`

func scanReminder(row interface{ Scan(...any) error }) (*domain.Reminder, error) {
	r := &domain.Reminder{}
	var month, weekday int
	err := row.Scan(&r.ID, &r.ChatID, &r.UserID, &r.Text, &r.FileID, &r.Timezone, &r.Hour, &r.Minute,
		&r.Frequency.Kind, &r.Frequency.Year, &month, &r.Frequency.Day, &weekday, &r.TriggerID, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.Frequency.Month = time.Month(month)
	r.Frequency.Weekday = time.Weekday(weekday)
	return r, nil
}

func (s *Storage) GetReminder(id string) (*domain.Reminder, error) {
	row := s.db.QueryRow(`SELECT `+reminderColumns+` FROM reminders WHERE id = ?`, id)
	r, err := scanReminder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

func (s *Storage) ListReminders(chatID int64) ([]*domain.Reminder, error) {
	rows, err := s.db.Query(`SELECT `+reminderColumns+` FROM reminders WHERE chat_id = ? ORDER BY created_at, id`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reminders []*domain.Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

func (s *Storage) DeleteReminder(id string) error {
	_, err := s.db.Exec(`DELETE FROM reminders WHERE id = ?`, id)
	return err
}

// === Triggers ===

func (s *Storage) GetTrigger(id string) (*domain.Trigger, error) {
	t := &domain.Trigger{}
	err := s.db.QueryRow(
		`SELECT id, due_at, reminder_id, recurring FROM triggers WHERE id = ?`,
		id,
	).Scan(&t.ID, &t.DueAt, &t.ReminderID, &t.Recurring)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.DueAt = t.DueAt.UTC()
	return t, nil
}

func (s *Storage) CreateTrigger(t *domain.Trigger) error {
	_, err := s.db.Exec(
		`INSERT INTO triggers (id, due_at, reminder_id, recurring) VALUES (?, ?, ?, ?)`,
		t.ID, t.DueAt.UTC(), t.ReminderID, t.Recurring,
	)
	return err
}

func (s *Storage) UpdateTriggerDueAt(id string, dueAt time.Time) error {
	_, err := s.db.Exec(`UPDATE triggers SET due_at = ? WHERE id = ?`, dueAt.UTC(), id)
	return err
}

func (s *Storage) DeleteTrigger(id string) error {
	_, err := s.db.Exec(`DELETE FROM triggers WHERE id = ?`, id)
	return err
}

// ListDueTriggers returns triggers with due_at <= asOf, oldest first.
func (s *Storage) ListDueTriggers(asOf time.Time) ([]*domain.Trigger, error) {
	rows, err := s.db.Query(
		`SELECT id, due_at, reminder_id, recurring FROM triggers WHERE due_at <= ? ORDER BY due_at, id`,
		asOf.UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var triggers []*domain.Trigger
	for rows.Next() {
		t := &domain.Trigger{}
		if err := rows.Scan(&t.ID, &t.DueAt, &t.ReminderID, &t.Recurring); err != nil {
			return nil, err
		}
		t.DueAt = t.DueAt.UTC()
		triggers = append(triggers, t)
	}
	return triggers, rows.Err()
}

// === Drafts ===

func (s *Storage) GetDraft(chatID, userID int64) (*domain.Draft, error) {
	d := &domain.Draft{}
	err := s.db.QueryRow(
		`SELECT chat_id, user_id, text, file_id, time, timezone, freq_kind, weekday, day, month, year, created_at
		 FROM drafts WHERE chat_id = ? AND user_id = ?`,
		chatID, userID,
	).Scan(&d.ChatID, &d.UserID, &d.Text, &d.FileID, &d.Time, &d.Timezone, &d.FreqKind, &d.Weekday, &d.Day, &d.Month, &d.Year, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return d, err
}

func (s *Storage) SaveDraft(d *domain.Draft) error {
	_, err := s.db.Exec(
		`INSERT INTO drafts (chat_id, user_id, text, file_id, time, timezone, freq_kind, weekday, day, month, year)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(chat_id, user_id) DO UPDATE SET
			text = excluded.text, file_id = excluded.file_id, time = excluded.time,
			timezone = excluded.timezone, freq_kind = excluded.freq_kind,
			weekday = excluded.weekday, day = excluded.day, month = excluded.month, year = excluded.year`,
		d.ChatID, d.UserID, d.Text, d.FileID, d.Time, d.Timezone, d.FreqKind, d.Weekday, d.Day, d.Month, d.Year,
	)
	return err
}

func (s *Storage) DeleteDraft(chatID, userID int64) error {
	_, err := s.db.Exec(`DELETE FROM drafts WHERE chat_id = ? AND user_id = ?`, chatID, userID)
	return err
}

// === Chat lifecycle ===

// MigrateChat rewrites every row from the old chat id to the new one.
// Telegram sends this when a group is upgraded to a supergroup.
func (s *Storage) MigrateChat(oldID, newID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range []string{
		`UPDATE chats SET chat_id = ? WHERE chat_id = ?`,
		`UPDATE reminders SET chat_id = ? WHERE chat_id = ?`,
		`UPDATE drafts SET chat_id = ? WHERE chat_id = ?`,
	} {
		if _, err := tx.Exec(q, newID, oldID); err != nil {
			return fmt.Errorf("migrate chat %d -> %d: %w", oldID, newID, err)
		}
	}
	return tx.Commit()
}

// PurgeChat removes everything the bot knows about a chat, including the
// triggers of its reminders.
func (s *Storage) PurgeChat(chatID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM triggers WHERE reminder_id IN (SELECT id FROM reminders WHERE chat_id = ?)`,
		`DELETE FROM reminders WHERE chat_id = ?`,
		`DELETE FROM drafts WHERE chat_id = ?`,
		`DELETE FROM chats WHERE chat_id = ?`,
	} {
		if _, err := tx.Exec(q, chatID); err != nil {
			return fmt.Errorf("purge chat %d: %w", chatID, err)
		}
	}
	return tx.Commit()
}
