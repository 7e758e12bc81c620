package bot

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tazhate/remindbot/internal/domain"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type ReminderResponse struct {
	ID        string `json:"id"`
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text,omitempty"`
	HasPhoto  bool   `json:"has_photo"`
	Time      string `json:"time"`
	Timezone  string `json:"timezone"`
	Frequency string `json:"frequency"`
	Schedule  string `json:"schedule"`
	CreatedAt string `json:"created_at"`
}

// SetupAPI registers API routes with Basic Auth
func (b *Bot) SetupAPI() {
	if b.cfg.APIUsername == "" || b.cfg.APIPassword == "" {
		return // API disabled if no credentials
	}

	http.HandleFunc("/api/reminders", b.basicAuth(b.apiReminders))
	http.HandleFunc("/api/reminders/", b.basicAuth(b.apiReminder))
}

// basicAuth middleware
func (b *Bot) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok || username != b.cfg.APIUsername || password != b.cfg.APIPassword {
			w.Header().Set("WWW-Authenticate", `Basic realm="RemindBot API"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (b *Bot) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(APIResponse{Success: true, Data: data})
}

func (b *Bot) jsonError(w http.ResponseWriter, err string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{Success: false, Error: err})
}

// GET /api/reminders?chat_id={id} - list a chat's reminders
func (b *Bot) apiReminders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		b.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	chatID, err := strconv.ParseInt(r.URL.Query().Get("chat_id"), 10, 64)
	if err != nil {
		b.jsonError(w, "chat_id is required", http.StatusBadRequest)
		return
	}

	reminders, err := b.reminders.List(chatID)
	if err != nil {
		b.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	b.jsonResponse(w, b.remindersToResponse(reminders))
}

// GET /api/reminders/{id} - get one reminder
// DELETE /api/reminders/{id} - delete a reminder and its trigger
func (b *Bot) apiReminder(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/reminders/")
	if id == "" {
		b.jsonError(w, "Reminder ID required", http.StatusBadRequest)
		return
	}

	reminder, err := b.reminders.Get(id)
	if err != nil {
		b.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if reminder == nil {
		b.jsonError(w, "Reminder not found", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		b.jsonResponse(w, b.reminderToResponse(reminder))

	case http.MethodDelete:
		if err := b.reminders.Delete(reminder.ChatID, id); err != nil {
			b.jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		b.jsonResponse(w, map[string]bool{"deleted": true})

	default:
		b.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (b *Bot) remindersToResponse(reminders []*domain.Reminder) []ReminderResponse {
	result := make([]ReminderResponse, 0, len(reminders))
	for _, r := range reminders {
		result = append(result, b.reminderToResponse(r))
	}
	return result
}

func (b *Bot) reminderToResponse(r *domain.Reminder) ReminderResponse {
	return ReminderResponse{
		ID:        r.ID,
		ChatID:    r.ChatID,
		Text:      r.Text,
		HasPhoto:  r.FileID != "",
		Time:      domain.FormatClock(r.Hour, r.Minute),
		Timezone:  r.Timezone,
		Frequency: string(r.Frequency.Kind),
		Schedule:  r.Frequency.Describe(r.Hour, r.Minute),
		CreatedAt: r.CreatedAt.Format(time.RFC3339),
	}
}
