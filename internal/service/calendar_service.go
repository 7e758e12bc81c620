package service

import (
	"bytes"
	"fmt"
	"log"
	"time"

	"github.com/emersion/go-ical"
	"github.com/teambition/rrule-go"

	"github.com/tazhate/remindbot/internal/clients/caldav"
	"github.com/tazhate/remindbot/internal/domain"
	"github.com/tazhate/remindbot/internal/recurrence"
	"github.com/tazhate/remindbot/internal/storage"
)

// Each event gets a nominal duration so calendar apps render a block
// instead of a zero-length marker.
const eventDuration = 15 * time.Minute

// CalendarService renders reminders as iCalendar events: /export builds
// a downloadable .ics document, and when a CalDAV server is configured
// every created or deleted reminder is mirrored there as well. CalDAV
// trouble is logged and never fails the reminder operation.
type CalendarService struct {
	storage *storage.Storage
	client  *caldav.Client
	now     func() time.Time
}

func NewCalendarService(st *storage.Storage, client *caldav.Client) *CalendarService {
	return &CalendarService{storage: st, client: client, now: time.Now}
}

// ExportICS renders every reminder of the chat into one VCALENDAR.
func (s *CalendarService) ExportICS(chatID int64) ([]byte, error) {
	reminders, err := s.storage.ListReminders(chatID)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//RemindBot//Export//EN")

	for _, r := range reminders {
		ev, err := s.eventFor(r)
		if err != nil {
			log.Printf("Error exporting reminder %s: %v", r.ID, err)
			continue
		}

		vevent := ical.NewEvent()
		vevent.Props.SetText(ical.PropUID, eventUID(r.ID))
		vevent.Props.SetText(ical.PropSummary, ev.Summary)
		vevent.Props.SetDateTime(ical.PropDateTimeStart, ev.StartAt.UTC())
		vevent.Props.SetDateTime(ical.PropDateTimeEnd, ev.EndAt.UTC())
		if ev.RRule != "" {
			vevent.Props.SetText(ical.PropRecurrenceRule, ev.RRule)
		}
		vevent.Props.SetDateTime(ical.PropDateTimeStamp, s.now().UTC())
		cal.Children = append(cal.Children, vevent.Component)
	}

	// The encoder rejects a calendar with no components.
	if len(cal.Children) == 0 {
		return []byte("BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//RemindBot//Export//EN\r\nEND:VCALENDAR\r\n"), nil
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("encode calendar: %w", err)
	}
	return buf.Bytes(), nil
}

// PublishReminder mirrors a reminder to the CalDAV collection.
func (s *CalendarService) PublishReminder(r *domain.Reminder) {
	if s.client == nil || !s.client.IsConfigured() {
		return
	}

	ev, err := s.eventFor(r)
	if err != nil {
		log.Printf("Error building CalDAV event for reminder %s: %v", r.ID, err)
		return
	}
	if err := s.client.PutEvent(ev); err != nil {
		log.Printf("Error publishing reminder %s to CalDAV: %v", r.ID, err)
	}
}

// RemoveReminder drops the mirrored event, if any.
func (s *CalendarService) RemoveReminder(reminderID string) {
	if s.client == nil || !s.client.IsConfigured() {
		return
	}
	if err := s.client.DeleteEvent(eventUID(reminderID)); err != nil {
		log.Printf("Error removing reminder %s from CalDAV: %v", reminderID, err)
	}
}

func (s *CalendarService) eventFor(r *domain.Reminder) (*caldav.Event, error) {
	loc, err := r.Location()
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", r.Timezone, err)
	}

	start, err := recurrence.NextDue(r.Frequency, r.Hour, r.Minute, loc, s.now())
	if err != nil {
		return nil, err
	}

	return &caldav.Event{
		UID:     eventUID(r.ID),
		Summary: summaryFor(r),
		StartAt: start,
		EndAt:   start.Add(eventDuration),
		RRule:   RRuleFor(r.Frequency),
	}, nil
}

func summaryFor(r *domain.Reminder) string {
	if r.Text != "" {
		return "⏰ " + r.Text
	}
	return "⏰ Photo reminder"
}

func eventUID(reminderID string) string {
	return reminderID + "@remindbot"
}

var rruleWeekdays = [...]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// RRuleFor renders the RFC 5545 recurrence rule for a frequency.
// Once-offs have none.
func RRuleFor(f domain.Frequency) string {
	var opt rrule.ROption
	switch f.Kind {
	case domain.FrequencyDaily:
		opt = rrule.ROption{Freq: rrule.DAILY}
	case domain.FrequencyWeekly:
		opt = rrule.ROption{Freq: rrule.WEEKLY, Byweekday: []rrule.Weekday{rruleWeekdays[f.Weekday]}}
	case domain.FrequencyMonthly:
		opt = rrule.ROption{Freq: rrule.MONTHLY, Bymonthday: []int{f.Day}}
	case domain.FrequencyYearly:
		opt = rrule.ROption{Freq: rrule.YEARLY, Bymonth: []int{int(f.Month)}, Bymonthday: []int{f.Day}}
	default:
		return ""
	}
	return opt.RRuleString()
}
