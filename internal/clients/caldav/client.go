// Package caldav publishes reminder events to a CalDAV collection so
// they show up in the user's regular calendar apps.
package caldav

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
)

// Event is the calendar-facing projection of a reminder.
type Event struct {
	UID     string
	Summary string
	StartAt time.Time
	EndAt   time.Time
	RRule   string // e.g. "FREQ=WEEKLY;BYDAY=WE", empty for once-offs
}

type Client struct {
	baseURL      string
	username     string
	password     string
	calendarPath string

	// Lazy init shared by the bot's update goroutines and the scheduler
	// dispatch path.
	once    sync.Once
	client  *caldav.Client
	connErr error
}

func NewClient(baseURL, username, password, calendarPath string) *Client {
	return &Client{
		baseURL:      baseURL,
		username:     username,
		password:     password,
		calendarPath: calendarPath,
	}
}

// IsConfigured returns true when there is enough config to talk to a
// server. Everything in this package is a no-op otherwise.
func (c *Client) IsConfigured() bool {
	return c.baseURL != "" && c.username != "" && c.password != "" && c.calendarPath != ""
}

func (c *Client) connect() (*caldav.Client, error) {
	c.once.Do(func() {
		httpClient := &http.Client{
			Transport: &basicAuthTransport{username: c.username, password: c.password},
			Timeout:   30 * time.Second,
		}

		client, err := caldav.NewClient(httpClient, c.baseURL)
		if err != nil {
			c.connErr = fmt.Errorf("connect to CalDAV: %w", err)
			return
		}
		c.client = client
	})
	return c.client, c.connErr
}

type basicAuthTransport struct {
	username string
	password string
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.username, t.password)
	return http.DefaultTransport.RoundTrip(req)
}

// PutEvent creates or replaces the event object. CalDAV PUT is an
// upsert, so updates go through here too.
func (c *Client) PutEvent(event *Event) error {
	client, err := c.connect()
	if err != nil {
		return err
	}

	if _, err := client.PutCalendarObject(context.Background(), c.eventPath(event.UID), eventToICS(event)); err != nil {
		return fmt.Errorf("put event %s: %w", event.UID, err)
	}
	return nil
}

// DeleteEvent removes the event object. A missing object is fine.
func (c *Client) DeleteEvent(uid string) error {
	client, err := c.connect()
	if err != nil {
		return err
	}

	if err := client.RemoveAll(context.Background(), c.eventPath(uid)); err != nil {
		if strings.Contains(err.Error(), "404") || strings.Contains(err.Error(), "not found") {
			return nil
		}
		return fmt.Errorf("delete event %s: %w", uid, err)
	}
	return nil
}

func (c *Client) eventPath(uid string) string {
	path := c.calendarPath
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return path + uid + ".ics"
}

func eventToICS(event *Event) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//RemindBot//CalDAV//EN")

	vevent := ical.NewEvent()
	vevent.Props.SetText(ical.PropUID, event.UID)
	vevent.Props.SetText(ical.PropSummary, event.Summary)
	vevent.Props.SetDateTime(ical.PropDateTimeStart, event.StartAt.UTC())
	if !event.EndAt.IsZero() {
		vevent.Props.SetDateTime(ical.PropDateTimeEnd, event.EndAt.UTC())
	}
	if event.RRule != "" {
		vevent.Props.SetText(ical.PropRecurrenceRule, event.RRule)
	}
	vevent.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())

	cal.Children = append(cal.Children, vevent.Component)
	return cal
}
