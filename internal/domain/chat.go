package domain

import "time"

// ChatSettings holds the per-chat configuration. AwaitingTimezone marks
// that the next plain message in the chat is a timezone change request
// from the /settings flow.
type ChatSettings struct {
	ChatID           int64
	Timezone         string
	AwaitingTimezone bool
	CreatedAt        time.Time
}

func (c *ChatSettings) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}
