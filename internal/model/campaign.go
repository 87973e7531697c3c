// internal/model/campaign.go
package model

import (
	"fmt"
	"time"
)

const (
	MaxReminderCount       = 5
	MinMessageIntervalDays = 1
	MaxMessageIntervalDays = 30
)

// AutoInvite is the scheduling configuration stored on an event row.
type AutoInvite struct {
	Enabled             bool       `db:"auto_invite_enabled" json:"enabled"`
	StartedAt           *time.Time `db:"auto_invite_started_at" json:"started_at,omitempty"`
	ReminderCount       int        `db:"reminder_count" json:"reminder_count"`
	MessageIntervalDays int        `db:"message_interval_days" json:"message_interval_days"`
	SendThankYou        bool       `db:"send_thank_you" json:"send_thank_you"`
	SendMorningReminder bool       `db:"send_morning_reminder" json:"send_morning_reminder"`
}

// Validate reports whether the configuration is inside the supported ranges.
func (a AutoInvite) Validate() error {
	if a.ReminderCount < 0 || a.ReminderCount > MaxReminderCount {
		return fmt.Errorf("reminder_count %d outside 0..%d", a.ReminderCount, MaxReminderCount)
	}
	if a.MessageIntervalDays < MinMessageIntervalDays || a.MessageIntervalDays > MaxMessageIntervalDays {
		return fmt.Errorf("message_interval_days %d outside %d..%d",
			a.MessageIntervalDays, MinMessageIntervalDays, MaxMessageIntervalDays)
	}
	return nil
}

// Campaign is an event configured for automatic invitation dispatch.
// Presentation fields are passed to the message templates untouched.
type Campaign struct {
	ID         int        `db:"id" json:"id"`
	AutoInvite AutoInvite `json:"auto_invite"`

	Name          string    `db:"name" json:"name"`
	EventDate     time.Time `db:"event_date" json:"event_date"`
	EventTime     string    `db:"event_time" json:"event_time"`
	Venue         string    `db:"venue" json:"venue"`
	Location      string    `db:"location" json:"location"`
	ImageURL      string    `db:"image_url" json:"image_url,omitempty"`
	OwnerID       int       `db:"owner_id" json:"owner_id"`
	CelebratorOne string    `db:"celebrator_one" json:"celebrator_one"`
	CelebratorTwo string    `db:"celebrator_two" json:"celebrator_two"`
}
