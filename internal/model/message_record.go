// internal/model/message_record.go
package model

import "time"

type MessageKind string

const (
	KindInvitation      MessageKind = "invitation"
	KindThankYou        MessageKind = "thank_you"
	KindMorningReminder MessageKind = "morning_reminder"
)

type ResponseState string

const (
	ResponseAwaiting     ResponseState = "awaiting_response"
	ResponseNone         ResponseState = "no_response"
	ResponseAttending    ResponseState = "attending"
	ResponseNotAttending ResponseState = "not_attending"
	ResponseUndecided    ResponseState = "undecided"
)

// Pending reports whether a reminder may still follow a record in this state.
func (s ResponseState) Pending() bool {
	return s == ResponseAwaiting || s == ResponseNone
}

// MessageRecord is the append-only fact of one successful send.
// Reminders reuse KindInvitation with Round > 1.
type MessageRecord struct {
	ID                int           `db:"id" json:"id"`
	CampaignID        int           `db:"campaign_id" json:"campaign_id"`
	RecipientID       int           `db:"recipient_id" json:"recipient_id"`
	Kind              MessageKind   `db:"kind" json:"kind"`
	Round             int           `db:"round" json:"round"`
	Response          ResponseState `db:"response" json:"response"`
	ExternalMessageID string        `db:"external_message_id" json:"external_message_id"`
	CreatedAt         time.Time     `db:"created_at" json:"created_at"`
}

// RecordStats counts a campaign's records by kind and response.
type RecordStats struct {
	CampaignID int                   `json:"campaign_id"`
	Total      int                   `json:"total"`
	ByKind     map[MessageKind]int   `json:"by_kind"`
	ByResponse map[ResponseState]int `json:"by_response"`
	ByRound    map[int]int           `json:"by_round"`
}
