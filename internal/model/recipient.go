// internal/model/recipient.go
package model

import (
	"strings"
	"time"
)

// Recipient is a contact linked to one or more campaigns.
type Recipient struct {
	ID       int    `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	DedupKey string `db:"dedup_key" json:"dedup_key"`
	Phone    string `db:"phone" json:"phone"`
	OwnerTag string `db:"owner_tag" json:"owner_tag"`
}

// HasPhone reports whether the recipient can ever be messaged.
func (r Recipient) HasPhone() bool {
	return strings.TrimSpace(r.Phone) != ""
}

// Candidate is a recipient selected for one message category together with
// the round that should be sent next.
type Candidate struct {
	Recipient  Recipient
	Round      int
	LastSentAt *time.Time
}
