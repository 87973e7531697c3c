// internal/service/template_service.go
package service

import (
	"fmt"
	"strings"

	"github.com/unclebandit/autoinvite/internal/model"
	"github.com/unclebandit/autoinvite/internal/sender"
)

// TemplateSet names the approved channel templates.
type TemplateSet struct {
	Initial string
	// ReminderPrefix is suffixed with the reminder number, so round 2 is
	// "<prefix>_1".
	ReminderPrefix  string
	ThankYou        string
	MorningReminder string
}

func DefaultTemplates() TemplateSet {
	return TemplateSet{
		Initial:         "auto_invite_initial",
		ReminderPrefix:  "auto_invite_reminder",
		ThankYou:        "auto_invite_thank_you",
		MorningReminder: "auto_invite_morning_reminder",
	}
}

// For picks the template for (kind, round) and reports whether it carries
// the RSVP buttons.
func (t TemplateSet) For(kind model.MessageKind, round int) (string, bool, error) {
	if round < 1 {
		return "", false, fmt.Errorf("round %d is not positive", round)
	}
	switch kind {
	case model.KindInvitation:
		if round == 1 {
			return t.Initial, true, nil
		}
		reminder := round - 1
		if reminder > model.MaxReminderCount {
			return "", false, fmt.Errorf("no reminder template for round %d", round)
		}
		return fmt.Sprintf("%s_%d", t.ReminderPrefix, reminder), true, nil
	case model.KindThankYou:
		return t.ThankYou, false, nil
	case model.KindMorningReminder:
		return t.MorningReminder, false, nil
	}
	return "", false, fmt.Errorf("unknown message kind %q", kind)
}

// ResponseButtons are the three RSVP quick replies. The payload carries the
// campaign so the inbound webhook can attribute the answer.
func ResponseButtons(campaignID int) []sender.Button {
	return []sender.Button{
		{Title: "Attending", Payload: fmt.Sprintf("rsvp:%d:%s", campaignID, model.ResponseAttending)},
		{Title: "Not attending", Payload: fmt.Sprintf("rsvp:%d:%s", campaignID, model.ResponseNotAttending)},
		{Title: "Undecided", Payload: fmt.Sprintf("rsvp:%d:%s", campaignID, model.ResponseUndecided)},
	}
}

// TemplateParams returns the body parameters, in template order, for kind.
func TemplateParams(kind model.MessageKind, c *model.Campaign, r model.Recipient) []string {
	date := ""
	if !c.EventDate.IsZero() {
		date = c.EventDate.Format("Monday, 2 January 2006")
	}
	var params []string
	switch kind {
	case model.KindThankYou:
		params = []string{r.Name, c.CelebratorOne, c.CelebratorTwo, c.Name}
	case model.KindMorningReminder:
		params = []string{r.Name, c.Name, c.EventTime, c.Venue, c.Location}
	default:
		params = []string{r.Name, c.CelebratorOne, c.CelebratorTwo, c.Name, date, c.EventTime, c.Venue, c.Location}
	}
	for i, p := range params {
		params[i] = placeholder(p)
	}
	return params
}

// the channel rejects empty parameters
func placeholder(value string) string {
	if strings.TrimSpace(value) == "" {
		return "N/A"
	}
	return value
}

// DedupeKey identifies one logical message for a recipient.
func DedupeKey(campaignID, recipientID int, kind model.MessageKind, round int) string {
	return fmt.Sprintf("%d:%d:%s:%d", campaignID, recipientID, kind, round)
}
