// internal/service/dispatcher.go
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/autoinvite/internal/errors"
	"github.com/unclebandit/autoinvite/internal/logging"
	"github.com/unclebandit/autoinvite/internal/metrics"
	"github.com/unclebandit/autoinvite/internal/model"
	"github.com/unclebandit/autoinvite/internal/phone"
	"github.com/unclebandit/autoinvite/internal/repository"
	"github.com/unclebandit/autoinvite/internal/sender"
)

type OutcomeStatus string

const (
	OutcomeSent   OutcomeStatus = "sent"
	OutcomeFailed OutcomeStatus = "failed"
)

// Outcome is the result of one dispatch attempt.
type Outcome struct {
	Status            OutcomeStatus
	ExternalMessageID string
	Record            *model.MessageRecord
	Reason            error
}

func (o Outcome) Sent() bool { return o.Status == OutcomeSent }

// RecipientDispatcher sends one message to one recipient.
type RecipientDispatcher interface {
	Dispatch(ctx context.Context, r model.Recipient, c *model.Campaign, round int, kind model.MessageKind) (Outcome, error)
}

// Dispatcher sends a template and appends the record of a successful send.
// Nothing is recorded for a failed send, so the recipient is selected again
// on the next pass.
type Dispatcher struct {
	Sender    sender.TemplateSender
	Records   repository.MessageRecordRepositoryInterface
	Phones    *phone.Normalizer
	Templates TemplateSet
	Language  string
	Now       func() time.Time
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Dispatch returns a failed Outcome for invalid recipients and channel
// errors. The error return is reserved for store failures: the message went
// out but could not be recorded, and the caller must stop the campaign.
func (d *Dispatcher) Dispatch(ctx context.Context, r model.Recipient, c *model.Campaign, round int, kind model.MessageKind) (Outcome, error) {
	log := logging.OrNop(d.Logger).With(
		zap.Int("campaign_id", c.ID),
		zap.Int("recipient_id", r.ID),
		zap.String("kind", string(kind)),
		zap.Int("round", round),
	)

	to, err := d.Phones.WhatsAppID(r.Phone)
	if err != nil {
		reason := &appErrors.InvalidRecipientError{RecipientID: r.ID, Phone: r.Phone, Err: err}
		log.Warn("skipping recipient with invalid phone", zap.Error(err))
		d.Metrics.ObserveDispatch(string(kind), "invalid_recipient")
		return Outcome{Status: OutcomeFailed, Reason: reason}, nil
	}

	name, interactive, err := d.Templates.For(kind, round)
	if err != nil {
		reason := &appErrors.TemplateError{Kind: string(kind), Round: round, Err: err}
		log.Error("no template for message", zap.Error(err))
		d.Metrics.ObserveDispatch(string(kind), "no_template")
		return Outcome{Status: OutcomeFailed, Reason: reason}, nil
	}

	msg := sender.TemplateMessage{
		To:           to,
		TemplateName: name,
		LanguageCode: d.Language,
		BodyParams:   TemplateParams(kind, c, r),
		MediaURL:     c.ImageURL,
		DedupeKey:    DedupeKey(c.ID, r.ID, kind, round),
	}
	if interactive {
		msg.Buttons = ResponseButtons(c.ID)
	}

	externalID, err := d.Sender.Send(ctx, msg)
	if err != nil {
		reason := &appErrors.ChannelSendError{RecipientID: r.ID, Template: name, Err: err}
		log.Warn("channel send failed", zap.String("template", name), zap.Error(err))
		d.Metrics.ObserveDispatch(string(kind), "channel_failure")
		return Outcome{Status: OutcomeFailed, Reason: reason}, nil
	}

	rec := &model.MessageRecord{
		CampaignID:        c.ID,
		RecipientID:       r.ID,
		Kind:              kind,
		Round:             round,
		Response:          model.ResponseAwaiting,
		ExternalMessageID: externalID,
		CreatedAt:         d.now(),
	}
	// the message is already out; record it even if the pass is being cancelled
	if err := d.Records.Append(context.WithoutCancel(ctx), rec); err != nil {
		log.Error("message sent but not recorded, it may be resent next pass",
			zap.String("external_message_id", externalID), zap.Error(err))
		d.Metrics.ObserveDispatch(string(kind), "unrecorded")
		return Outcome{Status: OutcomeFailed, ExternalMessageID: externalID, Reason: err}, err
	}

	log.Info("message sent", zap.String("template", name), zap.String("external_message_id", externalID))
	d.Metrics.ObserveDispatch(string(kind), "sent")
	return Outcome{Status: OutcomeSent, ExternalMessageID: externalID, Record: rec}, nil
}

var _ RecipientDispatcher = (*Dispatcher)(nil)
