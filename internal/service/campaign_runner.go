// internal/service/campaign_runner.go
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	appErrors "github.com/unclebandit/autoinvite/internal/errors"
	"github.com/unclebandit/autoinvite/internal/logging"
	"github.com/unclebandit/autoinvite/internal/model"
)

const (
	CategoryInitialInvitation = "initial_invitation"
	CategoryReminder          = "reminder"
	CategoryThankYou          = "thank_you"
	CategoryMorningReminder   = "morning_reminder"
)

// CategoryTally counts one category's dispatches within a campaign.
type CategoryTally struct {
	Category   string `json:"category"`
	Candidates int    `json:"candidates"`
	Sent       int    `json:"sent"`
	Failed     int    `json:"failed"`
}

// Tally is the per-campaign result handed back to the orchestrator.
type Tally struct {
	Sent       int             `json:"sent"`
	Failed     int             `json:"failed"`
	Categories []CategoryTally `json:"categories,omitempty"`
}

// Heartbeat renews whatever claim the caller holds on a campaign. An error
// stops the campaign before the next send.
type Heartbeat func(ctx context.Context) error

// CampaignRunner processes one campaign's four categories in order.
type CampaignRunner struct {
	Selectors  *Selectors
	Dispatcher RecipientDispatcher
	// Limiter throttles every dispatch. It is shared across campaigns so the
	// channel sees one global rate. Nil disables throttling.
	Limiter *rate.Limiter
	Logger  *zap.Logger
}

type category struct {
	name    string
	kind    model.MessageKind
	enabled bool
	selectF func(ctx context.Context) ([]model.Candidate, error)
}

func (r *CampaignRunner) categories(c *model.Campaign) []category {
	cfg := c.AutoInvite
	return []category{
		{
			name: CategoryInitialInvitation, kind: model.KindInvitation, enabled: true,
			selectF: func(ctx context.Context) ([]model.Candidate, error) {
				return r.Selectors.InitialInvitations(ctx, c.ID)
			},
		},
		{
			name: CategoryReminder, kind: model.KindInvitation, enabled: cfg.ReminderCount > 0,
			selectF: func(ctx context.Context) ([]model.Candidate, error) {
				return r.Selectors.Reminders(ctx, c.ID, cfg.MessageIntervalDays, cfg.ReminderCount)
			},
		},
		{
			name: CategoryThankYou, kind: model.KindThankYou, enabled: cfg.SendThankYou,
			selectF: func(ctx context.Context) ([]model.Candidate, error) {
				return r.Selectors.ThankYou(ctx, c.ID, c.EventDate)
			},
		},
		{
			name: CategoryMorningReminder, kind: model.KindMorningReminder, enabled: cfg.SendMorningReminder,
			selectF: func(ctx context.Context) ([]model.Candidate, error) {
				return r.Selectors.MorningReminders(ctx, c.ID, c.EventDate)
			},
		},
	}
}

// Run dispatches every due message for c. A failed recipient never stops the
// loop; a selector, record-write or heartbeat error ends the campaign and is
// returned with the tally so far. beat may be nil.
func (r *CampaignRunner) Run(ctx context.Context, c *model.Campaign, beat Heartbeat) (Tally, error) {
	log := logging.OrNop(r.Logger).With(zap.Int("campaign_id", c.ID))
	tally := Tally{}

	if err := c.AutoInvite.Validate(); err != nil {
		return tally, fmt.Errorf("%w: %v", appErrors.ErrInvalidConfig, err)
	}

	for _, cat := range r.categories(c) {
		if !cat.enabled {
			continue
		}
		candidates, err := cat.selectF(ctx)
		if err != nil {
			return tally, fmt.Errorf("select %s: %w", cat.name, err)
		}

		ct := CategoryTally{Category: cat.name, Candidates: len(candidates)}
		for _, cand := range candidates {
			if err := ctx.Err(); err != nil {
				tally.Categories = append(tally.Categories, ct)
				return tally, fmt.Errorf("%s interrupted: %w", cat.name, err)
			}
			if r.Limiter != nil {
				if err := r.Limiter.Wait(ctx); err != nil {
					tally.Categories = append(tally.Categories, ct)
					return tally, fmt.Errorf("%s: %w", cat.name, err)
				}
			}
			if beat != nil {
				if err := beat(ctx); err != nil {
					tally.Categories = append(tally.Categories, ct)
					return tally, fmt.Errorf("renew lease before %s to recipient %d: %w", cat.name, cand.Recipient.ID, err)
				}
			}

			out, err := r.Dispatcher.Dispatch(ctx, cand.Recipient, c, cand.Round, cat.kind)
			if err != nil {
				tally.Categories = append(tally.Categories, ct)
				return tally, fmt.Errorf("dispatch %s to recipient %d: %w", cat.name, cand.Recipient.ID, err)
			}
			if out.Sent() {
				ct.Sent++
				tally.Sent++
			} else {
				ct.Failed++
				tally.Failed++
			}
		}

		if ct.Candidates > 0 {
			log.Info("category processed",
				zap.String("category", cat.name),
				zap.Int("candidates", ct.Candidates),
				zap.Int("sent", ct.Sent),
				zap.Int("failed", ct.Failed))
		}
		tally.Categories = append(tally.Categories, ct)
	}
	return tally, nil
}
