// internal/service/orchestrator.go
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/autoinvite/internal/errors"
	"github.com/unclebandit/autoinvite/internal/lease"
	"github.com/unclebandit/autoinvite/internal/logging"
	"github.com/unclebandit/autoinvite/internal/metrics"
	"github.com/unclebandit/autoinvite/internal/model"
	"github.com/unclebandit/autoinvite/internal/queue"
	"github.com/unclebandit/autoinvite/internal/repository"
)

// CampaignProcessor runs one campaign; *CampaignRunner is the production one.
type CampaignProcessor interface {
	Run(ctx context.Context, c *model.Campaign, beat Heartbeat) (Tally, error)
}

// CampaignResult summarises one campaign within a pass.
type CampaignResult struct {
	CampaignID int    `json:"campaign_id"`
	Sent       int    `json:"sent"`
	Failed     int    `json:"failed"`
	Skipped    bool   `json:"skipped,omitempty"`
	Error      string `json:"error,omitempty"`
}

// PassResult is the aggregate of one pass over all active campaigns.
type PassResult struct {
	PassID             string           `json:"pass_id"`
	StartedAt          time.Time        `json:"started_at"`
	FinishedAt         time.Time        `json:"finished_at"`
	ProcessedCampaigns int              `json:"processed_campaigns"`
	Sent               int              `json:"sent"`
	Failed             int              `json:"failed"`
	Skipped            int              `json:"skipped"`
	Campaigns          []CampaignResult `json:"campaigns"`
}

// Orchestrator runs passes. At most one pass runs per Orchestrator at a
// time; Leases extends the exclusion to other processes per campaign.
type Orchestrator struct {
	Campaigns repository.CampaignRepositoryInterface
	Runner    CampaignProcessor
	Leases    lease.Locker
	LeaseTTL  time.Duration
	Reports   queue.Queue
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
	Now       func() time.Time

	running sync.Mutex
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// RunPass processes every enabled campaign, oldest activation first. Campaign
// failures are counted, never returned; the error return covers only a pass
// that could not start.
func (o *Orchestrator) RunPass(ctx context.Context) (*PassResult, error) {
	if !o.running.TryLock() {
		return nil, appErrors.ErrPassInProgress
	}
	defer o.running.Unlock()

	log := logging.OrNop(o.Logger)
	result := &PassResult{
		PassID:    uuid.NewString(),
		StartedAt: o.now(),
		Campaigns: []CampaignResult{},
	}
	log = log.With(zap.String("pass_id", result.PassID))

	campaigns, err := o.Campaigns.ListAutoInviteCampaigns(ctx)
	if err != nil {
		return nil, fmt.Errorf("load auto-invite campaigns: %w", err)
	}
	log.Info("pass started", zap.Int("campaigns", len(campaigns)))

	for i, c := range campaigns {
		if ctx.Err() != nil {
			log.Warn("pass cancelled", zap.Int("remaining_campaigns", len(campaigns)-i))
			break
		}
		cr := o.runCampaign(ctx, log, c)
		result.Campaigns = append(result.Campaigns, cr)
		if cr.Skipped {
			result.Skipped++
			continue
		}
		result.ProcessedCampaigns++
		result.Sent += cr.Sent
		result.Failed += cr.Failed
	}

	result.FinishedAt = o.now()
	o.Metrics.ObservePass(result.StartedAt, result.FinishedAt)
	log.Info("pass finished",
		zap.Int("processed_campaigns", result.ProcessedCampaigns),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
		zap.Duration("took", result.FinishedAt.Sub(result.StartedAt)))

	if o.Reports != nil {
		if err := o.Reports.Publish(queue.TopicPassCompleted, result); err != nil {
			log.Warn("could not publish pass report", zap.Error(err))
		}
	}
	return result, nil
}

func (o *Orchestrator) runCampaign(ctx context.Context, log *zap.Logger, c *model.Campaign) CampaignResult {
	cr := CampaignResult{CampaignID: c.ID}
	log = log.With(zap.Int("campaign_id", c.ID))

	var beat Heartbeat
	if o.Leases != nil {
		l, ok, err := o.Leases.Acquire(ctx, c.ID, o.LeaseTTL)
		if err != nil {
			cr.Failed = 1
			cr.Error = (&appErrors.CampaignError{CampaignID: c.ID, Err: err}).Error()
			log.Error("could not acquire campaign lease", zap.Error(err))
			o.Metrics.ObserveCampaign("failed")
			return cr
		}
		if !ok {
			cr.Skipped = true
			log.Info("campaign leased by another pass, skipping")
			o.Metrics.ObserveCampaign("skipped")
			return cr
		}
		defer func() {
			if err := o.Leases.Release(context.WithoutCancel(ctx), l); err != nil {
				log.Warn("could not release campaign lease", zap.Error(err))
			}
		}()
		// renewed before every send; a lost lease means another instance may
		// already be selecting the same recipients
		beat = func(ctx context.Context) error {
			next, err := o.Leases.Extend(ctx, l, o.LeaseTTL)
			if err != nil {
				return err
			}
			l = next
			return nil
		}
	}

	tally, err := o.safeRun(ctx, c, beat)
	cr.Sent = tally.Sent
	cr.Failed = tally.Failed
	if err != nil {
		cr.Failed++
		cr.Error = err.Error()
		log.Error("campaign failed", zap.Int("sent_before_failure", tally.Sent), zap.Error(err))
		o.Metrics.ObserveCampaign("failed")
		return cr
	}
	o.Metrics.ObserveCampaign("ok")
	return cr
}

// safeRun converts a panic inside the runner into a CampaignError.
func (o *Orchestrator) safeRun(ctx context.Context, c *model.Campaign, beat Heartbeat) (tally Tally, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &appErrors.CampaignError{CampaignID: c.ID, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	tally, err = o.Runner.Run(ctx, c, beat)
	if err != nil {
		err = &appErrors.CampaignError{CampaignID: c.ID, Err: err}
	}
	return tally, err
}
