// Package app wires the configured store, sender, lease, queue and metrics
// into a ready Orchestrator for the server and worker binaries.
package app

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/unclebandit/autoinvite/internal/config"
	"github.com/unclebandit/autoinvite/internal/db"
	"github.com/unclebandit/autoinvite/internal/lease"
	"github.com/unclebandit/autoinvite/internal/logging"
	"github.com/unclebandit/autoinvite/internal/metrics"
	"github.com/unclebandit/autoinvite/internal/phone"
	"github.com/unclebandit/autoinvite/internal/queue"
	"github.com/unclebandit/autoinvite/internal/repository"
	"github.com/unclebandit/autoinvite/internal/sender"
	"github.com/unclebandit/autoinvite/internal/service"
)

type App struct {
	Config       config.Config
	Logger       *zap.Logger
	Metrics      *metrics.Metrics
	Campaigns    repository.CampaignRepositoryInterface
	Records      repository.MessageRecordRepositoryInterface
	Orchestrator *service.Orchestrator
	Queue        queue.Queue
	// Memory is set when STORE=memory.
	Memory *repository.MemoryStore

	closers []func() error
}

// Build connects every backing service named by cfg. The caller owns the
// returned App and must Close it.
func Build(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	log = logging.OrNop(log)
	a := &App{Config: cfg, Logger: log, Metrics: metrics.New()}
	built := false
	defer func() {
		if !built {
			a.Close()
		}
	}()

	var selectorStore repository.SelectorRepositoryInterface
	switch cfg.Store {
	case "memory":
		a.Memory = repository.NewMemoryStore()
		a.Campaigns, a.Records, selectorStore = a.Memory, a.Memory, a.Memory
		log.Warn("using in-memory store, nothing will persist")
	default:
		conn, err := db.Open(ctx, cfg.DSN(), log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, conn.Close)
		a.Campaigns = &repository.CampaignRepository{DB: conn}
		a.Records = &repository.MessageRecordRepository{DB: conn}
		selectorStore = &repository.SelectorRepository{DB: conn}
	}

	snd, err := newSender(cfg)
	if err != nil {
		return nil, err
	}

	locker, err := a.newLocker(ctx)
	if err != nil {
		return nil, err
	}

	if err := a.openQueue(); err != nil {
		return nil, err
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	runner := &service.CampaignRunner{
		Selectors: &service.Selectors{
			Store:     selectorStore,
			Location:  loc,
			GraceDays: cfg.DateGateGrace,
		},
		Dispatcher: &service.Dispatcher{
			Sender:    snd,
			Records:   a.Records,
			Phones:    phone.NewNormalizer(cfg.DefaultRegion),
			Templates: service.DefaultTemplates(),
			Language:  cfg.WhatsApp.Language,
			Metrics:   a.Metrics,
			Logger:    log,
		},
		Limiter: rate.NewLimiter(rate.Every(cfg.SendInterval), cfg.SendBurst),
		Logger:  log,
	}

	a.Orchestrator = &service.Orchestrator{
		Campaigns: a.Campaigns,
		Runner:    runner,
		Leases:    locker,
		LeaseTTL:  cfg.LeaseTTL,
		Reports:   a.Queue,
		Metrics:   a.Metrics,
		Logger:    log,
	}
	built = true
	return a, nil
}

func newSender(cfg config.Config) (sender.TemplateSender, error) {
	if cfg.Sender == "mock" {
		return &sender.MockSender{SuccessRate: cfg.MockSuccessRate}, nil
	}
	wa := cfg.WhatsApp
	if wa.PhoneNumberID == "" || wa.Token == "" {
		return nil, fmt.Errorf("WHATSAPP_PHONE_NUMBER_ID and WHATSAPP_TOKEN are required for SENDER=whatsapp")
	}
	return sender.NewWhatsAppSender(wa.BaseURL, wa.PhoneNumberID, wa.Token, wa.Timeout), nil
}

func (a *App) newLocker(ctx context.Context) (lease.Locker, error) {
	if a.Config.RedisAddr == "" {
		return lease.NewMemoryLocker(), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     a.Config.RedisAddr,
		Password: a.Config.RedisPassword,
	})
	a.closers = append(a.closers, client.Close)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis at %s: %w", a.Config.RedisAddr, err)
	}
	a.Logger.Info("campaign leases held in redis", zap.String("addr", a.Config.RedisAddr))
	return lease.NewRedisLocker(client), nil
}

func (a *App) openQueue() error {
	if a.Config.AMQPURL == "" {
		mem := queue.NewInMemoryQueue(a.Logger)
		// nothing consumes reports in-process; log them instead
		if err := mem.Subscribe(queue.TopicPassCompleted, a.logReport); err != nil {
			return err
		}
		a.closers = append(a.closers, func() error {
			mem.Wait()
			return nil
		})
		a.Queue = mem
		return nil
	}
	q, err := queue.DialAMQP(a.Config.AMQPURL, map[string]string{
		queue.TopicRunRequested:  a.Config.RunQueue,
		queue.TopicPassCompleted: a.Config.ReportQueue,
	}, a.Logger)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, q.Close)
	a.Queue = q
	return nil
}

func (a *App) logReport(payload any) error {
	var res service.PassResult
	if err := queue.Decode(payload, &res); err != nil {
		return err
	}
	a.Logger.Debug("pass report", zap.String("pass_id", res.PassID), zap.Int("campaigns", len(res.Campaigns)))
	return nil
}

// FeedRunRequests forwards queued run requests into jobs. A request that
// arrives while another is already waiting is dropped: the waiting pass will
// cover it.
func (a *App) FeedRunRequests(jobs chan<- queue.RunRequest) error {
	return a.Queue.Subscribe(queue.TopicRunRequested, func(payload any) error {
		var req queue.RunRequest
		if err := queue.Decode(payload, &req); err != nil {
			a.Logger.Warn("discarding malformed run request", zap.Error(err))
			return nil
		}
		select {
		case jobs <- req:
		default:
			a.Logger.Info("pass already queued, run request coalesced", zap.String("requested_by", req.RequestedBy))
		}
		return nil
	})
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}
