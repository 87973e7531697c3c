package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/autoinvite/internal/errors"
	"github.com/unclebandit/autoinvite/internal/logging"
	"github.com/unclebandit/autoinvite/internal/queue"
)

// PassRunner is what the worker drives; *Orchestrator implements it.
type PassRunner interface {
	RunPass(ctx context.Context) (*PassResult, error)
}

// Worker serialises pass requests coming from the scheduler and the queue.
type Worker struct {
	Runner  PassRunner
	JobChan <-chan queue.RunRequest
	// OnResult, when set, observes every finished request.
	OnResult func(req queue.RunRequest, res *PassResult, err error)
	Logger   *zap.Logger
}

// Constructor
func NewWorker(runner PassRunner, jobChan <-chan queue.RunRequest, log *zap.Logger) *Worker {
	return &Worker{
		Runner:  runner,
		JobChan: jobChan,
		Logger:  logging.OrNop(log),
	}
}

// Start processes requests until ctx is done or JobChan is closed.
func (w *Worker) Start(ctx context.Context) {
	log := logging.OrNop(w.Logger)
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-w.JobChan:
			if !ok {
				return
			}
			res, err := w.Runner.RunPass(ctx)
			switch {
			case errors.Is(err, appErrors.ErrPassInProgress):
				log.Info("pass already running, request dropped", zap.String("requested_by", req.RequestedBy))
			case err != nil:
				log.Error("pass failed to start", zap.String("requested_by", req.RequestedBy), zap.Error(err))
			default:
				log.Info("pass completed",
					zap.String("requested_by", req.RequestedBy),
					zap.String("pass_id", res.PassID),
					zap.Int("sent", res.Sent),
					zap.Int("failed", res.Failed))
			}
			if w.OnResult != nil {
				w.OnResult(req, res, err)
			}
		}
	}
}
