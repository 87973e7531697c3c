package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/unclebandit/autoinvite/internal/app"
	"github.com/unclebandit/autoinvite/internal/config"
	"github.com/unclebandit/autoinvite/internal/logging"
	"github.com/unclebandit/autoinvite/internal/queue"
	"github.com/unclebandit/autoinvite/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the daily schedule and consume run requests until stopped",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var runOnceCmd = &cobra.Command{
	Use:   "run-once",
	Short: "Run a single pass and print its result as JSON",
	Args:  cobra.NoArgs,
	RunE:  runOnce,
}

// setup loads configuration and builds the app for a command.
func setup(ctx context.Context) (*app.App, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Sync()
		return nil, nil, err
	}
	return a, log, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, log, err := setup(ctx)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer a.Close()

	hour, minute, err := a.Config.ScheduleClock()
	if err != nil {
		return err
	}
	loc, err := a.Config.Location()
	if err != nil {
		return err
	}

	jobs := make(chan queue.RunRequest, 1)
	if err := a.FeedRunRequests(jobs); err != nil {
		return fmt.Errorf("subscribe to run requests: %w", err)
	}

	go service.RunDaily(ctx, hour, minute, loc, func() {
		select {
		case jobs <- queue.RunRequest{RequestedBy: "scheduler", RequestedAt: time.Now().UTC()}:
		default:
			log.Info("scheduled pass skipped, one is already queued")
		}
	})

	log.Info("worker running",
		zap.String("schedule_at", a.Config.ScheduleAt),
		zap.String("timezone", loc.String()),
		zap.Time("next_run", service.NextRun(time.Now(), hour, minute, loc)))

	service.NewWorker(a.Orchestrator, jobs, log).Start(ctx)
	log.Info("worker stopped")
	return nil
}

func runOnce(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, log, err := setup(ctx)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer a.Close()

	res, err := a.Orchestrator.RunPass(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
