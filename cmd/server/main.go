// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/unclebandit/autoinvite/internal/app"
	"github.com/unclebandit/autoinvite/internal/config"
	"github.com/unclebandit/autoinvite/internal/controller"
	"github.com/unclebandit/autoinvite/internal/handler"
	"github.com/unclebandit/autoinvite/internal/logging"
	"github.com/unclebandit/autoinvite/internal/queue"
	"github.com/unclebandit/autoinvite/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("invalid configuration", zap.Error(err))
	}
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		zap.NewExample().Fatal("logger setup failed", zap.Error(err))
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal("startup failed", zap.Error(err))
	}
	defer a.Close()

	// Without a broker nobody else consumes run requests, so run them here.
	if cfg.AMQPURL == "" {
		jobs := make(chan queue.RunRequest, 1)
		if err := a.FeedRunRequests(jobs); err != nil {
			log.Fatal("subscribe to run requests failed", zap.Error(err))
		}
		go service.NewWorker(a.Orchestrator, jobs, log).Start(ctx)
	}

	passController := &controller.PassController{
		Runner: a.Orchestrator,
		Queue:  a.Queue,
		Logger: log,
	}
	statsHandler := handler.NewStatsHandler(a.Campaigns, a.Records, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/auto-invite/passes", passController.RunPass)
	r.Get("/campaigns/{id}/auto-invite/stats", statsHandler.GetCampaignStats)
	r.Method(http.MethodGet, "/metrics", a.Metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("server running", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.Store))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server stopped", zap.Error(err))
	}
}
