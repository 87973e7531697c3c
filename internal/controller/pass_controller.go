// internal/controller/pass_controller.go
package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/autoinvite/internal/errors"
	"github.com/unclebandit/autoinvite/internal/logging"
	"github.com/unclebandit/autoinvite/internal/queue"
	"github.com/unclebandit/autoinvite/internal/service"
)

// PassController lets an operator trigger a pass outside the daily schedule.
type PassController struct {
	Runner service.PassRunner
	// Queue is used for ?async=true; without it only synchronous runs work.
	Queue  queue.Queue
	Logger *zap.Logger
}

func (c *PassController) RunPass(w http.ResponseWriter, r *http.Request) {
	log := logging.OrNop(c.Logger)
	async, _ := strconv.ParseBool(r.URL.Query().Get("async"))

	if async {
		if c.Queue == nil {
			http.Error(w, "async runs are not configured", http.StatusServiceUnavailable)
			return
		}
		req := queue.RunRequest{RequestedBy: "admin", RequestedAt: time.Now().UTC()}
		if err := c.Queue.Publish(queue.TopicRunRequested, req); err != nil {
			log.Error("could not queue run request", zap.Error(err))
			http.Error(w, "failed to queue run request", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":       "queued",
			"requested_at": req.RequestedAt,
		})
		return
	}

	// a client that hangs up does not stop the pass; use ?async=true for long runs
	result, err := c.Runner.RunPass(context.WithoutCancel(r.Context()))
	if errors.Is(err, appErrors.ErrPassInProgress) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		log.Error("pass failed", zap.Error(err))
		http.Error(w, "pass failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
