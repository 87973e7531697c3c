// internal/handler/stats_handler.go
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/autoinvite/internal/errors"
	"github.com/unclebandit/autoinvite/internal/logging"
	"github.com/unclebandit/autoinvite/internal/repository"
)

// StatsHandler serves the auto-invite state of a single campaign
type StatsHandler struct {
	Campaigns repository.CampaignRepositoryInterface
	Records   repository.MessageRecordRepositoryInterface
	Logger    *zap.Logger
}

// NewStatsHandler creates a StatsHandler over the given repositories
func NewStatsHandler(campaigns repository.CampaignRepositoryInterface, records repository.MessageRecordRepositoryInterface, log *zap.Logger) *StatsHandler {
	return &StatsHandler{Campaigns: campaigns, Records: records, Logger: logging.OrNop(log)}
}

// GetCampaignStats returns the campaign's auto-invite settings together with
// record counts by kind, response and invitation round.
func (h *StatsHandler) GetCampaignStats(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.Atoi(idStr)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	campaign, err := h.Campaigns.GetByID(r.Context(), id)
	var notFound *appErrors.ErrCampaignNotFound
	if errors.As(err, &notFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		logging.OrNop(h.Logger).Error("fetch campaign failed", zap.Int("campaign_id", id), zap.Error(err))
		http.Error(w, "failed to fetch campaign", http.StatusInternalServerError)
		return
	}

	stats, err := h.Records.GetCampaignStats(r.Context(), id)
	if err != nil {
		logging.OrNop(h.Logger).Error("fetch campaign stats failed", zap.Int("campaign_id", id), zap.Error(err))
		http.Error(w, "failed to fetch campaign stats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"campaign_id": campaign.ID,
		"name":        campaign.Name,
		"event_date":  campaign.EventDate.Format("2006-01-02"),
		"auto_invite": campaign.AutoInvite,
		"stats":       stats,
	})
}
