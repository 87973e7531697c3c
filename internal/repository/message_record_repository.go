package repository

import (
	"context"
	"database/sql"
	"time"

	appErrors "github.com/unclebandit/autoinvite/internal/errors"
	"github.com/unclebandit/autoinvite/internal/model"
)

type MessageRecordRepositoryInterface interface {
	// Append inserts one record and fills in its ID.
	Append(ctx context.Context, rec *model.MessageRecord) error
	GetCampaignStats(ctx context.Context, campaignID int) (*model.RecordStats, error)
}

type MessageRecordRepository struct {
	DB *sql.DB
}

// Append never updates an existing row; the table is an append-only log.
func (r *MessageRecordRepository) Append(ctx context.Context, rec *model.MessageRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.Response == "" {
		rec.Response = model.ResponseAwaiting
	}

	query := `
        INSERT INTO message_records
        (campaign_id, recipient_id, kind, round, response, external_message_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id
    `
	err := r.DB.QueryRowContext(ctx, query,
		rec.CampaignID,
		rec.RecipientID,
		string(rec.Kind),
		rec.Round,
		string(rec.Response),
		rec.ExternalMessageID,
		rec.CreatedAt,
	).Scan(&rec.ID)
	if err != nil {
		return appErrors.NewStoreError("append message record", err)
	}
	return nil
}

func (r *MessageRecordRepository) GetCampaignStats(ctx context.Context, campaignID int) (*model.RecordStats, error) {
	query := `
        SELECT kind, response, round, COUNT(*)
        FROM message_records
        WHERE campaign_id = $1
        GROUP BY kind, response, round
    `
	rows, err := r.DB.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, appErrors.NewStoreError("campaign stats", err)
	}
	defer rows.Close()

	stats := newRecordStats(campaignID)
	for rows.Next() {
		var kind, response string
		var round, count int
		if err := rows.Scan(&kind, &response, &round, &count); err != nil {
			return nil, appErrors.NewStoreError("scan campaign stats", err)
		}
		stats.add(model.MessageKind(kind), model.ResponseState(response), round, count)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.NewStoreError("campaign stats", err)
	}
	return stats.RecordStats, nil
}

type statsBuilder struct {
	*model.RecordStats
}

func newRecordStats(campaignID int) statsBuilder {
	return statsBuilder{&model.RecordStats{
		CampaignID: campaignID,
		ByKind:     map[model.MessageKind]int{},
		ByResponse: map[model.ResponseState]int{},
		ByRound:    map[int]int{},
	}}
}

func (s statsBuilder) add(kind model.MessageKind, response model.ResponseState, round, count int) {
	s.Total += count
	s.ByKind[kind] += count
	s.ByResponse[response] += count
	if kind == model.KindInvitation {
		s.ByRound[round] += count
	}
}

var _ MessageRecordRepositoryInterface = (*MessageRecordRepository)(nil)
