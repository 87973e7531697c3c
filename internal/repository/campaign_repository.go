package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	appErrors "github.com/unclebandit/autoinvite/internal/errors"
	"github.com/unclebandit/autoinvite/internal/model"
)

type CampaignRepositoryInterface interface {
	// ListAutoInviteCampaigns returns enabled campaigns, oldest activation first.
	ListAutoInviteCampaigns(ctx context.Context) ([]*model.Campaign, error)
	GetByID(ctx context.Context, id int) (*model.Campaign, error)
}

type CampaignRepository struct {
	DB *sql.DB
}

const campaignColumns = `
    id, owner_id, name, event_date, event_time, venue, location, image_url,
    celebrator_one, celebrator_two,
    auto_invite_enabled, auto_invite_started_at, reminder_count,
    message_interval_days, send_thank_you, send_morning_reminder`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (*model.Campaign, error) {
	var c model.Campaign
	var startedAt sql.NullTime
	err := row.Scan(
		&c.ID, &c.OwnerID, &c.Name, &c.EventDate, &c.EventTime, &c.Venue, &c.Location, &c.ImageURL,
		&c.CelebratorOne, &c.CelebratorTwo,
		&c.AutoInvite.Enabled, &startedAt, &c.AutoInvite.ReminderCount,
		&c.AutoInvite.MessageIntervalDays, &c.AutoInvite.SendThankYou, &c.AutoInvite.SendMorningReminder,
	)
	if err != nil {
		return nil, err
	}
	if startedAt.Valid {
		t := startedAt.Time
		c.AutoInvite.StartedAt = &t
	}
	// DATE columns come back as midnight UTC; keep only the calendar date
	c.EventDate = time.Date(c.EventDate.Year(), c.EventDate.Month(), c.EventDate.Day(), 0, 0, 0, 0, time.UTC)
	return &c, nil
}

func (r *CampaignRepository) ListAutoInviteCampaigns(ctx context.Context) ([]*model.Campaign, error) {
	query := `SELECT` + campaignColumns + `
        FROM events
        WHERE auto_invite_enabled
        ORDER BY auto_invite_started_at ASC NULLS LAST, id ASC`

	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, appErrors.NewStoreError("list auto-invite campaigns", err)
	}
	defer rows.Close()

	campaigns := []*model.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, appErrors.NewStoreError("scan campaign", err)
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.NewStoreError("list auto-invite campaigns", err)
	}
	return campaigns, nil
}

func (r *CampaignRepository) GetByID(ctx context.Context, id int) (*model.Campaign, error) {
	query := `SELECT` + campaignColumns + ` FROM events WHERE id=$1`
	c, err := scanCampaign(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, appErrors.NewStoreError("get campaign", err)
	}
	return c, nil
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
