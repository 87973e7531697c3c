package repository

import (
	"context"
	"database/sql"
	"time"

	appErrors "github.com/unclebandit/autoinvite/internal/errors"
	"github.com/unclebandit/autoinvite/internal/model"
)

// SelectorRepositoryInterface holds the eligibility queries. Every query is
// read-only, excludes recipients without a phone number and returns
// candidates in recipient id order.
type SelectorRepositoryInterface interface {
	// PendingInvitations returns linked recipients with no invitation record
	// at any round.
	PendingInvitations(ctx context.Context, campaignID int) ([]model.Candidate, error)

	// DueReminders returns recipients whose highest-round invitation record
	// is still pending, was created before sentBefore and has a round below
	// roundLimit. Recipients who ever answered undecided are excluded.
	// Candidate.Round is the round to send next.
	DueReminders(ctx context.Context, campaignID int, sentBefore time.Time, roundLimit int) ([]model.Candidate, error)

	// AttendingWithout returns recipients whose highest-round invitation
	// record says attending and who have no record of the given kind.
	AttendingWithout(ctx context.Context, campaignID int, kind model.MessageKind) ([]model.Candidate, error)
}

type SelectorRepository struct {
	DB *sql.DB
}

// latestInvitation ranks each recipient's invitation records by round.
// Ties on round fall back to id, never to created_at.
const latestInvitation = `
    WITH ranked AS (
        SELECT m.recipient_id, m.round, m.response, m.created_at,
               ROW_NUMBER() OVER (PARTITION BY m.recipient_id ORDER BY m.round DESC, m.id DESC) AS rn
        FROM message_records m
        WHERE m.campaign_id = $1 AND m.kind = 'invitation'
    )`

const hasPhone = `COALESCE(TRIM(r.phone), '') <> ''`

func (s *SelectorRepository) PendingInvitations(ctx context.Context, campaignID int) ([]model.Candidate, error) {
	query := `
        SELECT r.id, r.name, r.dedup_key, COALESCE(r.phone, ''), r.owner_tag
        FROM campaign_recipients cr
        JOIN recipients r ON r.id = cr.recipient_id
        WHERE cr.campaign_id = $1
          AND ` + hasPhone + `
          AND NOT EXISTS (
              SELECT 1 FROM message_records m
              WHERE m.campaign_id = cr.campaign_id
                AND m.recipient_id = r.id
                AND m.kind = 'invitation'
          )
        ORDER BY r.id
    `
	rows, err := s.DB.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, appErrors.NewStoreError("select pending invitations", err)
	}
	defer rows.Close()

	out := []model.Candidate{}
	for rows.Next() {
		var c model.Candidate
		if err := rows.Scan(&c.Recipient.ID, &c.Recipient.Name, &c.Recipient.DedupKey, &c.Recipient.Phone, &c.Recipient.OwnerTag); err != nil {
			return nil, appErrors.NewStoreError("scan pending invitation", err)
		}
		c.Round = 1
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.NewStoreError("select pending invitations", err)
	}
	return out, nil
}

func (s *SelectorRepository) DueReminders(ctx context.Context, campaignID int, sentBefore time.Time, roundLimit int) ([]model.Candidate, error) {
	query := latestInvitation + `
        SELECT r.id, r.name, r.dedup_key, COALESCE(r.phone, ''), r.owner_tag, ranked.round, ranked.created_at
        FROM ranked
        JOIN campaign_recipients cr ON cr.recipient_id = ranked.recipient_id AND cr.campaign_id = $1
        JOIN recipients r ON r.id = ranked.recipient_id
        WHERE ranked.rn = 1
          AND ranked.response IN ('awaiting_response', 'no_response')
          AND ranked.created_at < $2
          AND ranked.round < $3
          AND ` + hasPhone + `
          AND NOT EXISTS (
              SELECT 1 FROM message_records u
              WHERE u.campaign_id = $1
                AND u.recipient_id = r.id
                AND u.response = 'undecided'
          )
        ORDER BY r.id
    `
	rows, err := s.DB.QueryContext(ctx, query, campaignID, sentBefore, roundLimit)
	if err != nil {
		return nil, appErrors.NewStoreError("select due reminders", err)
	}
	defer rows.Close()

	out := []model.Candidate{}
	for rows.Next() {
		var c model.Candidate
		var highest int
		var lastSent time.Time
		if err := rows.Scan(&c.Recipient.ID, &c.Recipient.Name, &c.Recipient.DedupKey, &c.Recipient.Phone, &c.Recipient.OwnerTag, &highest, &lastSent); err != nil {
			return nil, appErrors.NewStoreError("scan due reminder", err)
		}
		c.Round = highest + 1
		c.LastSentAt = &lastSent
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.NewStoreError("select due reminders", err)
	}
	return out, nil
}

func (s *SelectorRepository) AttendingWithout(ctx context.Context, campaignID int, kind model.MessageKind) ([]model.Candidate, error) {
	query := latestInvitation + `
        SELECT r.id, r.name, r.dedup_key, COALESCE(r.phone, ''), r.owner_tag
        FROM ranked
        JOIN campaign_recipients cr ON cr.recipient_id = ranked.recipient_id AND cr.campaign_id = $1
        JOIN recipients r ON r.id = ranked.recipient_id
        WHERE ranked.rn = 1
          AND ranked.response = 'attending'
          AND ` + hasPhone + `
          AND NOT EXISTS (
              SELECT 1 FROM message_records m
              WHERE m.campaign_id = $1
                AND m.recipient_id = r.id
                AND m.kind = $2
          )
        ORDER BY r.id
    `
	rows, err := s.DB.QueryContext(ctx, query, campaignID, string(kind))
	if err != nil {
		return nil, appErrors.NewStoreError("select attending without "+string(kind), err)
	}
	defer rows.Close()

	out := []model.Candidate{}
	for rows.Next() {
		var c model.Candidate
		if err := rows.Scan(&c.Recipient.ID, &c.Recipient.Name, &c.Recipient.DedupKey, &c.Recipient.Phone, &c.Recipient.OwnerTag); err != nil {
			return nil, appErrors.NewStoreError("scan attending recipient", err)
		}
		c.Round = 1
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.NewStoreError("select attending without "+string(kind), err)
	}
	return out, nil
}

var _ SelectorRepositoryInterface = (*SelectorRepository)(nil)
