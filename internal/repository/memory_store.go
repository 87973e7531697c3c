package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	appErrors "github.com/unclebandit/autoinvite/internal/errors"
	"github.com/unclebandit/autoinvite/internal/model"
)

// MemoryStore keeps campaigns, recipients and the message log in memory with
// the same selection semantics as the Postgres repositories. It backs tests
// and STORE=memory dry runs.
type MemoryStore struct {
	mu         sync.Mutex
	campaigns  map[int]*model.Campaign
	recipients map[int]model.Recipient
	links      map[int]map[int]bool
	records    []model.MessageRecord
	nextID     int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		campaigns:  map[int]*model.Campaign{},
		recipients: map[int]model.Recipient{},
		links:      map[int]map[int]bool{},
	}
}

// AddCampaign stores a copy of c, replacing any campaign with the same ID.
func (m *MemoryStore) AddCampaign(c *model.Campaign) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.campaigns[c.ID] = &cp
}

// AddRecipient stores r and links it to the given campaigns.
func (m *MemoryStore) AddRecipient(r model.Recipient, campaignIDs ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recipients[r.ID] = r
	for _, id := range campaignIDs {
		if m.links[id] == nil {
			m.links[id] = map[int]bool{}
		}
		m.links[id][r.ID] = true
	}
}

// Records returns a copy of the campaign's log in insertion order.
func (m *MemoryStore) Records(campaignID int) []model.MessageRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.MessageRecord{}
	for _, rec := range m.records {
		if rec.CampaignID == campaignID {
			out = append(out, rec)
		}
	}
	return out
}

// SetResponse records an RSVP against an existing record, the way the
// inbound webhook does in production.
func (m *MemoryStore) SetResponse(recordID int, response model.ResponseState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].ID == recordID {
			m.records[i].Response = response
			return nil
		}
	}
	return fmt.Errorf("message record %d not found", recordID)
}

func (m *MemoryStore) ListAutoInviteCampaigns(ctx context.Context) ([]*model.Campaign, error) {
	if err := ctx.Err(); err != nil {
		return nil, appErrors.NewStoreError("list auto-invite campaigns", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []*model.Campaign{}
	for _, c := range m.campaigns {
		if c.AutoInvite.Enabled {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].AutoInvite.StartedAt, out[j].AutoInvite.StartedAt
		switch {
		case a == nil && b == nil:
		case a == nil:
			return false
		case b == nil:
			return true
		case !a.Equal(*b):
			return a.Before(*b)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) GetByID(ctx context.Context, id int) (*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryStore) Append(ctx context.Context, rec *model.MessageRecord) error {
	if err := ctx.Err(); err != nil {
		return appErrors.NewStoreError("append message record", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.Response == "" {
		rec.Response = model.ResponseAwaiting
	}
	m.nextID++
	rec.ID = m.nextID
	m.records = append(m.records, *rec)
	return nil
}

func (m *MemoryStore) GetCampaignStats(ctx context.Context, campaignID int) (*model.RecordStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := newRecordStats(campaignID)
	for _, rec := range m.records {
		if rec.CampaignID == campaignID {
			stats.add(rec.Kind, rec.Response, rec.Round, 1)
		}
	}
	return stats.RecordStats, nil
}

func (m *MemoryStore) PendingInvitations(ctx context.Context, campaignID int) ([]model.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, appErrors.NewStoreError("select pending invitations", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []model.Candidate{}
	for _, r := range m.linkedLocked(campaignID) {
		if !m.hasKindLocked(campaignID, r.ID, model.KindInvitation) {
			out = append(out, model.Candidate{Recipient: r, Round: 1})
		}
	}
	return out, nil
}

func (m *MemoryStore) DueReminders(ctx context.Context, campaignID int, sentBefore time.Time, roundLimit int) ([]model.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, appErrors.NewStoreError("select due reminders", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []model.Candidate{}
	for _, r := range m.linkedLocked(campaignID) {
		latest, ok := m.latestInvitationLocked(campaignID, r.ID)
		if !ok || !latest.Response.Pending() {
			continue
		}
		if !latest.CreatedAt.Before(sentBefore) || latest.Round >= roundLimit {
			continue
		}
		if m.everUndecidedLocked(campaignID, r.ID) {
			continue
		}
		sent := latest.CreatedAt
		out = append(out, model.Candidate{Recipient: r, Round: latest.Round + 1, LastSentAt: &sent})
	}
	return out, nil
}

func (m *MemoryStore) AttendingWithout(ctx context.Context, campaignID int, kind model.MessageKind) ([]model.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, appErrors.NewStoreError("select attending without "+string(kind), err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []model.Candidate{}
	for _, r := range m.linkedLocked(campaignID) {
		latest, ok := m.latestInvitationLocked(campaignID, r.ID)
		if !ok || latest.Response != model.ResponseAttending {
			continue
		}
		if m.hasKindLocked(campaignID, r.ID, kind) {
			continue
		}
		out = append(out, model.Candidate{Recipient: r, Round: 1})
	}
	return out, nil
}

// linkedLocked returns the campaign's recipients that have a phone, by id.
func (m *MemoryStore) linkedLocked(campaignID int) []model.Recipient {
	out := []model.Recipient{}
	for id := range m.links[campaignID] {
		if r, ok := m.recipients[id]; ok && r.HasPhone() {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MemoryStore) hasKindLocked(campaignID, recipientID int, kind model.MessageKind) bool {
	for _, rec := range m.records {
		if rec.CampaignID == campaignID && rec.RecipientID == recipientID && rec.Kind == kind {
			return true
		}
	}
	return false
}

func (m *MemoryStore) latestInvitationLocked(campaignID, recipientID int) (model.MessageRecord, bool) {
	var latest model.MessageRecord
	found := false
	for _, rec := range m.records {
		if rec.CampaignID != campaignID || rec.RecipientID != recipientID || rec.Kind != model.KindInvitation {
			continue
		}
		if !found || rec.Round > latest.Round || (rec.Round == latest.Round && rec.ID > latest.ID) {
			latest = rec
			found = true
		}
	}
	return latest, found
}

func (m *MemoryStore) everUndecidedLocked(campaignID, recipientID int) bool {
	for _, rec := range m.records {
		if rec.CampaignID == campaignID && rec.RecipientID == recipientID && rec.Response == model.ResponseUndecided {
			return true
		}
	}
	return false
}

var (
	_ CampaignRepositoryInterface      = (*MemoryStore)(nil)
	_ MessageRecordRepositoryInterface = (*MemoryStore)(nil)
	_ SelectorRepositoryInterface      = (*MemoryStore)(nil)
)
