package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/autoinvite/internal/errors"
	"github.com/unclebandit/autoinvite/internal/model"
	"github.com/unclebandit/autoinvite/internal/repository"
)

func ptrTime(t time.Time) *time.Time { return &t }

func TestMemoryStoreListOrdersByActivation(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	store.AddCampaign(&model.Campaign{ID: 1, AutoInvite: model.AutoInvite{Enabled: true, StartedAt: ptrTime(base.Add(48 * time.Hour))}})
	store.AddCampaign(&model.Campaign{ID: 2, AutoInvite: model.AutoInvite{Enabled: true, StartedAt: ptrTime(base)}})
	store.AddCampaign(&model.Campaign{ID: 3, AutoInvite: model.AutoInvite{Enabled: false, StartedAt: ptrTime(base)}})
	store.AddCampaign(&model.Campaign{ID: 4, AutoInvite: model.AutoInvite{Enabled: true}})
	store.AddCampaign(&model.Campaign{ID: 5, AutoInvite: model.AutoInvite{Enabled: true, StartedAt: ptrTime(base)}})

	got, err := store.ListAutoInviteCampaigns(ctx)
	require.NoError(t, err)

	ids := []int{}
	for _, c := range got {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []int{2, 5, 1, 4}, ids)
}

func TestMemoryStoreGetByIDNotFound(t *testing.T) {
	store := repository.NewMemoryStore()
	_, err := store.GetByID(context.Background(), 42)

	var nf *appErrors.ErrCampaignNotFound
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, 42, nf.CampaignID)
}

func TestMemoryStoreAppendAndStats(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()

	recs := []*model.MessageRecord{
		{CampaignID: 1, RecipientID: 1, Kind: model.KindInvitation, Round: 1},
		{CampaignID: 1, RecipientID: 1, Kind: model.KindInvitation, Round: 2},
		{CampaignID: 1, RecipientID: 2, Kind: model.KindThankYou, Round: 1, Response: model.ResponseAttending},
		{CampaignID: 2, RecipientID: 1, Kind: model.KindInvitation, Round: 1},
	}
	for _, r := range recs {
		require.NoError(t, store.Append(ctx, r))
	}
	assert.Equal(t, 1, recs[0].ID)
	assert.Equal(t, 4, recs[3].ID)
	assert.Equal(t, model.ResponseAwaiting, recs[0].Response)

	stats, err := store.GetCampaignStats(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.ByKind[model.KindInvitation])
	assert.Equal(t, 1, stats.ByKind[model.KindThankYou])
	assert.Equal(t, 2, stats.ByResponse[model.ResponseAwaiting])
	assert.Equal(t, map[int]int{1: 1, 2: 1}, stats.ByRound)
}

func TestMemoryStoreLatestRoundWinsOverTimestamp(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	store.AddRecipient(model.Recipient{ID: 7, Name: "Ana", Phone: "+15550000007"}, 1)

	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	// round 2 carries an older timestamp than round 1 (clock skew)
	require.NoError(t, store.Append(ctx, &model.MessageRecord{CampaignID: 1, RecipientID: 7, Kind: model.KindInvitation, Round: 1, CreatedAt: now.Add(-24 * time.Hour)}))
	require.NoError(t, store.Append(ctx, &model.MessageRecord{CampaignID: 1, RecipientID: 7, Kind: model.KindInvitation, Round: 2, CreatedAt: now.Add(-72 * time.Hour)}))

	got, err := store.DueReminders(ctx, 1, now.Add(-48*time.Hour), 4)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 3, got[0].Round)
	assert.True(t, got[0].LastSentAt.Equal(now.Add(-72*time.Hour)))
}

func TestMemoryStoreSetResponse(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	rec := &model.MessageRecord{CampaignID: 1, RecipientID: 1, Kind: model.KindInvitation, Round: 1}
	require.NoError(t, store.Append(ctx, rec))

	require.NoError(t, store.SetResponse(rec.ID, model.ResponseAttending))
	assert.Equal(t, model.ResponseAttending, store.Records(1)[0].Response)
	assert.Error(t, store.SetResponse(99, model.ResponseAttending))
}

func TestMemoryStoreHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := repository.NewMemoryStore()

	_, err := store.PendingInvitations(ctx, 1)
	assert.ErrorIs(t, err, appErrors.ErrStore)
}
