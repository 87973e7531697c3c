package repository_test

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/autoinvite/internal/db"
	"github.com/unclebandit/autoinvite/internal/model"
	"github.com/unclebandit/autoinvite/internal/repository"
)

func openIntegrationDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("AUTOINVITE_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("AUTOINVITE_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	conn, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, db.Migrate(ctx, conn))
	_, err = conn.ExecContext(ctx, `TRUNCATE message_records, campaign_recipients, recipients, events RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return conn
}

func TestPostgresSelectorsIntegration(t *testing.T) {
	conn := openIntegrationDB(t)
	ctx := context.Background()

	_, err := conn.ExecContext(ctx, `
        INSERT INTO events (owner_id, name, event_date, auto_invite_enabled, auto_invite_started_at, reminder_count, message_interval_days)
        VALUES (1, 'Wedding', '2024-06-01', TRUE, '2024-05-01T00:00:00Z', 2, 2),
               (1, 'Party', '2024-07-01', TRUE, '2024-04-01T00:00:00Z', 0, 1),
               (1, 'Draft', '2024-07-01', FALSE, NULL, 0, 1)`)
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, `
        INSERT INTO recipients (name, dedup_key, phone) VALUES
        ('Ana', 'ana', '+15550000001'),
        ('Ben', 'ben', ''),
        ('Cy', 'cy', '+15550000003'),
        ('Di', 'di', '+15550000004');
        INSERT INTO campaign_recipients (campaign_id, recipient_id) VALUES (1,1),(1,2),(1,3),(1,4)`)
	require.NoError(t, err)

	campaigns := &repository.CampaignRepository{DB: conn}
	records := &repository.MessageRecordRepository{DB: conn}
	selectors := &repository.SelectorRepository{DB: conn}

	list, err := campaigns.ListAutoInviteCampaigns(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 2, list[0].ID)
	assert.Equal(t, 2, list[1].AutoInvite.ReminderCount)

	pending, err := selectors.PendingInvitations(ctx, 1)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, []int{1, 3, 4}, []int{pending[0].Recipient.ID, pending[1].Recipient.ID, pending[2].Recipient.ID})

	sentAt := time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC)
	for _, id := range []int{1, 3, 4} {
		require.NoError(t, records.Append(ctx, &model.MessageRecord{
			CampaignID: 1, RecipientID: id, Kind: model.KindInvitation, Round: 1, CreatedAt: sentAt, ExternalMessageID: "wamid",
		}))
	}
	_, err = conn.ExecContext(ctx, `UPDATE message_records SET response='undecided' WHERE recipient_id=3`)
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, `UPDATE message_records SET response='attending' WHERE recipient_id=4`)
	require.NoError(t, err)

	pending, err = selectors.PendingInvitations(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, pending)

	due, err := selectors.DueReminders(ctx, 1, sentAt.Add(time.Hour), 3)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, 1, due[0].Recipient.ID)
	assert.Equal(t, 2, due[0].Round)

	due, err = selectors.DueReminders(ctx, 1, sentAt, 3)
	require.NoError(t, err)
	assert.Empty(t, due)

	attending, err := selectors.AttendingWithout(ctx, 1, model.KindThankYou)
	require.NoError(t, err)
	require.Len(t, attending, 1)
	assert.Equal(t, 4, attending[0].Recipient.ID)

	require.NoError(t, records.Append(ctx, &model.MessageRecord{CampaignID: 1, RecipientID: 4, Kind: model.KindThankYou, Round: 1}))
	attending, err = selectors.AttendingWithout(ctx, 1, model.KindThankYou)
	require.NoError(t, err)
	assert.Empty(t, attending)

	stats, err := records.GetCampaignStats(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 1, stats.ByKind[model.KindThankYou])
}
