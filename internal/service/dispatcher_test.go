package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/autoinvite/internal/errors"
	"github.com/unclebandit/autoinvite/internal/metrics"
	"github.com/unclebandit/autoinvite/internal/model"
)

func TestDispatchRecordsSuccessfulSend(t *testing.T) {
	now := day(2024, 6, 3).Add(9 * time.Hour)
	h := newHarness(now)
	c := invitationCampaign(7, day(2024, 6, 20))
	c.ImageURL = "https://cdn.example.com/invite.jpg"
	r := h.guest(4, 7)

	out, err := dispatcherOf(h.runner).Dispatch(context.Background(), r, c, 2, model.KindInvitation)
	require.NoError(t, err)
	require.True(t, out.Sent())
	assert.Equal(t, "wamid.1", out.ExternalMessageID)

	require.NotNil(t, out.Record)
	assert.NotZero(t, out.Record.ID)
	assert.Equal(t, model.MessageRecord{
		ID:                out.Record.ID,
		CampaignID:        7,
		RecipientID:       4,
		Kind:              model.KindInvitation,
		Round:             2,
		Response:          model.ResponseAwaiting,
		ExternalMessageID: "wamid.1",
		CreatedAt:         now,
	}, *out.Record)
	assert.Equal(t, []model.MessageRecord{*out.Record}, h.store.Records(7))

	msg := h.sender.Sent()[0]
	assert.Equal(t, waID(4), msg.To)
	assert.Equal(t, "auto_invite_reminder_1", msg.TemplateName)
	assert.Equal(t, "en", msg.LanguageCode)
	assert.Equal(t, c.ImageURL, msg.MediaURL)
	assert.Equal(t, "7:4:invitation:2", msg.DedupeKey)
	assert.Equal(t, "rsvp:7:attending", msg.Buttons[0].Payload)
}

func TestDispatchInvalidPhoneSendsNothing(t *testing.T) {
	h := newHarness(day(2024, 6, 1))
	m := metrics.New()
	d := *dispatcherOf(h.runner)
	d.Metrics = m
	c := invitationCampaign(1, day(2024, 6, 20))

	out, err := d.Dispatch(context.Background(), model.Recipient{ID: 9, Phone: "+1 555"}, c, 1, model.KindInvitation)
	require.NoError(t, err)
	assert.False(t, out.Sent())
	assert.ErrorIs(t, out.Reason, appErrors.ErrInvalidRecipient)
	assert.Empty(t, h.sender.Sent())
	assert.Empty(t, h.store.Records(1))
	n, err := testutil.GatherAndCount(m.Registry(), "autoinvite_dispatches_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDispatchChannelFailureIsNotRecorded(t *testing.T) {
	h := newHarness(day(2024, 6, 1))
	r := h.guest(1, 1)
	h.sender.fail[waID(1)] = true

	out, err := dispatcherOf(h.runner).Dispatch(context.Background(), r, invitationCampaign(1, day(2024, 6, 20)), 1, model.KindThankYou)
	require.NoError(t, err)
	assert.False(t, out.Sent())
	assert.ErrorIs(t, out.Reason, appErrors.ErrChannelSend)

	var cse *appErrors.ChannelSendError
	require.ErrorAs(t, out.Reason, &cse)
	assert.Equal(t, "auto_invite_thank_you", cse.Template)
	assert.Empty(t, h.store.Records(1))
}

func TestDispatchUnknownRoundHasNoTemplate(t *testing.T) {
	h := newHarness(day(2024, 6, 1))
	r := h.guest(1, 1)

	out, err := dispatcherOf(h.runner).Dispatch(context.Background(), r, invitationCampaign(1, day(2024, 6, 20)), model.MaxReminderCount+2, model.KindInvitation)
	require.NoError(t, err)
	assert.False(t, out.Sent())
	assert.ErrorIs(t, out.Reason, appErrors.ErrNoTemplate)
	assert.NotErrorIs(t, out.Reason, appErrors.ErrChannelSend)

	var te *appErrors.TemplateError
	require.ErrorAs(t, out.Reason, &te)
	assert.Equal(t, model.MaxReminderCount+2, te.Round)
	assert.Equal(t, "invitation", te.Kind)
	assert.Empty(t, h.sender.Sent())
}

func TestDispatchRecordsEvenWhenCancelledAfterSend(t *testing.T) {
	h := newHarness(day(2024, 6, 1))
	r := h.guest(1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.sender.after = cancel

	out, err := dispatcherOf(h.runner).Dispatch(ctx, r, invitationCampaign(1, day(2024, 6, 20)), 1, model.KindInvitation)
	require.NoError(t, err)
	assert.True(t, out.Sent())
	assert.Len(t, h.store.Records(1), 1)
}

func TestDispatchStoreFailureIsReturned(t *testing.T) {
	h := newHarness(day(2024, 6, 1))
	r := h.guest(1, 1)
	d := dispatcherOf(h.newRunner(&flakyRecords{MemoryStore: h.store}))

	out, err := d.Dispatch(context.Background(), r, invitationCampaign(1, day(2024, 6, 20)), 1, model.KindInvitation)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrStore)
	assert.False(t, out.Sent())
	assert.Equal(t, "wamid.1", out.ExternalMessageID)
}
