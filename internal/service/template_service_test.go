package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/autoinvite/internal/model"
	"github.com/unclebandit/autoinvite/internal/service"
)

func TestTemplateSetFor(t *testing.T) {
	ts := service.DefaultTemplates()

	cases := []struct {
		kind        model.MessageKind
		round       int
		name        string
		interactive bool
	}{
		{model.KindInvitation, 1, "auto_invite_initial", true},
		{model.KindInvitation, 2, "auto_invite_reminder_1", true},
		{model.KindInvitation, 6, "auto_invite_reminder_5", true},
		{model.KindThankYou, 1, "auto_invite_thank_you", false},
		{model.KindMorningReminder, 1, "auto_invite_morning_reminder", false},
	}
	for _, tc := range cases {
		name, interactive, err := ts.For(tc.kind, tc.round)
		require.NoError(t, err)
		assert.Equal(t, tc.name, name)
		assert.Equal(t, tc.interactive, interactive)
	}

	_, _, err := ts.For(model.KindInvitation, 7)
	assert.Error(t, err)
	_, _, err = ts.For(model.KindInvitation, 0)
	assert.Error(t, err)
	_, _, err = ts.For("postcard", 1)
	assert.Error(t, err)
}

func TestTemplateParamsFillBlanks(t *testing.T) {
	c := &model.Campaign{
		Name:          "Wedding",
		EventDate:     day(2024, 6, 1),
		EventTime:     "16:00",
		CelebratorOne: "Ann",
		Venue:         "  ",
		Location:      "Lisbon",
	}
	r := model.Recipient{Name: "Guest"}

	assert.Equal(t,
		[]string{"Guest", "Ann", "N/A", "Wedding", "Saturday, 1 June 2024", "16:00", "N/A", "Lisbon"},
		service.TemplateParams(model.KindInvitation, c, r))
	assert.Equal(t,
		[]string{"Guest", "Ann", "N/A", "Wedding"},
		service.TemplateParams(model.KindThankYou, c, r))
	assert.Equal(t,
		[]string{"Guest", "Wedding", "16:00", "N/A", "Lisbon"},
		service.TemplateParams(model.KindMorningReminder, c, r))

	noDate := service.TemplateParams(model.KindInvitation, &model.Campaign{}, r)
	assert.Equal(t, "N/A", noDate[4])
}

func TestResponseButtons(t *testing.T) {
	buttons := service.ResponseButtons(12)
	require.Len(t, buttons, 3)
	assert.Equal(t, "rsvp:12:attending", buttons[0].Payload)
	assert.Equal(t, "rsvp:12:not_attending", buttons[1].Payload)
	assert.Equal(t, "rsvp:12:undecided", buttons[2].Payload)
}

func TestDedupeKey(t *testing.T) {
	assert.Equal(t, "3:44:thank_you:1", service.DedupeKey(3, 44, model.KindThankYou, 1))
}
