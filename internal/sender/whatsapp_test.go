package sender

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWhatsAppSenderSendsTemplate(t *testing.T) {
	var got waRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/12345/messages", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"messages":[{"id":"wamid.ABC"}]}`))
	}))
	defer srv.Close()

	s := NewWhatsAppSender(srv.URL+"/", "12345", "secret", time.Second)
	id, err := s.Send(context.Background(), TemplateMessage{
		To:           "15550001111",
		TemplateName: "auto_invite_initial",
		LanguageCode: "en",
		BodyParams:   []string{"Ana", "Wedding"},
		MediaURL:     "https://img.example/cover.jpg",
		Buttons:      []Button{{Title: "Attending", Payload: "rsvp:attending"}, {Title: "Not attending", Payload: "rsvp:not_attending"}},
		DedupeKey:    "1:2:invitation:1",
	})
	require.NoError(t, err)
	assert.Equal(t, "wamid.ABC", id)

	assert.Equal(t, "whatsapp", got.MessagingProduct)
	assert.Equal(t, "template", got.Type)
	assert.Equal(t, "1:2:invitation:1", got.BizOpaqueCallbackData)
	require.Len(t, got.Template.Components, 4)
	assert.Equal(t, "header", got.Template.Components[0].Type)
	assert.Equal(t, "body", got.Template.Components[1].Type)
	assert.Len(t, got.Template.Components[1].Parameters, 2)
	assert.Equal(t, "quick_reply", got.Template.Components[3].SubType)
	assert.Equal(t, "1", got.Template.Components[3].Index)
}

func TestWhatsAppSenderSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Template name does not exist","code":132001}}`))
	}))
	defer srv.Close()

	s := NewWhatsAppSender(srv.URL, "1", "t", time.Second)
	_, err := s.Send(context.Background(), TemplateMessage{To: "1", TemplateName: "missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Template name does not exist")
}

func TestWhatsAppSenderRequiresMessageID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"messages":[]}`))
	}))
	defer srv.Close()

	s := NewWhatsAppSender(srv.URL, "1", "t", time.Second)
	_, err := s.Send(context.Background(), TemplateMessage{To: "1", TemplateName: "x"})
	assert.Error(t, err)
}

func TestMockSender(t *testing.T) {
	ok := &MockSender{SuccessRate: 1}
	id, err := ok.Send(context.Background(), TemplateMessage{})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	never := &MockSender{SuccessRate: 0}
	_, err = never.Send(context.Background(), TemplateMessage{})
	assert.Error(t, err)
}
