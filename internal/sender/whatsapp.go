package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// WhatsAppSender sends approved templates through the WhatsApp Cloud API.
type WhatsAppSender struct {
	BaseURL       string
	PhoneNumberID string
	Token         string
	Client        *http.Client
}

func NewWhatsAppSender(baseURL, phoneNumberID, token string, timeout time.Duration) *WhatsAppSender {
	return &WhatsAppSender{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		PhoneNumberID: phoneNumberID,
		Token:         token,
		Client:        &http.Client{Timeout: timeout},
	}
}

type waParameter struct {
	Type    string   `json:"type"`
	Text    string   `json:"text,omitempty"`
	Payload string   `json:"payload,omitempty"`
	Image   *waImage `json:"image,omitempty"`
}

type waImage struct {
	Link string `json:"link"`
}

type waComponent struct {
	Type       string        `json:"type"`
	SubType    string        `json:"sub_type,omitempty"`
	Index      string        `json:"index,omitempty"`
	Parameters []waParameter `json:"parameters"`
}

type waTemplate struct {
	Name       string        `json:"name"`
	Language   waLanguage    `json:"language"`
	Components []waComponent `json:"components,omitempty"`
}

type waLanguage struct {
	Code string `json:"code"`
}

type waRequest struct {
	MessagingProduct      string     `json:"messaging_product"`
	To                    string     `json:"to"`
	Type                  string     `json:"type"`
	Template              waTemplate `json:"template"`
	BizOpaqueCallbackData string     `json:"biz_opaque_callback_data,omitempty"`
}

type waResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func buildRequest(msg TemplateMessage) waRequest {
	tpl := waTemplate{
		Name:     msg.TemplateName,
		Language: waLanguage{Code: msg.LanguageCode},
	}
	if msg.MediaURL != "" {
		tpl.Components = append(tpl.Components, waComponent{
			Type:       "header",
			Parameters: []waParameter{{Type: "image", Image: &waImage{Link: msg.MediaURL}}},
		})
	}
	if len(msg.BodyParams) > 0 {
		params := make([]waParameter, 0, len(msg.BodyParams))
		for _, p := range msg.BodyParams {
			params = append(params, waParameter{Type: "text", Text: p})
		}
		tpl.Components = append(tpl.Components, waComponent{Type: "body", Parameters: params})
	}
	for i, b := range msg.Buttons {
		tpl.Components = append(tpl.Components, waComponent{
			Type:       "button",
			SubType:    "quick_reply",
			Index:      fmt.Sprint(i),
			Parameters: []waParameter{{Type: "payload", Payload: b.Payload}},
		})
	}
	return waRequest{
		MessagingProduct:      "whatsapp",
		To:                    msg.To,
		Type:                  "template",
		Template:              tpl,
		BizOpaqueCallbackData: msg.DedupeKey,
	}
}

func (s *WhatsAppSender) Send(ctx context.Context, msg TemplateMessage) (string, error) {
	body, err := json.Marshal(buildRequest(msg))
	if err != nil {
		return "", fmt.Errorf("encode template request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", s.BaseURL, s.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.Token)

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("post template: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var out waResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil && resp.StatusCode < 300 {
			return "", fmt.Errorf("decode response: %w", err)
		}
	}
	if resp.StatusCode >= 300 {
		if out.Error != nil {
			return "", fmt.Errorf("whatsapp %d (code %d): %s", resp.StatusCode, out.Error.Code, out.Error.Message)
		}
		return "", fmt.Errorf("whatsapp status %d", resp.StatusCode)
	}
	if len(out.Messages) == 0 || out.Messages[0].ID == "" {
		return "", errors.New("whatsapp response has no message id")
	}
	return out.Messages[0].ID, nil
}
