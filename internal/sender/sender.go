// Package sender delivers template messages through an external channel.
package sender

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
)

// Button is one quick-reply affordance attached to a template.
type Button struct {
	Title   string
	Payload string
}

// TemplateMessage is a single outbound templated message.
type TemplateMessage struct {
	To           string
	TemplateName string
	LanguageCode string
	// BodyParams fill the template's body placeholders in order.
	BodyParams []string
	MediaURL   string
	Buttons    []Button
	// DedupeKey identifies the logical message across retries.
	DedupeKey string
}

// TemplateSender sends a template and returns the channel's message id.
type TemplateSender interface {
	Send(ctx context.Context, msg TemplateMessage) (string, error)
}

// MockSender simulates a channel that accepts SuccessRate of messages.
type MockSender struct {
	SuccessRate float64
}

func (m *MockSender) Send(ctx context.Context, msg TemplateMessage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if rand.Float64() >= m.SuccessRate {
		return "", fmt.Errorf("mock sending failed")
	}
	return "mock-" + uuid.NewString(), nil
}
