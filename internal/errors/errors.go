// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRecipient = errors.New("invalid recipient")
	ErrChannelSend      = errors.New("channel send failure")
	ErrStore            = errors.New("store failure")
	ErrInvalidConfig    = errors.New("invalid auto-invite configuration")
	ErrPassInProgress   = errors.New("auto-invite pass already in progress")
	ErrNoTemplate       = errors.New("no template for message")
)

// ErrCampaignNotFound is returned when a campaign lookup has no row.
type ErrCampaignNotFound struct {
	CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id int) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// InvalidRecipientError means the recipient cannot be messaged. Nothing was
// sent and nothing was recorded.
type InvalidRecipientError struct {
	RecipientID int
	Phone       string
	Err         error
}

func (e *InvalidRecipientError) Error() string {
	return fmt.Sprintf("recipient %d: invalid phone %q: %v", e.RecipientID, e.Phone, e.Err)
}

func (e *InvalidRecipientError) Unwrap() error { return e.Err }

func (e *InvalidRecipientError) Is(target error) bool { return target == ErrInvalidRecipient }

// ChannelSendError wraps a failure returned by the template sender.
type ChannelSendError struct {
	RecipientID int
	Template    string
	Err         error
}

func (e *ChannelSendError) Error() string {
	return fmt.Sprintf("recipient %d: send template %s: %v", e.RecipientID, e.Template, e.Err)
}

func (e *ChannelSendError) Unwrap() error { return e.Err }

func (e *ChannelSendError) Is(target error) bool { return target == ErrChannelSend }

// TemplateError means no template matches the message kind and round.
// Nothing was sent.
type TemplateError struct {
	Kind  string
	Round int
	Err   error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template for %s round %d: %v", e.Kind, e.Round, e.Err)
}

func (e *TemplateError) Unwrap() error { return e.Err }

func (e *TemplateError) Is(target error) bool { return target == ErrNoTemplate }

// StoreError wraps a query or write failure against the store.
type StoreError struct {
	Op  string
	Err error
}

func NewStoreError(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStore }

// CampaignError is any failure that ended processing of one campaign.
type CampaignError struct {
	CampaignID int
	Err        error
}

func (e *CampaignError) Error() string {
	return fmt.Sprintf("campaign %d: %v", e.CampaignID, e.Err)
}

func (e *CampaignError) Unwrap() error { return e.Err }
