// Package phone validates recipient numbers before they reach the channel.
package phone

import (
	"errors"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

var (
	ErrEmpty   = errors.New("phone number is empty")
	ErrInvalid = errors.New("phone number is not valid")
)

// Normalizer parses numbers, assuming DefaultRegion for numbers written
// without a country code.
type Normalizer struct {
	DefaultRegion string
}

func NewNormalizer(defaultRegion string) *Normalizer {
	return &Normalizer{DefaultRegion: strings.ToUpper(strings.TrimSpace(defaultRegion))}
}

// E164 returns the number in E.164 form, e.g. +15551234567.
func (n *Normalizer) E164(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrEmpty
	}
	num, err := phonenumbers.Parse(raw, n.DefaultRegion)
	if err != nil {
		return "", errors.Join(ErrInvalid, err)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", ErrInvalid
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// WhatsAppID is the E.164 number without the leading plus, which is what the
// Cloud API expects in the "to" field.
func (n *Normalizer) WhatsAppID(raw string) (string, error) {
	e164, err := n.E164(raw)
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(e164, "+"), nil
}
