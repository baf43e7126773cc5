package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// PayloadKind is the closed set of correlation payload variants carried
// through payment providers and echoed back on completion events.
type PayloadKind string

const (
	PayloadTopup    PayloadKind = "TOPUP"
	PayloadPurchase PayloadKind = "PURCHASE"
)

var ErrUnknownPayloadKind = errors.New("unknown payload kind")

// Payload correlates a provider-side payment with an internal invoice.
type Payload struct {
	Kind      PayloadKind `json:"kind"`
	InvoiceID string      `json:"invoiceId"`
	PlanID    int         `json:"planId,omitempty"`
	Region    string      `json:"region,omitempty"`
}

func (p Payload) Validate() error {
	switch p.Kind {
	case PayloadTopup:
	case PayloadPurchase:
		if p.PlanID <= 0 || strings.TrimSpace(p.Region) == "" {
			return fmt.Errorf("purchase payload requires plan and region")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPayloadKind, string(p.Kind))
	}
	if strings.TrimSpace(p.InvoiceID) == "" {
		return fmt.Errorf("payload requires invoice id")
	}
	return nil
}

// EncodePayload serializes a payload for the provider round trip.
func EncodePayload(p Payload) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	buf, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// DecodePayload parses an echoed payload and rejects unknown kinds.
func DecodePayload(raw string) (Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Payload{}, fmt.Errorf("decode payload: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Payload{}, err
	}
	return p, nil
}
