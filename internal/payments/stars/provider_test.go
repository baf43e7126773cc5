package stars

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"ecliptvpn/backend/internal/integrations"
	"ecliptvpn/backend/internal/payments"
)

type fakeSender struct {
	chatID   int64
	payload  string
	currency string
	prices   []integrations.LabeledPrice
	err      error
	calls    int
}

func (s *fakeSender) SendInvoice(chatID int64, title, description, payload, currency string, prices []integrations.LabeledPrice) error {
	s.calls++
	s.chatID = chatID
	s.payload = payload
	s.currency = currency
	s.prices = prices
	return s.err
}

// TestCreateInvoiceSendsInChat verifies create invoice sends in chat behavior.
func TestCreateInvoiceSendsInChat(t *testing.T) {
	sender := &fakeSender{}
	provider := NewProvider(Config{StarsPerUSD: 70}, sender, nil)

	created, err := provider.CreateInvoice(context.Background(), payments.CreateRequest{
		TelegramID:  700,
		AmountCents: 250,
		Description: "VPN plan 1 (DE)",
		Payload:     "corr-1",
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	if created.ExternalRef != "" || created.PayURL != "" {
		t.Fatalf("in-chat invoice must have no external ref, got %#v", created)
	}
	if sender.calls != 1 || sender.chatID != 700 {
		t.Fatalf("expected one invoice to chat 700, got %d to %d", sender.calls, sender.chatID)
	}
	if sender.currency != Currency {
		t.Fatalf("expected currency %s, got %s", Currency, sender.currency)
	}
	if sender.payload != "corr-1" {
		t.Fatalf("expected correlation payload, got %s", sender.payload)
	}
	if len(sender.prices) != 1 || sender.prices[0].Amount != 175 {
		t.Fatalf("expected 175 stars for 250 cents, got %#v", sender.prices)
	}
}

// TestCreateInvoiceRequiresTelegramID verifies create invoice requires telegram i d behavior.
func TestCreateInvoiceRequiresTelegramID(t *testing.T) {
	provider := NewProvider(Config{StarsPerUSD: 70}, &fakeSender{}, nil)
	if _, err := provider.CreateInvoice(context.Background(), payments.CreateRequest{AmountCents: 250}); err == nil {
		t.Fatalf("expected error without telegram id")
	}
}

// TestCreateInvoiceSendFailure verifies create invoice send failure behavior.
func TestCreateInvoiceSendFailure(t *testing.T) {
	sender := &fakeSender{err: fmt.Errorf("telegram api status 400")}
	provider := NewProvider(Config{StarsPerUSD: 70}, sender, nil)
	_, err := provider.CreateInvoice(context.Background(), payments.CreateRequest{TelegramID: 700, AmountCents: 250})
	if !errors.Is(err, payments.ErrProvider) {
		t.Fatalf("expected ErrProvider, got %v", err)
	}
}

// TestGetStatusNotSupported verifies get status not supported behavior.
func TestGetStatusNotSupported(t *testing.T) {
	provider := NewProvider(Config{StarsPerUSD: 70}, &fakeSender{}, nil)
	if _, err := provider.GetStatus(context.Background(), "", "corr-1"); !errors.Is(err, payments.ErrNotSupported) {
		t.Fatalf("expected ErrNotSupported, got %v", err)
	}
}
