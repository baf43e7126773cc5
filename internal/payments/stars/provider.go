// Package stars implements the Telegram Stars adapter. The invoice is
// delivered inside the chat and there is no polling API: completion
// arrives as an inbound successful_payment event carrying the
// correlation payload.
package stars

import (
	"context"
	"fmt"
	"log/slog"

	"ecliptvpn/backend/internal/billing"
	"ecliptvpn/backend/internal/integrations"
	"ecliptvpn/backend/internal/payments"
)

const Currency = "XTR"

type invoiceSender interface {
	SendInvoice(chatID int64, title, description, payload, currency string, prices []integrations.LabeledPrice) error
}

type Config struct {
	StarsPerUSD int64
}

type Provider struct {
	sender      invoiceSender
	starsPerUSD int64
	logger      *slog.Logger
}

func NewProvider(cfg Config, sender invoiceSender, logger *slog.Logger) *Provider {
	return &Provider{
		sender:      sender,
		starsPerUSD: cfg.StarsPerUSD,
		logger:      logger,
	}
}

func (p *Provider) CreateInvoice(ctx context.Context, in payments.CreateRequest) (payments.CreatedInvoice, error) {
	var out payments.CreatedInvoice
	if in.TelegramID == 0 {
		return out, fmt.Errorf("telegram id is required for in-chat invoices")
	}
	amount := billing.StarsFromCents(in.AmountCents, p.starsPerUSD)
	if amount <= 0 {
		return out, fmt.Errorf("stars amount must be positive")
	}
	err := p.sender.SendInvoice(
		in.TelegramID,
		in.Description,
		in.Description,
		in.Payload,
		Currency,
		[]integrations.LabeledPrice{{Label: in.Description, Amount: amount}},
	)
	if err != nil {
		return out, fmt.Errorf("%w: %v", payments.ErrProvider, err)
	}
	if p.logger != nil {
		p.logger.Debug("stars_invoice_sent", "telegram_id", in.TelegramID, "amount", amount)
	}
	// The invoice lives in the chat. There is nothing to poll and no
	// external reference beyond the correlation payload itself.
	return out, nil
}

func (p *Provider) GetStatus(ctx context.Context, externalRef, correlationID string) (payments.Status, error) {
	return payments.StatusUnknown, payments.ErrNotSupported
}
