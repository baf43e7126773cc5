// Package payments defines the payment provider capability surface.
// Provider-native status vocabularies never leave their adapter: every
// adapter maps its own states onto the canonical Status set.
package payments

import (
	"context"
	"errors"
)

type Status string

const (
	StatusUnknown Status = ""
	StatusPending Status = "PENDING"
	StatusPaid    Status = "PAID"
	StatusExpired Status = "EXPIRED"
	StatusError   Status = "ERROR"
)

var (
	// ErrProvider marks a transient provider or transport failure. The
	// invoice must stay untouched so the check can be retried.
	ErrProvider = errors.New("payment provider unavailable")
	// ErrPayloadMismatch means the provider echoed back a correlation
	// payload for a different invoice. Reconciliation must abort.
	ErrPayloadMismatch = errors.New("provider payload mismatch")
	// ErrNotSupported is returned by providers without a polling API.
	ErrNotSupported = errors.New("operation not supported by provider")
)

type CreateRequest struct {
	UserID      int64
	TelegramID  int64
	AmountCents int64
	Description string
	// Payload is the encoded correlation payload carried through the
	// provider and echoed back on status checks.
	Payload string
}

type CreatedInvoice struct {
	ExternalRef string
	PayURL      string
}

type Provider interface {
	CreateInvoice(ctx context.Context, in CreateRequest) (CreatedInvoice, error)
	// GetStatus resolves the canonical status of a previously created
	// invoice. correlationID is the internal invoice id the provider is
	// expected to echo back where its API supports payload echoing.
	GetStatus(ctx context.Context, externalRef, correlationID string) (Status, error)
}
