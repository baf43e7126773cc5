package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"ecliptvpn/backend/internal/models"
	"ecliptvpn/backend/internal/payments"

	"github.com/google/uuid"
)

var (
	ErrValidation          = errors.New("invalid billing request")
	ErrInvoiceNotFound     = errors.New("invoice not found")
	ErrUnknownProvider     = errors.New("unknown payment provider")
	ErrInventoryExhausted  = errors.New("credential inventory exhausted")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Store is the persistence surface the billing service drives. The
// repository implements it; tests swap in an in-memory fake.
type Store interface {
	GetInvoice(ctx context.Context, id string) (models.Invoice, error)
	InsertInvoice(ctx context.Context, inv models.Invoice) error
	SetInvoiceExternalRef(ctx context.Context, id, externalRef, payURL string) error
	// MarkInvoicePaid flips an open (pending or errored) invoice to
	// paid and reports whether this call won the transition.
	MarkInvoicePaid(ctx context.Context, id string) (bool, error)
	MarkInvoiceSettled(ctx context.Context, id, status string) (bool, error)
	FulfillTopup(ctx context.Context, invoiceID string, userID, amountCents int64) error
	FulfillPurchase(ctx context.Context, invoiceID string, userID int64, planID int, region string) (models.Order, models.Credential, error)
	PurchaseWithBalance(ctx context.Context, inv models.Invoice) (models.Order, models.Credential, error)
	GetPlan(ctx context.Context, id int) (models.Plan, error)
	GetUser(ctx context.Context, userID int64) (models.User, error)
}

// Notifier delivers operator escalations. Delivery is best effort and
// must never block or fail a payment transition.
type Notifier interface {
	Notify(text string)
}

type Config struct {
	Regions []string
	// StarsPerUSD is the fixed rate in-chat confirmations are checked
	// against.
	StarsPerUSD int64
}

type Service struct {
	store       Store
	providers   map[string]payments.Provider
	notifier    Notifier
	regions     map[string]struct{}
	starsPerUSD int64
	logger      *slog.Logger
}

func NewService(cfg Config, store Store, providers map[string]payments.Provider, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	regions := make(map[string]struct{}, len(cfg.Regions))
	for _, region := range cfg.Regions {
		regions[strings.ToLower(strings.TrimSpace(region))] = struct{}{}
	}
	return &Service{
		store:       store,
		providers:   providers,
		notifier:    notifier,
		regions:     regions,
		starsPerUSD: cfg.StarsPerUSD,
		logger:      logger,
	}
}

type CreateInvoiceInput struct {
	UserID      int64
	TelegramID  int64
	Kind        string
	PlanID      int
	Region      string
	AmountCents int64
	Provider    string
}

// CreateInvoice records a pending invoice before any provider call, then
// asks the provider to issue its side. A provider failure leaves the
// pending row behind with no external reference.
func (s *Service) CreateInvoice(ctx context.Context, in CreateInvoiceInput) (models.Invoice, error) {
	provider, ok := s.providers[in.Provider]
	if !ok {
		return models.Invoice{}, fmt.Errorf("%w: %q", ErrUnknownProvider, in.Provider)
	}

	inv := models.Invoice{
		ID:       uuid.NewString(),
		UserID:   in.UserID,
		Kind:     in.Kind,
		Provider: in.Provider,
		Status:   models.InvoiceStatusPending,
	}

	var payload Payload
	switch in.Kind {
	case models.InvoiceKindTopup:
		if in.AmountCents <= 0 {
			return models.Invoice{}, fmt.Errorf("%w: topup amount must be positive", ErrValidation)
		}
		inv.AmountCents = in.AmountCents
		payload = Payload{Kind: PayloadTopup, InvoiceID: inv.ID}
	case models.InvoiceKindPurchase:
		region := strings.ToLower(strings.TrimSpace(in.Region))
		if _, ok := s.regions[region]; !ok {
			return models.Invoice{}, fmt.Errorf("%w: unknown region %q", ErrValidation, in.Region)
		}
		plan, err := s.store.GetPlan(ctx, in.PlanID)
		if err != nil {
			return models.Invoice{}, fmt.Errorf("%w: plan %d", ErrValidation, in.PlanID)
		}
		planID := plan.ID
		inv.PlanID = &planID
		inv.Region = region
		// Price always comes from the plan, never from the client.
		inv.AmountCents = plan.PriceCents
		payload = Payload{Kind: PayloadPurchase, InvoiceID: inv.ID, PlanID: plan.ID, Region: region}
	default:
		return models.Invoice{}, fmt.Errorf("%w: unknown invoice kind %q", ErrValidation, in.Kind)
	}

	if err := s.store.InsertInvoice(ctx, inv); err != nil {
		return models.Invoice{}, fmt.Errorf("insert invoice: %w", err)
	}

	encoded, err := EncodePayload(payload)
	if err != nil {
		return models.Invoice{}, err
	}
	created, err := provider.CreateInvoice(ctx, payments.CreateRequest{
		UserID:      in.UserID,
		TelegramID:  in.TelegramID,
		AmountCents: inv.AmountCents,
		Description: invoiceDescription(inv),
		Payload:     encoded,
	})
	if err != nil {
		s.logger.Warn("invoice_provider_create_failed", "invoice_id", inv.ID, "provider", in.Provider, "error", err)
		return models.Invoice{}, err
	}
	if created.ExternalRef != "" || created.PayURL != "" {
		if err := s.store.SetInvoiceExternalRef(ctx, inv.ID, created.ExternalRef, created.PayURL); err != nil {
			return models.Invoice{}, fmt.Errorf("attach external ref: %w", err)
		}
	}
	inv.ExternalRef = created.ExternalRef
	inv.PayURL = created.PayURL

	s.logger.Info("invoice_created", "invoice_id", inv.ID, "kind", inv.Kind, "provider", inv.Provider, "amount_cents", inv.AmountCents)
	return inv, nil
}

// ReconcileResult carries the refreshed invoice plus whatever the
// fulfillment produced when this call won the paid transition.
type ReconcileResult struct {
	Invoice    models.Invoice
	Order      *models.Order
	Credential *models.Credential
}

// Reconcile resolves the current status of an invoice against its
// provider and runs fulfillment exactly once on the transition to
// paid. Paid and expired invoices are answered from storage without
// contacting the provider; errored invoices are checked again.
func (s *Service) Reconcile(ctx context.Context, invoiceID string) (ReconcileResult, error) {
	inv, err := s.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return ReconcileResult{}, err
	}
	if inv.Status == models.InvoiceStatusPaid || inv.Status == models.InvoiceStatusExpired {
		return ReconcileResult{Invoice: inv}, nil
	}

	provider, ok := s.providers[inv.Provider]
	if !ok {
		return ReconcileResult{}, fmt.Errorf("%w: %q", ErrUnknownProvider, inv.Provider)
	}
	status, err := provider.GetStatus(ctx, inv.ExternalRef, inv.ID)
	if err != nil {
		if errors.Is(err, payments.ErrNotSupported) {
			// In-chat providers complete through confirmation events.
			return ReconcileResult{Invoice: inv}, nil
		}
		if errors.Is(err, payments.ErrPayloadMismatch) {
			s.logger.Warn("invoice_payload_mismatch", "invoice_id", inv.ID, "provider", inv.Provider, "external_ref", inv.ExternalRef)
			s.notify(fmt.Sprintf("Payment check aborted: payload mismatch on invoice %s (%s)", inv.ID, inv.Provider))
		}
		return ReconcileResult{}, err
	}

	switch status {
	case payments.StatusPaid:
		return s.settlePaid(ctx, inv)
	case payments.StatusExpired:
		return s.settleStatus(ctx, inv, models.InvoiceStatusExpired)
	case payments.StatusError:
		// Error is recorded but stays open: the next check can still
		// move the invoice to paid or expired.
		return s.settleStatus(ctx, inv, models.InvoiceStatusError)
	default:
		return ReconcileResult{Invoice: inv}, nil
	}
}

// starsCurrency is the currency code in-chat confirmations must carry.
const starsCurrency = "XTR"

// InChatConfirmation is an inbound payment confirmation event. Currency
// and TotalAmount are the provider-native figures of the charge.
type InChatConfirmation struct {
	Payload     string
	Currency    string
	TotalAmount int64
}

// ConfirmInChat completes an invoice from an inbound payment
// confirmation event. The charged currency and amount are checked
// against the invoice before anything settles.
func (s *Service) ConfirmInChat(ctx context.Context, in InChatConfirmation) (ReconcileResult, error) {
	payload, err := DecodePayload(in.Payload)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	inv, err := s.store.GetInvoice(ctx, payload.InvoiceID)
	if err != nil {
		return ReconcileResult{}, err
	}
	if !payload.Kind.matchesInvoiceKind(inv.Kind) {
		return ReconcileResult{}, fmt.Errorf("%w: payload kind %q does not match invoice kind %q", ErrValidation, payload.Kind, inv.Kind)
	}
	if in.Currency != starsCurrency {
		return ReconcileResult{}, fmt.Errorf("%w: unexpected confirmation currency %q", ErrValidation, in.Currency)
	}
	if want := StarsFromCents(inv.AmountCents, s.starsPerUSD); in.TotalAmount != want {
		return ReconcileResult{}, fmt.Errorf("%w: confirmation amount %d does not match invoice %s (%d)", ErrValidation, in.TotalAmount, inv.ID, want)
	}
	if inv.Status == models.InvoiceStatusPaid || inv.Status == models.InvoiceStatusExpired {
		return ReconcileResult{Invoice: inv}, nil
	}
	return s.settlePaid(ctx, inv)
}

func (k PayloadKind) matchesInvoiceKind(kind string) bool {
	switch k {
	case PayloadTopup:
		return kind == models.InvoiceKindTopup
	case PayloadPurchase:
		return kind == models.InvoiceKindPurchase
	default:
		return false
	}
}

func (s *Service) settlePaid(ctx context.Context, inv models.Invoice) (ReconcileResult, error) {
	won, err := s.store.MarkInvoicePaid(ctx, inv.ID)
	if err != nil {
		return ReconcileResult{}, err
	}
	if !won {
		// Another check settled this invoice first. Report its outcome
		// without running fulfillment again.
		current, err := s.store.GetInvoice(ctx, inv.ID)
		if err != nil {
			return ReconcileResult{}, err
		}
		return ReconcileResult{Invoice: current}, nil
	}
	inv.Status = models.InvoiceStatusPaid
	s.logger.Info("invoice_paid", "invoice_id", inv.ID, "kind", inv.Kind, "provider", inv.Provider)
	return s.dispatch(ctx, inv)
}

func (s *Service) settleStatus(ctx context.Context, inv models.Invoice, status string) (ReconcileResult, error) {
	if _, err := s.store.MarkInvoiceSettled(ctx, inv.ID, status); err != nil {
		return ReconcileResult{}, err
	}
	current, err := s.store.GetInvoice(ctx, inv.ID)
	if err != nil {
		return ReconcileResult{}, err
	}
	return ReconcileResult{Invoice: current}, nil
}

// dispatch runs fulfillment for an invoice that just became paid. A
// fulfillment failure never reverts the invoice: it stays paid and
// unfulfilled, and operators are alerted.
func (s *Service) dispatch(ctx context.Context, inv models.Invoice) (ReconcileResult, error) {
	result := ReconcileResult{Invoice: inv}
	switch inv.Kind {
	case models.InvoiceKindTopup:
		if err := s.store.FulfillTopup(ctx, inv.ID, inv.UserID, inv.AmountCents); err != nil {
			s.logger.Error("topup_fulfillment_failed", "invoice_id", inv.ID, "error", err)
			s.notify(fmt.Sprintf("Topup fulfillment failed for invoice %s: %v", inv.ID, err))
			return result, fmt.Errorf("fulfill topup: %w", err)
		}
		result.Invoice.Fulfilled = true
		s.logger.Info("topup_fulfilled", "invoice_id", inv.ID, "user_id", inv.UserID, "amount_cents", inv.AmountCents)
	case models.InvoiceKindPurchase:
		planID := 0
		if inv.PlanID != nil {
			planID = *inv.PlanID
		}
		order, cred, err := s.store.FulfillPurchase(ctx, inv.ID, inv.UserID, planID, inv.Region)
		if err != nil {
			if errors.Is(err, ErrInventoryExhausted) {
				s.logger.Warn("purchase_inventory_exhausted", "invoice_id", inv.ID, "plan_id", planID, "region", inv.Region)
				s.notify(fmt.Sprintf("Inventory exhausted: paid invoice %s needs a %s credential for plan %d", inv.ID, inv.Region, planID))
				return result, ErrInventoryExhausted
			}
			s.logger.Error("purchase_fulfillment_failed", "invoice_id", inv.ID, "error", err)
			s.notify(fmt.Sprintf("Purchase fulfillment failed for invoice %s: %v", inv.ID, err))
			return result, fmt.Errorf("fulfill purchase: %w", err)
		}
		result.Invoice.Fulfilled = true
		result.Order = &order
		result.Credential = &cred
		s.logger.Info("purchase_fulfilled", "invoice_id", inv.ID, "order_id", order.ID, "credential_id", cred.ID)
	default:
		return result, fmt.Errorf("unknown invoice kind %q", inv.Kind)
	}
	return result, nil
}

// PurchaseWithBalance buys a plan directly from the account balance.
// The credential is claimed before the balance is debited, so an empty
// pool never charges the user.
func (s *Service) PurchaseWithBalance(ctx context.Context, userID int64, planID int, region string) (ReconcileResult, error) {
	region = strings.ToLower(strings.TrimSpace(region))
	if _, ok := s.regions[region]; !ok {
		return ReconcileResult{}, fmt.Errorf("%w: unknown region %q", ErrValidation, region)
	}
	plan, err := s.store.GetPlan(ctx, planID)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("%w: plan %d", ErrValidation, planID)
	}

	pid := plan.ID
	inv := models.Invoice{
		ID:          uuid.NewString(),
		UserID:      userID,
		Kind:        models.InvoiceKindPurchase,
		PlanID:      &pid,
		Region:      region,
		AmountCents: plan.PriceCents,
		Provider:    models.ProviderBalance,
		Status:      models.InvoiceStatusPaid,
		Fulfilled:   true,
	}
	order, cred, err := s.store.PurchaseWithBalance(ctx, inv)
	if err != nil {
		return ReconcileResult{}, err
	}
	s.logger.Info("balance_purchase", "invoice_id", inv.ID, "user_id", userID, "order_id", order.ID)
	return ReconcileResult{Invoice: inv, Order: &order, Credential: &cred}, nil
}

func (s *Service) notify(text string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(text)
}

func invoiceDescription(inv models.Invoice) string {
	if inv.Kind == models.InvoiceKindTopup {
		return fmt.Sprintf("Balance topup %s", formatAmount(inv.AmountCents))
	}
	return fmt.Sprintf("VPN plan %d (%s)", derefInt(inv.PlanID), strings.ToUpper(inv.Region))
}

func formatAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d USD", cents/100, cents%100)
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
