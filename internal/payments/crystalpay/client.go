// Package crystalpay implements the CrystalPay adapter. Invoices are
// denominated in whole rubles converted from reference cents at a fixed
// rate, and the internal invoice id travels in the extra field.
package crystalpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"ecliptvpn/backend/internal/billing"
	"ecliptvpn/backend/internal/payments"
)

const invoiceLifetimeSeconds = 300

type Config struct {
	BaseURL   string
	Login     string
	Secret    string
	RubPerUSD int64
}

type Client struct {
	baseURL    string
	login      string
	secret     string
	rubPerUSD  int64
	httpClient *http.Client
	logger     *slog.Logger
}

type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("crystalpay api status %d: %s", e.StatusCode, e.Body)
}

type createInvoiceRequest struct {
	AuthLogin  string `json:"auth_login"`
	AuthSecret string `json:"auth_secret"`
	Type       string `json:"type"`
	Amount     int64  `json:"amount"`
	Extra      string `json:"extra,omitempty"`
	Lifetime   int    `json:"lifetime"`
}

type createInvoiceResponse struct {
	Error bool   `json:"error"`
	ID    string `json:"id"`
	URL   string `json:"url"`
}

type invoiceInfoRequest struct {
	AuthLogin  string `json:"auth_login"`
	AuthSecret string `json:"auth_secret"`
	ID         string `json:"id"`
}

type invoiceInfoResponse struct {
	Error bool   `json:"error"`
	State string `json:"state"`
}

func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.crystalpay.io/v2"
	}
	return &Client{
		baseURL:    baseURL,
		login:      strings.TrimSpace(cfg.Login),
		secret:     strings.TrimSpace(cfg.Secret),
		rubPerUSD:  cfg.RubPerUSD,
		httpClient: httpClient,
		logger:     logger,
	}
}

func (c *Client) CreateInvoice(ctx context.Context, in payments.CreateRequest) (payments.CreatedInvoice, error) {
	var out payments.CreatedInvoice
	payload, err := json.Marshal(createInvoiceRequest{
		AuthLogin:  c.login,
		AuthSecret: c.secret,
		Type:       "purchase",
		Amount:     billing.RublesFromCents(in.AmountCents, c.rubPerUSD),
		Extra:      in.Payload,
		Lifetime:   invoiceLifetimeSeconds,
	})
	if err != nil {
		return out, err
	}
	body, err := c.do(ctx, "/invoice/create/", payload)
	if err != nil {
		return out, fmt.Errorf("%w: %v", payments.ErrProvider, err)
	}
	var resp createInvoiceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return out, fmt.Errorf("%w: decode invoice create response: %v", payments.ErrProvider, err)
	}
	if resp.Error || strings.TrimSpace(resp.ID) == "" || strings.TrimSpace(resp.URL) == "" {
		return out, fmt.Errorf("%w: invoice create response missing id or url", payments.ErrProvider)
	}
	out.ExternalRef = resp.ID
	out.PayURL = resp.URL
	return out, nil
}

func (c *Client) GetStatus(ctx context.Context, externalRef, correlationID string) (payments.Status, error) {
	ref := strings.TrimSpace(externalRef)
	if ref == "" {
		return payments.StatusUnknown, fmt.Errorf("external ref is required")
	}
	payload, err := json.Marshal(invoiceInfoRequest{
		AuthLogin:  c.login,
		AuthSecret: c.secret,
		ID:         ref,
	})
	if err != nil {
		return payments.StatusUnknown, err
	}
	body, err := c.do(ctx, "/invoice/info/", payload)
	if err != nil {
		return payments.StatusUnknown, fmt.Errorf("%w: %v", payments.ErrProvider, err)
	}
	var resp invoiceInfoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return payments.StatusUnknown, fmt.Errorf("%w: decode invoice info response: %v", payments.ErrProvider, err)
	}
	if resp.Error {
		return payments.StatusUnknown, fmt.Errorf("%w: invoice info returned error flag", payments.ErrProvider)
	}
	return normalizeState(resp.State), nil
}

func normalizeState(native string) payments.Status {
	switch strings.ToLower(strings.TrimSpace(native)) {
	case "notpayed":
		return payments.StatusPending
	// Overpayment still delivers the goods, exact refunds are manual.
	case "payed", "overpayed":
		return payments.StatusPaid
	case "error":
		return payments.StatusError
	default:
		return payments.StatusUnknown
	}
}

func (c *Client) do(ctx context.Context, pathPart string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pathPart, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return body, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if c.logger != nil {
		c.logger.Debug("crystalpay_api_response", "path", pathPart, "status", resp.StatusCode)
	}
	return body, nil
}
