// Package cryptopay implements the Crypto Pay API adapter. Invoices are
// denominated in a crypto asset (USDT by default) and carry the encoded
// correlation payload as the API payload, which getInvoices echoes back.
package cryptopay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ecliptvpn/backend/internal/payments"
)

type Config struct {
	BaseURL string
	Token   string
	Asset   string
}

type Client struct {
	baseURL    string
	token      string
	asset      string
	httpClient *http.Client
	logger     *slog.Logger
}

type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cryptopay api status %d: %s", e.StatusCode, e.Body)
}

type createInvoiceRequest struct {
	Asset       string `json:"asset"`
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty"`
	Payload     string `json:"payload,omitempty"`
}

type invoiceData struct {
	InvoiceID int64  `json:"invoice_id"`
	Status    string `json:"status"`
	PayURL    string `json:"pay_url"`
	Payload   string `json:"payload"`
}

type createInvoiceResponse struct {
	OK     bool        `json:"ok"`
	Result invoiceData `json:"result"`
}

type getInvoicesResponse struct {
	OK     bool `json:"ok"`
	Result struct {
		Items []invoiceData `json:"items"`
	} `json:"result"`
}

func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://pay.crypt.bot/api"
	}
	asset := strings.ToUpper(strings.TrimSpace(cfg.Asset))
	if asset == "" {
		asset = "USDT"
	}
	return &Client{
		baseURL:    baseURL,
		token:      strings.TrimSpace(cfg.Token),
		asset:      asset,
		httpClient: httpClient,
		logger:     logger,
	}
}

func (c *Client) CreateInvoice(ctx context.Context, in payments.CreateRequest) (payments.CreatedInvoice, error) {
	var out payments.CreatedInvoice
	payload, err := json.Marshal(createInvoiceRequest{
		Asset:       c.asset,
		Amount:      formatCents(in.AmountCents),
		Description: in.Description,
		Payload:     in.Payload,
	})
	if err != nil {
		return out, err
	}
	body, err := c.do(ctx, http.MethodPost, "/createInvoice", payload)
	if err != nil {
		return out, fmt.Errorf("%w: %v", payments.ErrProvider, err)
	}
	var resp createInvoiceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return out, fmt.Errorf("%w: decode createInvoice response: %v", payments.ErrProvider, err)
	}
	if !resp.OK || resp.Result.InvoiceID == 0 || strings.TrimSpace(resp.Result.PayURL) == "" {
		return out, fmt.Errorf("%w: createInvoice response missing invoice_id or pay_url", payments.ErrProvider)
	}
	out.ExternalRef = fmt.Sprintf("%d", resp.Result.InvoiceID)
	out.PayURL = resp.Result.PayURL
	return out, nil
}

func (c *Client) GetStatus(ctx context.Context, externalRef, correlationID string) (payments.Status, error) {
	ref := strings.TrimSpace(externalRef)
	if ref == "" {
		return payments.StatusUnknown, fmt.Errorf("external ref is required")
	}
	body, err := c.do(ctx, http.MethodGet, "/getInvoices?invoice_ids="+url.QueryEscape(ref), nil)
	if err != nil {
		return payments.StatusUnknown, fmt.Errorf("%w: %v", payments.ErrProvider, err)
	}
	var resp getInvoicesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return payments.StatusUnknown, fmt.Errorf("%w: decode getInvoices response: %v", payments.ErrProvider, err)
	}
	if !resp.OK || len(resp.Result.Items) == 0 {
		return payments.StatusUnknown, fmt.Errorf("%w: invoice %s not found", payments.ErrProvider, ref)
	}
	item := resp.Result.Items[0]
	if !payloadMatches(item.Payload, correlationID) {
		return payments.StatusUnknown, payments.ErrPayloadMismatch
	}
	return normalizeStatus(item.Status), nil
}

// payloadMatches checks the echoed API payload against the internal
// invoice id. The payload is the JSON correlation payload attached at
// creation, so the invoice id is compared from inside it. A bare-string
// payload equal to the id is accepted too.
func payloadMatches(echoed, correlationID string) bool {
	echoed = strings.TrimSpace(echoed)
	correlationID = strings.TrimSpace(correlationID)
	if correlationID == "" {
		return false
	}
	if echoed == correlationID {
		return true
	}
	var p struct {
		InvoiceID string `json:"invoiceId"`
	}
	if err := json.Unmarshal([]byte(echoed), &p); err != nil {
		return false
	}
	return strings.TrimSpace(p.InvoiceID) == correlationID
}

func normalizeStatus(native string) payments.Status {
	switch strings.ToLower(strings.TrimSpace(native)) {
	case "active":
		return payments.StatusPending
	case "paid":
		return payments.StatusPaid
	case "expired":
		return payments.StatusExpired
	default:
		return payments.StatusUnknown
	}
}

// formatCents renders cents as a decimal asset amount, e.g. 250 -> "2.50".
func formatCents(cents int64) string {
	if cents < 0 {
		cents = 0
	}
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

func (c *Client) do(ctx context.Context, method, pathPart string, payload []byte) ([]byte, error) {
	var bodyReader io.Reader
	if len(payload) > 0 {
		bodyReader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+pathPart, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Crypto-Pay-API-Token", c.token)
	if len(payload) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}

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
		c.logger.Debug("cryptopay_api_response", "method", method, "path", pathPart, "status", resp.StatusCode)
	}
	return body, nil
}
