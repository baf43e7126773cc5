package billing

import (
	"errors"
	"testing"
)

// TestPayloadRoundTrip verifies payload round trip behavior.
func TestPayloadRoundTrip(t *testing.T) {
	raw, err := EncodePayload(Payload{
		Kind:      PayloadPurchase,
		InvoiceID: "inv-1",
		PlanID:    3,
		Region:    "de",
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodePayload(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Kind != PayloadPurchase || decoded.InvoiceID != "inv-1" || decoded.PlanID != 3 || decoded.Region != "de" {
		t.Fatalf("unexpected payload: %#v", decoded)
	}
}

// TestPayloadRejectsUnknownKind verifies payload rejects unknown kind behavior.
func TestPayloadRejectsUnknownKind(t *testing.T) {
	if _, err := DecodePayload(`{"kind":"REFUND","invoiceId":"inv-1"}`); !errors.Is(err, ErrUnknownPayloadKind) {
		t.Fatalf("expected ErrUnknownPayloadKind, got %v", err)
	}
	if _, err := EncodePayload(Payload{Kind: "GIFT", InvoiceID: "inv-1"}); !errors.Is(err, ErrUnknownPayloadKind) {
		t.Fatalf("expected ErrUnknownPayloadKind, got %v", err)
	}
}

// TestPayloadValidation verifies payload validation behavior.
func TestPayloadValidation(t *testing.T) {
	if _, err := EncodePayload(Payload{Kind: PayloadTopup}); err == nil {
		t.Fatalf("expected error for missing invoice id")
	}
	if _, err := EncodePayload(Payload{Kind: PayloadPurchase, InvoiceID: "inv-1", PlanID: 2}); err == nil {
		t.Fatalf("expected error for purchase without region")
	}
	if _, err := EncodePayload(Payload{Kind: PayloadPurchase, InvoiceID: "inv-1", Region: "de"}); err == nil {
		t.Fatalf("expected error for purchase without plan")
	}
	if _, err := DecodePayload("not json"); err == nil {
		t.Fatalf("expected error for malformed payload")
	}
}
