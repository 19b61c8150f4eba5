package payment

import (
	"testing"

	"github.com/qerenny/nowmeow/internal/period"
)

func TestInvoicePayloadRoundTrip(t *testing.T) {
	payload := EncodeInvoicePayload(period.Month1, 40)
	if payload != "month1:40" {
		t.Fatalf("payload = %q, want %q", payload, "month1:40")
	}

	p, bonus, err := DecodeInvoicePayload(payload)
	if err != nil {
		t.Fatalf("DecodeInvoicePayload returned error: %v", err)
	}
	if p != period.Month1 || bonus != 40 {
		t.Fatalf("decoded (%s, %d), want (month1, 40)", p, bonus)
	}
}

func TestDecodeInvoicePayloadBarePeriod(t *testing.T) {
	p, bonus, err := DecodeInvoicePayload("month3")
	if err != nil {
		t.Fatalf("DecodeInvoicePayload returned error: %v", err)
	}
	if p != period.Month3 || bonus != 0 {
		t.Fatalf("decoded (%s, %d), want (month3, 0)", p, bonus)
	}
}

func TestDecodeInvoicePayloadRejectsGarbage(t *testing.T) {
	for _, payload := range []string{"", "week2:10", "month1:ten", "month1:-5"} {
		if _, _, err := DecodeInvoicePayload(payload); err == nil {
			t.Fatalf("payload %q must be rejected", payload)
		}
	}
}
