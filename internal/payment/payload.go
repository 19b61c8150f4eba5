package payment

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/qerenny/nowmeow/internal/period"
)

// The invoice payload carries everything settle needs ("month1:40"), so a
// confirmed charge can be settled even when the checkout session's TTL
// lapsed while the invoice stayed payable in the chat.

func EncodeInvoicePayload(p period.Period, bonusCharged int64) string {
	return fmt.Sprintf("%s:%d", p, bonusCharged)
}

// DecodeInvoicePayload parses a payload back into the plan period and the
// coins that discounted the invoice. A payload without a bonus part means
// a full-price charge.
func DecodeInvoicePayload(payload string) (period.Period, int64, error) {
	parts := strings.SplitN(payload, ":", 2)
	p, err := period.Parse(parts[0])
	if err != nil {
		return "", 0, err
	}
	if len(parts) == 1 {
		return p, 0, nil
	}
	bonus, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || bonus < 0 {
		return "", 0, fmt.Errorf("invalid bonus amount in invoice payload %q", payload)
	}
	return p, bonus, nil
}
