// Package payment holds the gateway-agnostic half of the unlock flow:
// the errors every gateway client reports, and the HMAC signature check
// that proves a checkout callback really came from the gateway.
//
// THE UNLOCK FLOW:
//
//	browser ──POST /api/create-order──▶ server ──POST /orders──▶ gateway
//	browser ◀──────── { order } ─────── server
//	browser ──opens checkout widget with order.id, user pays──▶ gateway
//	browser ◀── { order_id, payment_id, signature } ── gateway callback
//	browser ──POST /api/verify-payment──▶ server  (Signer.Verify)
//	browser ◀──────── { ok: true } ──── server   → details revealed
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/aanand-mishra/students-paywall/internal/types"
)

var (
	// ErrNotConfigured means the gateway key id or secret is missing.
	ErrNotConfigured = errors.New("payment gateway not configured")

	// ErrInvalidSignature means the callback signature does not match
	// the digest computed from the order and payment ids.
	ErrInvalidSignature = errors.New("invalid signature")
)

// UpstreamError is returned when the gateway answers with a non-2xx status.
// Body carries the gateway's error text so it can be shown to the caller.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("gateway returned status %d: %s", e.StatusCode, e.Body)
}

// Gateway creates orders on a payment provider.
// razorpay.Client is the production implementation.
type Gateway interface {
	CreateOrder(ctx context.Context, amount float64, studentID string) (types.Order, error)
}
