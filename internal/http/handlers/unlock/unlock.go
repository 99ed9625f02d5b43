// Package unlock contains the two HTTP handlers of the payment-gated
// unlock flow.
//
// Both handlers are built with the closure / factory pattern: the factory
// runs once at startup with its dependencies, and returns the
// http.HandlerFunc that serves every request.
//
//	router.HandleFunc("POST /api/create-order", unlock.CreateOrder(gateway, ledger, authn, 10))
//	router.HandleFunc("POST /api/verify-payment", unlock.VerifyPayment(signer, ledger, authn))
//
// Every failure is turned into a JSON body + status here; nothing escapes
// the handler.
package unlock

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/aanand-mishra/students-paywall/internal/auth"
	"github.com/aanand-mishra/students-paywall/internal/payment"
	"github.com/aanand-mishra/students-paywall/internal/storage"
	"github.com/aanand-mishra/students-paywall/internal/types"
	"github.com/aanand-mishra/students-paywall/internal/utils/response"
)

// FallbackAmount is the unlock price when neither the request nor the
// config provides one.
const FallbackAmount = 10

// Error messages the dashboard shows in its alerts.
const (
	msgKeysNotConfigured   = "Razorpay keys not configured"
	msgOrderCreationFailed = "Razorpay order creation failed"
	msgServerNotConfigured = "Server not configured"
	msgInvalidSignature    = "invalid signature"
)

// ─────────────────────────────────────────────────────────────────────────────
// CreateOrder handles POST /api/create-order
//
// Request body (JSON):
//
//	{ "amount": 10, "studentId": 42, "accessToken": "<optional>" }
//
// Success response (200 OK):
//
//	{ "order": { "id": "order_Mx1", "amount": 1000, "currency": "INR", ... } }
//
// Error responses:
//
//	500 — unreadable body, gateway keys missing, transport failure
//	502 — the gateway rejected the order: { "error": "...", "details": "<gateway text>" }
//
// The order is also written to the ledger so a later verification can be
// tied back to the student. A ledger failure is logged, not returned.
// ─────────────────────────────────────────────────────────────────────────────
func CreateOrder(gateway payment.Gateway, ledger storage.Storage, authn auth.Authenticator, defaultAmount float64) http.HandlerFunc {
	if defaultAmount <= 0 {
		defaultAmount = FallbackAmount
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req types.CreateOrderRequest
		if err := decode(r, &req); err != nil {
			slog.Warn("create order: bad body", slog.String("error", err.Error()))
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(err))
			return
		}

		amount := float64(req.Amount)
		if amount == 0 {
			amount = defaultAmount
		}
		studentID := req.StudentID.OrDefault()

		slog.Info("creating order",
			slog.String("student_id", studentID),
			slog.Float64("amount", amount))

		order, err := gateway.CreateOrder(r.Context(), amount, studentID)
		if err != nil {
			var upstream *payment.UpstreamError
			switch {
			case errors.Is(err, payment.ErrNotConfigured):
				slog.Error("create order: gateway keys missing")
				response.WriteJSON(w, http.StatusInternalServerError,
					response.Message(msgKeysNotConfigured))
			case errors.As(err, &upstream):
				slog.Error("create order: gateway rejected order",
					slog.Int("status", upstream.StatusCode),
					slog.String("body", upstream.Body))
				response.WriteJSON(w, http.StatusBadGateway,
					response.MessageWithDetails(msgOrderCreationFailed, upstream.Body))
			default:
				slog.Error("create order: gateway call failed", slog.String("error", err.Error()))
				response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(err))
			}
			return
		}

		email := callerEmail(r, authn, req.AccessToken)
		if ledger != nil {
			if err := ledger.SaveOrder(order, studentID, email); err != nil {
				slog.Error("create order: ledger write failed",
					slog.String("order_id", order.ID),
					slog.String("error", err.Error()))
			}
		}

		slog.Info("order created",
			slog.String("order_id", order.ID),
			slog.String("student_id", studentID))

		response.WriteJSON(w, http.StatusOK, map[string]types.Order{"order": order})
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// VerifyPayment handles POST /api/verify-payment
//
// Request body (JSON), as handed over by the checkout widget:
//
//	{ "razorpay_order_id": "...", "razorpay_payment_id": "...", "razorpay_signature": "..." }
//
// Responses:
//
//	200 { "ok": true }
//	400 { "ok": false, "error": "invalid signature" }    — mismatch or missing field
//	500 { "ok": false, "error": "Server not configured" } — no key secret
//	500 { "ok": false, "error": "<decode error>" }        — unreadable body
//
// A verified payment is recorded as an unlock. Verifying the same callback
// again still answers ok:true; the ledger keeps one row and the replay is
// logged.
// ─────────────────────────────────────────────────────────────────────────────
func VerifyPayment(signer *payment.Signer, ledger storage.Storage, authn auth.Authenticator) http.HandlerFunc {
	validate := response.NewValidator()

	return func(w http.ResponseWriter, r *http.Request) {
		var req types.VerifyPaymentRequest
		if err := decode(r, &req); err != nil {
			slog.Warn("verify payment: bad body", slog.String("error", err.Error()))
			response.WriteJSON(w, http.StatusInternalServerError, response.NotVerified(err.Error()))
			return
		}

		if signer == nil || signer.Secret == "" {
			slog.Error("verify payment: key secret missing")
			response.WriteJSON(w, http.StatusInternalServerError,
				response.NotVerified(msgServerNotConfigured))
			return
		}

		if err := validate.Struct(req); err != nil {
			var verrs validator.ValidationErrors
			msg := err.Error()
			if errors.As(err, &verrs) {
				msg = response.ValidationMessage(verrs)
			}
			response.WriteJSON(w, http.StatusBadRequest, response.NotVerified(msg))
			return
		}

		orderID, paymentID := string(req.OrderID), string(req.PaymentID)

		if err := signer.Verify(orderID, paymentID, string(req.Signature)); err != nil {
			if errors.Is(err, payment.ErrNotConfigured) {
				response.WriteJSON(w, http.StatusInternalServerError,
					response.NotVerified(msgServerNotConfigured))
				return
			}
			slog.Warn("verify payment: signature mismatch",
				slog.String("order_id", orderID),
				slog.String("payment_id", paymentID))
			response.WriteJSON(w, http.StatusBadRequest, response.NotVerified(msgInvalidSignature))
			return
		}

		if ledger != nil {
			email := callerEmail(r, authn, req.AccessToken)
			replay, err := ledger.RecordUnlock(orderID, paymentID, email)
			switch {
			case err != nil:
				slog.Error("verify payment: ledger write failed",
					slog.String("order_id", orderID),
					slog.String("error", err.Error()))
			case replay:
				slog.Warn("verify payment: callback verified again",
					slog.String("order_id", orderID),
					slog.String("payment_id", paymentID))
			}
		}

		slog.Info("payment verified",
			slog.String("order_id", orderID),
			slog.String("payment_id", paymentID))

		response.WriteJSON(w, http.StatusOK, response.Verified())
	}
}

// decode reads the JSON body into v. An empty body is an error.
func decode(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return errors.New("request body is empty")
	}
	return err
}

// callerEmail is best effort: anonymous callers still get orders and
// verifications, they just cannot be credited with an unlock.
func callerEmail(r *http.Request, authn auth.Authenticator, bodyToken string) string {
	user, err := auth.UserFromRequest(r, authn, bodyToken)
	if err != nil {
		slog.Debug("caller not identified", slog.String("error", err.Error()))
		return ""
	}
	return user.Email
}
