// Package response provides helpers for writing consistent JSON HTTP responses.
//
// Every handler in this application sends JSON back to the client.
// Rather than repeating the same three lines (set header, set status,
// encode JSON) in every handler, we centralise them here.
//
// Two error shapes exist because the dashboard reads them differently:
//
//	{ "error": "...", "details": "..." }  — order creation, student reads
//	{ "ok": false, "error": "..." }       — payment verification
package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Error is the standard envelope returned for error cases.
// Details is optional and carries upstream error text.
type Error struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Verification is the body of POST /api/verify-payment.
type Verification struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// ─────────────────────────────────────────────────────────────────────────────
// WriteJSON writes a JSON-encoded response with the given HTTP status code.
//
// IMPORTANT ORDER: Header() → WriteHeader() → body writes.
// Once WriteHeader is called (or the first Write), headers are locked.
// ─────────────────────────────────────────────────────────────────────────────
func WriteJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// Message builds an Error from a plain message.
func Message(msg string) Error {
	return Error{Error: msg}
}

// MessageWithDetails builds an Error with upstream details attached.
func MessageWithDetails(msg, details string) Error {
	return Error{Error: msg, Details: details}
}

// GeneralError wraps any Go error into the standard Error shape.
// Use this for unexpected errors (decode failures, transport errors…).
func GeneralError(err error) Error {
	return Error{Error: err.Error()}
}

// Verified is the success body of the verification endpoint.
func Verified() Verification {
	return Verification{OK: true}
}

// NotVerified is the failure body of the verification endpoint.
func NotVerified(msg string) Verification {
	return Verification{OK: false, Error: msg}
}

// ─────────────────────────────────────────────────────────────────────────────
// ValidationMessage converts validator.FieldError values into one
// human-readable sentence, e.g.
//
//	"field razorpay_order_id is required, field razorpay_signature is required"
//
// Field names are the JSON names the client sent, not the Go field names.
// ─────────────────────────────────────────────────────────────────────────────
func ValidationMessage(errs validator.ValidationErrors) string {
	var errMessages []string

	for _, e := range errs {
		switch e.ActualTag() {
		case "required":
			errMessages = append(errMessages,
				fmt.Sprintf("field %s is required", e.Field()))
		case "email":
			errMessages = append(errMessages,
				fmt.Sprintf("field %s must be a valid email address", e.Field()))
		default:
			errMessages = append(errMessages,
				fmt.Sprintf("field %s is invalid", e.Field()))
		}
	}

	return strings.Join(errMessages, ", ")
}

// NewValidator returns a validator whose errors name fields by their
// json tag, so messages match what the client sent.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(JSONFieldName)
	return v
}

// JSONFieldName returns the json tag name of a struct field, or the Go
// name when there is no usable tag.
func JSONFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return fld.Name
	}
	return name
}
