// Package types holds all shared data structures (models) used across
// the application. Keeping them in one place prevents import cycles —
// handlers, storage, the payment gateway client and the Supabase client
// can all import types without depending on each other.
package types

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// UnknownStudent is the identifier used when the browser sends no usable
// student id with an order request.
const UnknownStudent = "unknown"

// ─────────────────────────────────────────────────────────────────────────────
// Amount is a price in major currency units (rupees, not paise).
//
// The dashboard is not strict about the JSON type it sends, so Amount
// accepts both forms:
//
//	{ "amount": 10 }     → 10
//	{ "amount": "12.5" } → 12.5
//
// Anything else (null, "", "abc", true, an object) decodes as 0 so the
// handler can fall back to the default price instead of rejecting the call.
// ─────────────────────────────────────────────────────────────────────────────
type Amount float64

func (a *Amount) UnmarshalJSON(data []byte) error {
	*a = 0

	raw := bytes.TrimSpace(data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	// Quoted numbers: strip the quotes and parse what is inside.
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		raw = []byte(strings.TrimSpace(s))
	}

	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}

	*a = Amount(f)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// StudentRef is an opaque student identifier.
//
// Supabase returns student_id as a number for some tables and as text for
// others, so StudentRef decodes from either and always encodes as a string.
// A missing, null, empty, false or zero value decodes as "".
// ─────────────────────────────────────────────────────────────────────────────
type StudentRef string

func (s *StudentRef) UnmarshalJSON(data []byte) error {
	*s = ""

	raw := bytes.TrimSpace(data)
	switch {
	case len(raw) == 0, bytes.Equal(raw, []byte("null")), bytes.Equal(raw, []byte("false")):
		return nil
	case raw[0] == '"':
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return err
		}
		*s = StudentRef(str)
	default:
		// Numbers keep their literal text so large ids are not mangled
		// by a float64 round trip.
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil
		}
		if f, err := n.Float64(); err == nil && f == 0 {
			return nil
		}
		*s = StudentRef(n.String())
	}
	return nil
}

func (s StudentRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// OrDefault returns the identifier or UnknownStudent when it is empty.
func (s StudentRef) OrDefault() string {
	if s == "" {
		return UnknownStudent
	}
	return string(s)
}

// CreateOrderRequest is the body of POST /api/create-order.
//
// AccessToken is optional: the dashboard sends the Supabase session token
// so the order can be attributed to a user in the unlock ledger.
type CreateOrderRequest struct {
	Amount      Amount     `json:"amount"`
	StudentID   StudentRef `json:"studentId"`
	AccessToken string     `json:"accessToken,omitempty"`
}

// VerifyPaymentRequest is the body of POST /api/verify-payment.
// The three razorpay_* fields are exactly what the checkout widget hands
// to its success callback.
type VerifyPaymentRequest struct {
	OrderID     CallbackField `json:"razorpay_order_id"   validate:"required"`
	PaymentID   CallbackField `json:"razorpay_payment_id" validate:"required"`
	Signature   CallbackField `json:"razorpay_signature"  validate:"required"`
	AccessToken string        `json:"accessToken,omitempty"`
}

// CallbackField is an opaque value from the checkout callback. Strings
// are taken as-is; any other JSON value (number, bool, object) is kept as
// its compact JSON text, so a malformed callback fails the signature
// check instead of the decode. null decodes as "".
type CallbackField string

func (f *CallbackField) UnmarshalJSON(data []byte) error {
	*f = ""

	raw := bytes.TrimSpace(data)
	switch {
	case len(raw) == 0, bytes.Equal(raw, []byte("null")):
		return nil
	case raw[0] == '"':
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return err
		}
		*f = CallbackField(str)
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return err
		}
		*f = CallbackField(buf.String())
	}
	return nil
}

// Order is the order object returned by the payment gateway.
// It is handed back to the browser verbatim, so every field the
// checkout widget might read is kept.
type Order struct {
	ID         string  `json:"id"`
	Entity     string  `json:"entity"`
	Amount     int64   `json:"amount"`
	AmountPaid int64   `json:"amount_paid"`
	AmountDue  int64   `json:"amount_due"`
	Currency   string  `json:"currency"`
	Receipt    string  `json:"receipt"`
	OfferID    *string `json:"offer_id"`
	Status     string  `json:"status"`
	Attempts   int     `json:"attempts"`
	CreatedAt  int64   `json:"created_at"`

	// Notes is an object, or [] when the order has none.
	Notes json.RawMessage `json:"notes,omitempty"`

	// Raw holds the gateway's response bytes. When set, the order
	// encodes as exactly those bytes.
	Raw json.RawMessage `json:"-"`
}

func (o Order) MarshalJSON() ([]byte, error) {
	if len(o.Raw) > 0 {
		return o.Raw, nil
	}
	type plain Order
	return json.Marshal(plain(o))
}

// OrderRecord is an order as remembered by the unlock ledger.
type OrderRecord struct {
	OrderID   string    `json:"order_id"`
	StudentID string    `json:"student_id"`
	Email     string    `json:"email,omitempty"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Receipt   string    `json:"receipt"`
	CreatedAt time.Time `json:"created_at"`
}

// Unlock is a verified payment: Email paid to see StudentID's details.
type Unlock struct {
	OrderID    string    `json:"order_id"`
	PaymentID  string    `json:"payment_id"`
	StudentID  string    `json:"student_id"`
	Email      string    `json:"email,omitempty"`
	VerifiedAt time.Time `json:"verified_at"`
}

// User is the identity behind a Supabase access token.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Student is a row of the external students table. This service never
// writes students; the schema is owned by the Supabase project.
// ─────────────────────────────────────────────────────────────────────────────
type Student struct {
	StudentID      StudentRef `json:"student_id"`
	Name           string     `json:"name"`
	Father         string     `json:"father"`
	Class          string     `json:"class"`
	Semester       string     `json:"semester"`
	RollNo         StudentRef `json:"roll_no"`
	UniversityRoll StudentRef `json:"university_roll"`
	Phone          StudentRef `json:"phone"`
	PhotoURL       *string    `json:"photo_url"`
	Address        string     `json:"address"`
}

// Normalize fixes up values that the spreadsheet import left behind,
// e.g. phone numbers stored as "9876543210.0".
func (s Student) Normalize() Student {
	s.Phone = StudentRef(strings.TrimSuffix(string(s.Phone), ".0"))
	return s
}

// StudentPreview is what everyone sees before paying: the photo and the
// first three characters of the name. Everything else stays hidden.
type StudentPreview struct {
	StudentID   StudentRef `json:"student_id"`
	NamePreview string     `json:"name_preview"`
	PhotoURL    *string    `json:"photo_url"`
	Locked      bool       `json:"locked"`
}

// Preview builds the locked view of a student.
func (s Student) Preview() StudentPreview {
	name := "—"
	if r := []rune(s.Name); len(r) > 0 {
		if len(r) > 3 {
			r = r[:3]
		}
		name = string(r) + "..."
	}
	return StudentPreview{
		StudentID:   s.StudentID,
		NamePreview: name,
		PhotoURL:    s.PhotoURL,
		Locked:      true,
	}
}

// StudentFilter mirrors the dashboard sidebar: free-text search, class,
// semester, the "missing photo" checkbox and 1-based pagination.
type StudentFilter struct {
	Search       string
	Class        string
	Semester     string
	MissingPhoto bool
	Page         int
	Size         int
}

// StudentPage is one page of locked previews.
type StudentPage struct {
	Students []StudentPreview `json:"students"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	Size     int              `json:"size"`
}
