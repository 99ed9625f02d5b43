// Package razorpay is a minimal client for the Razorpay Orders API.
//
// Only order creation is needed: the checkout widget does the charging
// in the browser, and the callback signature is checked locally by
// payment.Signer.
package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/aanand-mishra/students-paywall/internal/config"
	"github.com/aanand-mishra/students-paywall/internal/payment"
	"github.com/aanand-mishra/students-paywall/internal/types"
)

const (
	DefaultAPIURL   = "https://api.razorpay.com/v1"
	DefaultCurrency = "INR"
)

var _ payment.Gateway = (*Client)(nil)

// Client implements payment.Gateway against the Razorpay REST API.
type Client struct {
	KeyID      string
	KeySecret  string
	APIURL     string
	Currency   string
	HTTPClient *http.Client

	// now is overridden in tests to get a stable receipt.
	now func() time.Time
}

// New builds a Client from the razorpay: section of the config.
// Empty keys are allowed here; CreateOrder reports them per call.
func New(cfg config.Razorpay) *Client {
	c := &Client{
		KeyID:      cfg.KeyID,
		KeySecret:  cfg.KeySecret,
		APIURL:     cfg.APIURL,
		Currency:   cfg.Currency,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		now:        time.Now,
	}
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if c.Currency == "" {
		c.Currency = DefaultCurrency
	}
	return c
}

// orderRequest is the body of POST /orders.
type orderRequest struct {
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Receipt        string `json:"receipt"`
	PaymentCapture int    `json:"payment_capture"`
}

// ─────────────────────────────────────────────────────────────────────────────
// CreateOrder creates an auto-captured order for amount (major units).
//
// Errors:
//
//	payment.ErrNotConfigured — key id or secret missing, no request sent
//	*payment.UpstreamError   — Razorpay answered with a non-2xx status
//	anything else            — transport or decode failure
//
// ─────────────────────────────────────────────────────────────────────────────
func (c *Client) CreateOrder(ctx context.Context, amount float64, studentID string) (types.Order, error) {
	if c.KeyID == "" || c.KeySecret == "" {
		return types.Order{}, payment.ErrNotConfigured
	}

	now := time.Now
	if c.now != nil {
		now = c.now
	}

	body, err := json.Marshal(orderRequest{
		Amount:         ToMinorUnits(amount),
		Currency:       c.Currency,
		Receipt:        fmt.Sprintf("stu_%s_%d", studentID, now().UnixMilli()),
		PaymentCapture: 1,
	})
	if err != nil {
		return types.Order{}, fmt.Errorf("razorpay.CreateOrder: encode: %w", err)
	}

	url := strings.TrimRight(c.APIURL, "/") + "/orders"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return types.Order{}, fmt.Errorf("razorpay.CreateOrder: build request: %w", err)
	}
	// Basic auth with key id / key secret is how Razorpay authenticates
	// server-to-server calls.
	req.SetBasicAuth(c.KeyID, c.KeySecret)
	req.Header.Set("Content-Type", "application/json")

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return types.Order{}, fmt.Errorf("razorpay.CreateOrder: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return types.Order{}, &payment.UpstreamError{
			StatusCode: resp.StatusCode,
			Body:       string(text),
		}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Order{}, fmt.Errorf("razorpay.CreateOrder: read body: %w", err)
	}

	var order types.Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return types.Order{}, fmt.Errorf("razorpay.CreateOrder: decode: %w", err)
	}
	order.Raw = raw

	return order, nil
}

// ToMinorUnits converts rupees to paise, rounding half up:
// 10 → 1000, 19.99 → 1999, 0.125 → 13.
func ToMinorUnits(amount float64) int64 {
	return int64(math.Floor(amount*100 + 0.5))
}
