package razorpay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aanand-mishra/students-paywall/internal/config"
	"github.com/aanand-mishra/students-paywall/internal/payment"
)

const orderJSON = `{"id":"order_Mx1","entity":"order","amount":1000,"amount_paid":0,"amount_due":1000,"currency":"INR","receipt":"stu_42_1700000000000","offer_id":null,"status":"created","attempts":0,"notes":[],"created_at":1700000000}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New(config.Razorpay{
		KeyID:     "rzp_test_key",
		KeySecret: "rzp_test_secret",
		APIURL:    srv.URL + "/v1",
	})
	c.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return c
}

func TestCreateOrder(t *testing.T) {
	var got orderRequest

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_test_key", user)
		assert.Equal(t, "rzp_test_secret", pass)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, orderJSON)
	})

	order, err := c.CreateOrder(context.Background(), 10, "42")
	require.NoError(t, err)

	assert.Equal(t, int64(1000), got.Amount)
	assert.Equal(t, "INR", got.Currency)
	assert.Equal(t, "stu_42_1700000000000", got.Receipt)
	assert.Equal(t, 1, got.PaymentCapture)

	assert.Equal(t, "order_Mx1", order.ID)
	assert.Equal(t, int64(1000), order.Amount)

	// The order goes back to the browser byte for byte, including
	// fields the struct does not model.
	out, err := json.Marshal(order)
	require.NoError(t, err)
	assert.JSONEq(t, orderJSON, string(out))
}

func TestCreateOrder_NotConfigured(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	for _, tc := range []struct{ key, secret string }{{"", "s"}, {"k", ""}, {"", ""}} {
		c.KeyID, c.KeySecret = tc.key, tc.secret
		_, err := c.CreateOrder(context.Background(), 10, "42")
		assert.ErrorIs(t, err, payment.ErrNotConfigured)
	}
	assert.False(t, called, "no request may be sent without credentials")
}

func TestCreateOrder_Upstream(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"code":"BAD_REQUEST_ERROR","description":"amount exceeds maximum"}}`)
	})

	_, err := c.CreateOrder(context.Background(), 1e9, "42")

	var upstream *payment.UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, http.StatusBadRequest, upstream.StatusCode)
	assert.Contains(t, upstream.Body, "amount exceeds maximum")
}

func TestCreateOrder_BadJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>")
	})

	_, err := c.CreateOrder(context.Background(), 10, "42")
	require.Error(t, err)

	var upstream *payment.UpstreamError
	assert.False(t, errors.As(err, &upstream))
}

func TestNewDefaults(t *testing.T) {
	c := New(config.Razorpay{KeyID: "k", KeySecret: "s"})
	assert.Equal(t, DefaultAPIURL, c.APIURL)
	assert.Equal(t, DefaultCurrency, c.Currency)
	assert.NotNil(t, c.HTTPClient)
}

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		in   float64
		want int64
	}{
		{10, 1000},
		{1, 100},
		{19.99, 1999},
		{0.125, 13},
		{12.5, 1250},
		{0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ToMinorUnits(tt.in), "amount %v", tt.in)
	}
}
