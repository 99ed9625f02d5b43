package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmount_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in   string
		want Amount
	}{
		{`10`, 10},
		{`"12.5"`, 12.5},
		{`" 7 "`, 7},
		{`null`, 0},
		{`""`, 0},
		{`"abc"`, 0},
		{`true`, 0},
		{`{"x":1}`, 0},
	}
	for _, tt := range tests {
		var req CreateOrderRequest
		require.NoError(t, json.Unmarshal([]byte(`{"amount":`+tt.in+`}`), &req), tt.in)
		assert.Equal(t, tt.want, req.Amount, tt.in)
	}
}

func TestStudentRef(t *testing.T) {
	tests := []struct {
		in   string
		want StudentRef
	}{
		{`42`, "42"},
		{`"S-42"`, "S-42"},
		{`12345678901234567890`, "12345678901234567890"},
		{`0`, ""},
		{`null`, ""},
		{`false`, ""},
		{`""`, ""},
	}
	for _, tt := range tests {
		var req CreateOrderRequest
		require.NoError(t, json.Unmarshal([]byte(`{"studentId":`+tt.in+`}`), &req), tt.in)
		assert.Equal(t, tt.want, req.StudentID, tt.in)
	}

	assert.Equal(t, UnknownStudent, StudentRef("").OrDefault())
	assert.Equal(t, "42", StudentRef("42").OrDefault())

	out, err := json.Marshal(StudentRef("42"))
	require.NoError(t, err)
	assert.Equal(t, `"42"`, string(out))
}

func TestOrder_MarshalJSON(t *testing.T) {
	raw := `{"id":"order_1","amount":1000,"currency":"INR","extra":"kept"}`
	out, err := json.Marshal(Order{ID: "order_1", Raw: json.RawMessage(raw)})
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))

	out, err = json.Marshal(Order{ID: "order_2", Amount: 500, Currency: "INR"})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"id":"order_2"`)
	assert.Contains(t, string(out), `"amount":500`)
}

func TestStudent_Preview(t *testing.T) {
	url := "https://x/1.png"

	p := Student{StudentID: "1", Name: "Ramesh", Father: "Suresh", PhotoURL: &url}.Preview()
	assert.Equal(t, StudentPreview{StudentID: "1", NamePreview: "Ram...", PhotoURL: &url, Locked: true}, p)

	assert.Equal(t, "Ab...", Student{Name: "Ab"}.Preview().NamePreview)
	assert.Equal(t, "राम...", Student{Name: "रामेश"}.Preview().NamePreview)
	assert.Equal(t, "—", Student{}.Preview().NamePreview)
}

func TestStudent_Normalize(t *testing.T) {
	assert.Equal(t, StudentRef("9876543210"), Student{Phone: "9876543210.0"}.Normalize().Phone)
	assert.Equal(t, StudentRef("9876543210"), Student{Phone: "9876543210"}.Normalize().Phone)
}

func TestCallbackField(t *testing.T) {
	tests := []struct {
		in   string
		want CallbackField
	}{
		{`"order_1"`, "order_1"},
		{`123`, "123"},
		{`true`, "true"},
		{`{ "a" : 1 }`, `{"a":1}`},
		{`null`, ""},
	}
	for _, tt := range tests {
		var req VerifyPaymentRequest
		require.NoError(t, json.Unmarshal([]byte(`{"razorpay_order_id":`+tt.in+`}`), &req), tt.in)
		assert.Equal(t, tt.want, req.OrderID, tt.in)
	}
}
