package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signer checks checkout callback signatures.
//
// The gateway signs every successful payment with the account's key
// secret:
//
//	signature = hex( HMAC-SHA256( secret, order_id + "|" + payment_id ) )
//
// Only the server knows the secret, so a matching signature proves the
// callback was not forged by the browser.
type Signer struct {
	Secret string
}

// NewSigner returns a Signer for the given key secret.
func NewSigner(secret string) *Signer {
	return &Signer{Secret: secret}
}

// Sign returns the hex digest the gateway would send for this pair.
func (s *Signer) Sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(s.Secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify returns nil when signature matches the pair.
//
// Errors:
//
//	ErrNotConfigured    — no secret, nothing can be verified
//	ErrInvalidSignature — digest mismatch (tampered or forged callback)
func (s *Signer) Verify(orderID, paymentID, signature string) error {
	if s == nil || s.Secret == "" {
		return ErrNotConfigured
	}

	// hmac.Equal runs in constant time so the comparison does not leak
	// how many leading characters of a guessed signature were right.
	expected := s.Sign(orderID, paymentID)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}

	return nil
}
