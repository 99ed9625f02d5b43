// Package storage defines the Storage interface — the contract for the
// unlock ledger.
//
// The ledger remembers two things this service did itself:
//
//   - orders it created at the gateway (and for which student / user), and
//   - payments it verified, i.e. which user unlocked which student.
//
// Student records are NOT stored here; they live in the Supabase project.
//
// Handlers depend only on this interface, so tests can pass a fake and
// the SQLite backend can be swapped without touching the HTTP layer.
package storage

import (
	"errors"

	"github.com/aanand-mishra/students-paywall/internal/types"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Storage is the ledger contract.
type Storage interface {
	// SaveOrder records an order created at the gateway. Saving the same
	// order id twice updates the student id and email.
	SaveOrder(order types.Order, studentID string, email string) error

	// GetOrder fetches a saved order. Returns ErrNotFound if absent.
	GetOrder(orderID string) (types.OrderRecord, error)

	// RecordUnlock stores a verified (order, payment) pair. The student
	// and email are copied from the saved order when there is one and
	// email is empty. replay is true when the pair was already recorded;
	// the existing row is left untouched.
	RecordUnlock(orderID string, paymentID string, email string) (replay bool, err error)

	// HasUnlock reports whether email has paid for studentID with an
	// order of at least minAmount minor units.
	HasUnlock(email string, studentID string, minAmount int64) (bool, error)

	// ListUnlocks returns every unlock for email, newest first.
	// Returns an empty slice (not nil) when there are none.
	ListUnlocks(email string) ([]types.Unlock, error)

	Close() error
}
