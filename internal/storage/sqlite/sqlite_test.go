package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aanand-mishra/students-paywall/internal/storage"
	"github.com/aanand-mishra/students-paywall/internal/types"
)

func setup(t *testing.T) *SQLite {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "nested", "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func order(id string) types.Order {
	return types.Order{
		ID:        id,
		Amount:    1000,
		Currency:  "INR",
		Receipt:   "stu_42_1700000000000",
		CreatedAt: 1700000000,
	}
}

func TestSaveAndGetOrder(t *testing.T) {
	db := setup(t)

	require.NoError(t, db.SaveOrder(order("order_1"), "42", " Ana@Example.com "))

	rec, err := db.GetOrder("order_1")
	require.NoError(t, err)
	assert.Equal(t, "order_1", rec.OrderID)
	assert.Equal(t, "42", rec.StudentID)
	assert.Equal(t, "ana@example.com", rec.Email)
	assert.Equal(t, int64(1000), rec.Amount)
	assert.Equal(t, "INR", rec.Currency)
	assert.Equal(t, int64(1700000000), rec.CreatedAt.Unix())

	// Saving again refreshes the attribution.
	require.NoError(t, db.SaveOrder(order("order_1"), "43", "bo@example.com"))
	rec, err = db.GetOrder("order_1")
	require.NoError(t, err)
	assert.Equal(t, "43", rec.StudentID)
	assert.Equal(t, "bo@example.com", rec.Email)
}

func TestGetOrder_NotFound(t *testing.T) {
	db := setup(t)

	_, err := db.GetOrder("missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRecordUnlock(t *testing.T) {
	db := setup(t)
	require.NoError(t, db.SaveOrder(order("order_1"), "42", "ana@example.com"))

	replay, err := db.RecordUnlock("order_1", "pay_1", "")
	require.NoError(t, err)
	assert.False(t, replay)

	replay, err = db.RecordUnlock("order_1", "pay_1", "")
	require.NoError(t, err)
	assert.True(t, replay, "second verification of the same pair is a replay")

	ok, err := db.HasUnlock("ANA@example.com", "42", 1000)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.HasUnlock("ana@example.com", "43", 1000)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = db.HasUnlock("", "42", 0)
	require.NoError(t, err)
	assert.False(t, ok)

	unlocks, err := db.ListUnlocks("ana@example.com")
	require.NoError(t, err)
	require.Len(t, unlocks, 1)
	assert.Equal(t, "order_1", unlocks[0].OrderID)
	assert.Equal(t, "pay_1", unlocks[0].PaymentID)
	assert.Equal(t, "42", unlocks[0].StudentID)
}

func TestRecordUnlock_CallerEmailWins(t *testing.T) {
	db := setup(t)
	require.NoError(t, db.SaveOrder(order("order_1"), "42", ""))

	_, err := db.RecordUnlock("order_1", "pay_1", "Bo@Example.com")
	require.NoError(t, err)

	ok, err := db.HasUnlock("bo@example.com", "42", 1000)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHasUnlock_MinAmount(t *testing.T) {
	db := setup(t)

	cheap := order("order_cheap")
	cheap.Amount = 1
	require.NoError(t, db.SaveOrder(cheap, "42", "eve@example.com"))
	_, err := db.RecordUnlock("order_cheap", "pay_cheap", "")
	require.NoError(t, err)

	ok, err := db.HasUnlock("eve@example.com", "42", 1000)
	require.NoError(t, err)
	assert.False(t, ok, "a 1 paise order must not unlock a 10 rupee student")

	ok, err = db.HasUnlock("eve@example.com", "42", 1)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, db.SaveOrder(order("order_full"), "42", "eve@example.com"))
	_, err = db.RecordUnlock("order_full", "pay_full", "")
	require.NoError(t, err)

	ok, err = db.HasUnlock("eve@example.com", "42", 1000)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRecordUnlock_UnknownOrder(t *testing.T) {
	db := setup(t)

	replay, err := db.RecordUnlock("order_x", "pay_x", "ana@example.com")
	require.NoError(t, err)
	assert.False(t, replay)

	unlocks, err := db.ListUnlocks("ana@example.com")
	require.NoError(t, err)
	require.Len(t, unlocks, 1)
	assert.Equal(t, "", unlocks[0].StudentID)
}

func TestListUnlocks_Empty(t *testing.T) {
	db := setup(t)

	unlocks, err := db.ListUnlocks("nobody@example.com")
	require.NoError(t, err)
	assert.NotNil(t, unlocks)
	assert.Empty(t, unlocks)
}
