// Package sqlite provides a SQLite-backed implementation of the
// storage.Storage interface using Go's standard database/sql package.
//
// SQLite keeps the whole ledger in a single file next to the server:
// no network, no separate database process. The ledger is small (one
// row per order, one per verified payment), so that is plenty.
//
// The blank import below registers the sqlite3 driver with database/sql.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aanand-mishra/students-paywall/internal/storage"
	"github.com/aanand-mishra/students-paywall/internal/types"

	_ "github.com/mattn/go-sqlite3"
)

var _ storage.Storage = (*SQLite)(nil)

// SQLite is the concrete implementation of storage.Storage.
// A single *sql.DB is safe for concurrent use by multiple goroutines.
type SQLite struct {
	Db *sql.DB
}

// New opens the SQLite database at path, creates the ledger tables if
// they do not already exist, and returns a ready-to-use *SQLite.
// The parent directory is created when missing.
func New(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite.New: create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite.New: open db: %w", err)
	}

	// Schema:
	//   orders  — one row per gateway order this server created
	//   unlocks — one row per verified (order, payment) pair
	//
	// Timestamps are unix seconds (UTC).
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS orders (
			order_id   TEXT    PRIMARY KEY,
			student_id TEXT    NOT NULL,
			email      TEXT    NOT NULL DEFAULT '',
			amount     INTEGER NOT NULL,
			currency   TEXT    NOT NULL,
			receipt    TEXT    NOT NULL,
			created_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS unlocks (
			order_id    TEXT    NOT NULL,
			payment_id  TEXT    NOT NULL,
			student_id  TEXT    NOT NULL DEFAULT '',
			email       TEXT    NOT NULL DEFAULT '',
			verified_at INTEGER NOT NULL,
			PRIMARY KEY (order_id, payment_id)
		);

		CREATE INDEX IF NOT EXISTS unlocks_email_student
			ON unlocks (email, student_id);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite.New: create tables: %w", err)
	}

	return &SQLite{Db: db}, nil
}

// Close releases the underlying connection pool.
func (s *SQLite) Close() error {
	return s.Db.Close()
}

// SaveOrder inserts or refreshes an order row.
func (s *SQLite) SaveOrder(order types.Order, studentID, email string) error {
	stmt, err := s.Db.Prepare(`
		INSERT INTO orders (order_id, student_id, email, amount, currency, receipt, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (order_id) DO UPDATE SET
			student_id = excluded.student_id,
			email      = excluded.email
	`)
	if err != nil {
		return fmt.Errorf("SaveOrder: prepare: %w", err)
	}
	defer stmt.Close()

	createdAt := order.CreatedAt
	if createdAt == 0 {
		createdAt = time.Now().Unix()
	}

	_, err = stmt.Exec(order.ID, studentID, normalizeEmail(email),
		order.Amount, order.Currency, order.Receipt, createdAt)
	if err != nil {
		return fmt.Errorf("SaveOrder: exec: %w", err)
	}

	return nil
}

// GetOrder fetches exactly one order row by gateway order id.
func (s *SQLite) GetOrder(orderID string) (types.OrderRecord, error) {
	stmt, err := s.Db.Prepare(`
		SELECT order_id, student_id, email, amount, currency, receipt, created_at
		FROM orders WHERE order_id = ? LIMIT 1
	`)
	if err != nil {
		return types.OrderRecord{}, fmt.Errorf("GetOrder: prepare: %w", err)
	}
	defer stmt.Close()

	var (
		rec       types.OrderRecord
		createdAt int64
	)
	err = stmt.QueryRow(orderID).Scan(
		&rec.OrderID,
		&rec.StudentID,
		&rec.Email,
		&rec.Amount,
		&rec.Currency,
		&rec.Receipt,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.OrderRecord{}, fmt.Errorf("order %s: %w", orderID, storage.ErrNotFound)
		}
		return types.OrderRecord{}, fmt.Errorf("GetOrder: scan: %w", err)
	}
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()

	return rec, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// RecordUnlock stores a verified payment.
//
// INSERT OR IGNORE makes the call idempotent: verifying the same callback
// twice leaves a single row, and RowsAffected tells us it was a replay.
// The student id (and the email, when the caller has none) come from the
// order row written by SaveOrder.
// ─────────────────────────────────────────────────────────────────────────────
func (s *SQLite) RecordUnlock(orderID, paymentID, email string) (bool, error) {
	stmt, err := s.Db.Prepare(`
		INSERT OR IGNORE INTO unlocks (order_id, payment_id, student_id, email, verified_at)
		SELECT ?, ?,
			COALESCE((SELECT student_id FROM orders WHERE order_id = ?), ''),
			CASE WHEN ? <> '' THEN ?
			     ELSE COALESCE((SELECT email FROM orders WHERE order_id = ?), '')
			END,
			?
	`)
	if err != nil {
		return false, fmt.Errorf("RecordUnlock: prepare: %w", err)
	}
	defer stmt.Close()

	email = normalizeEmail(email)
	result, err := stmt.Exec(orderID, paymentID, orderID, email, email, orderID, time.Now().Unix())
	if err != nil {
		return false, fmt.Errorf("RecordUnlock: exec: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("RecordUnlock: rows affected: %w", err)
	}

	return n == 0, nil
}

// HasUnlock reports whether email has at least one verified payment for
// studentID whose order was for minAmount minor units or more. Only
// payments against an order this server created count. An empty email
// never has unlocks.
func (s *SQLite) HasUnlock(email, studentID string, minAmount int64) (bool, error) {
	email = normalizeEmail(email)
	if email == "" || studentID == "" {
		return false, nil
	}

	stmt, err := s.Db.Prepare(`
		SELECT EXISTS (
			SELECT 1 FROM unlocks u
			JOIN orders o ON o.order_id = u.order_id
			WHERE u.email = ? AND u.student_id = ? AND o.amount >= ?
		)
	`)
	if err != nil {
		return false, fmt.Errorf("HasUnlock: prepare: %w", err)
	}
	defer stmt.Close()

	var exists bool
	if err := stmt.QueryRow(email, studentID, minAmount).Scan(&exists); err != nil {
		return false, fmt.Errorf("HasUnlock: scan: %w", err)
	}

	return exists, nil
}

// ListUnlocks returns email's unlocks, newest first.
func (s *SQLite) ListUnlocks(email string) ([]types.Unlock, error) {
	stmt, err := s.Db.Prepare(`
		SELECT order_id, payment_id, student_id, email, verified_at
		FROM unlocks WHERE email = ?
		ORDER BY verified_at DESC, order_id
	`)
	if err != nil {
		return nil, fmt.Errorf("ListUnlocks: prepare: %w", err)
	}
	defer stmt.Close()

	rows, err := stmt.Query(normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("ListUnlocks: query: %w", err)
	}
	defer rows.Close()

	unlocks := make([]types.Unlock, 0)

	for rows.Next() {
		var (
			u          types.Unlock
			verifiedAt int64
		)
		if err := rows.Scan(
			&u.OrderID,
			&u.PaymentID,
			&u.StudentID,
			&u.Email,
			&verifiedAt,
		); err != nil {
			return nil, fmt.Errorf("ListUnlocks: scan row: %w", err)
		}
		u.VerifiedAt = time.Unix(verifiedAt, 0).UTC()
		unlocks = append(unlocks, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListUnlocks: rows iteration: %w", err)
	}

	return unlocks, nil
}

// Emails are compared case-insensitively everywhere.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
