package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus represents the lifecycle status of a bank transaction.
type TransactionStatus string

const (
	StatusPending  TransactionStatus = "pending"
	StatusMatched  TransactionStatus = "matched"
	StatusUploaded TransactionStatus = "uploaded"
	StatusFailed   TransactionStatus = "failed"
)

// dateFormat is the storage layout for transaction dates.
const dateFormat = "2006-01-02"

// Transaction represents one bank ledger entry.
type Transaction struct {
	ID         int64
	ExternalID string
	Amount     decimal.Decimal
	Date       time.Time
	Vendor     string
	Status     TransactionStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TransactionStore manages transaction records.
type TransactionStore struct {
	conn *Connection
}

// NewTransactionStore creates a new TransactionStore instance.
func NewTransactionStore(conn *Connection) *TransactionStore {
	return &TransactionStore{conn: conn}
}

// Ingest inserts a new transaction with status=pending.
// Ingesting an external ID that already exists is a no-op; the return value
// reports whether a row was actually created.
func (s *TransactionStore) Ingest(externalID string, amount decimal.Decimal, date time.Time, vendor string) (bool, error) {
	query := `
		INSERT INTO transactions (external_id, amount, date, vendor, status)
		VALUES (?, ?, ?, ?, 'pending')
		ON CONFLICT(external_id) DO NOTHING
	`

	result, err := s.conn.Exec(query, externalID, amount.String(), date.Format(dateFormat), vendor)
	if err != nil {
		return false, fmt.Errorf("failed to ingest transaction: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows > 0, nil
}

// GetByExternalID retrieves a transaction by its bank-side identifier.
// Returns nil if no such transaction exists.
func (s *TransactionStore) GetByExternalID(externalID string) (*Transaction, error) {
	query := `
		SELECT id, external_id, amount, date, vendor, status, created_at, updated_at
		FROM transactions
		WHERE external_id = ?
	`

	txn, err := scanTransaction(s.conn.QueryRow(query, externalID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return txn, nil
}

// ListByStatus retrieves all transactions with the given status, oldest first.
func (s *TransactionStore) ListByStatus(status TransactionStatus) ([]Transaction, error) {
	query := `
		SELECT id, external_id, amount, date, vendor, status, created_at, updated_at
		FROM transactions
		WHERE status = ?
		ORDER BY id ASC
	`

	rows, err := s.conn.Query(query, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txns []Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, *txn)
	}

	return txns, rows.Err()
}

// UpdateStatus sets the status of a transaction.
func (s *TransactionStore) UpdateStatus(id int64, status TransactionStatus) error {
	query := `
		UPDATE transactions
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	result, err := s.conn.Exec(query, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update transaction status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("transaction %d not found", id)
	}

	return nil
}

// CountByStatus returns the number of transactions per status.
func (s *TransactionStore) CountByStatus() (map[TransactionStatus]int, error) {
	query := `SELECT status, COUNT(*) FROM transactions GROUP BY status`

	rows, err := s.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}
	defer rows.Close()

	counts := make(map[TransactionStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[TransactionStatus(status)] = count
	}

	return counts, rows.Err()
}

// scanner abstracts sql.Row and sql.Rows for scanTransaction.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row scanner) (*Transaction, error) {
	var txn Transaction
	var amountStr, dateStr, statusStr string

	err := row.Scan(
		&txn.ID,
		&txn.ExternalID,
		&amountStr,
		&dateStr,
		&txn.Vendor,
		&statusStr,
		&txn.CreatedAt,
		&txn.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("invalid stored amount %q: %w", amountStr, err)
	}
	date, err := time.Parse(dateFormat, dateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid stored date %q: %w", dateStr, err)
	}

	txn.Amount = amount
	txn.Date = date
	txn.Status = TransactionStatus(statusStr)
	return &txn, nil
}
