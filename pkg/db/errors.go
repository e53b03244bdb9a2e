package db

import (
	"database/sql"
	"fmt"
	"time"
)

// ProcessingError is an append-only audit record of a failure encountered
// while processing a transaction. Rows are never mutated or deleted.
type ProcessingError struct {
	ID            int64
	TransactionID int64
	ErrorKind     string
	Message       string
	RetryCount    int
	CreatedAt     time.Time
}

// ErrorStore manages processing error records.
type ErrorStore struct {
	conn *Connection
}

// NewErrorStore creates a new ErrorStore instance.
func NewErrorStore(conn *Connection) *ErrorStore {
	return &ErrorStore{conn: conn}
}

// Record appends a processing error for a transaction.
func (s *ErrorStore) Record(transactionID int64, errorKind, message string, retryCount int) error {
	query := `
		INSERT INTO processing_errors (transaction_id, error_kind, message, retry_count)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.conn.Exec(query, transactionID, errorKind, message, retryCount)
	if err != nil {
		return fmt.Errorf("failed to record processing error: %w", err)
	}

	return nil
}

// ListByTransaction retrieves the failure history of a transaction,
// oldest first.
func (s *ErrorStore) ListByTransaction(transactionID int64) ([]ProcessingError, error) {
	query := `
		SELECT id, transaction_id, error_kind, message, retry_count, created_at
		FROM processing_errors
		WHERE transaction_id = ?
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.conn.Query(query, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list processing errors: %w", err)
	}
	defer rows.Close()

	var errs []ProcessingError
	for rows.Next() {
		var pe ProcessingError
		if err := rows.Scan(
			&pe.ID,
			&pe.TransactionID,
			&pe.ErrorKind,
			&pe.Message,
			&pe.RetryCount,
			&pe.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan processing error: %w", err)
		}
		errs = append(errs, pe)
	}

	return errs, rows.Err()
}

// CountAll returns the total number of recorded processing errors.
func (s *ErrorStore) CountAll() (int, error) {
	var count int
	err := s.conn.QueryRow(`SELECT COUNT(*) FROM processing_errors`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count processing errors: %w", err)
	}
	return count, nil
}

// Stats represents reconciliation statistics.
type Stats struct {
	Transactions map[TransactionStatus]int
	Invoices     map[UploadStatus]int
	Errors       int
	LastActivity sql.NullString
}

// GetStats retrieves reconciliation statistics across all tables.
func GetStats(conn *Connection) (*Stats, error) {
	stats := &Stats{}

	txns, err := NewTransactionStore(conn).CountByStatus()
	if err != nil {
		return nil, err
	}
	stats.Transactions = txns

	invoices, err := NewInvoiceStore(conn).Count()
	if err != nil {
		return nil, err
	}
	stats.Invoices = invoices

	stats.Errors, err = NewErrorStore(conn).CountAll()
	if err != nil {
		return nil, err
	}

	err = conn.QueryRow(`SELECT MAX(updated_at) FROM transactions`).Scan(&stats.LastActivity)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get last activity: %w", err)
	}

	return stats, nil
}
