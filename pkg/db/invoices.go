package db

import (
	"database/sql"
	"fmt"
	"time"
)

// InvoiceSourceName identifies the search venue that produced an invoice.
type InvoiceSourceName string

const (
	SourceGmail  InvoiceSourceName = "gmail"
	SourceSlack  InvoiceSourceName = "slack"
	SourceDrive  InvoiceSourceName = "drive"
	SourcePortal InvoiceSourceName = "portal"
)

// UploadStatus represents the upload state of an invoice.
type UploadStatus string

const (
	UploadPending  UploadStatus = "pending"
	UploadUploaded UploadStatus = "uploaded"
	UploadFailed   UploadStatus = "failed"
)

// Invoice represents a supporting document matched to a transaction.
// Source and file reference are write-once; only the upload status mutates.
type Invoice struct {
	ID            int64
	TransactionID int64
	FileRef       string
	Source        InvoiceSourceName
	UploadStatus  UploadStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// InvoiceStore manages invoice records.
type InvoiceStore struct {
	conn *Connection
}

// NewInvoiceStore creates a new InvoiceStore instance.
func NewInvoiceStore(conn *Connection) *InvoiceStore {
	return &InvoiceStore{conn: conn}
}

// Attach creates the invoice for a transaction and moves the transaction to
// matched in a single database transaction, so a crash cannot leave an
// invoice without the matching status or vice versa.
func (s *InvoiceStore) Attach(transactionID int64, fileRef string, source InvoiceSourceName) (*Invoice, error) {
	var invoiceID int64

	err := s.conn.Transaction(func(tx *sql.Tx) error {
		result, err := tx.Exec(`
			INSERT INTO invoices (transaction_id, file_ref, source, upload_status)
			VALUES (?, ?, ?, 'pending')
		`, transactionID, fileRef, string(source))
		if err != nil {
			return fmt.Errorf("failed to insert invoice: %w", err)
		}

		invoiceID, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get invoice ID: %w", err)
		}

		_, err = tx.Exec(`
			UPDATE transactions
			SET status = 'matched', updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, transactionID)
		if err != nil {
			return fmt.Errorf("failed to mark transaction matched: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.Get(invoiceID)
}

// SetUploadResult records the outcome of the upload stage: the invoice and
// its transaction move to their terminal states together.
func (s *InvoiceStore) SetUploadResult(transactionID, invoiceID int64, uploaded bool) error {
	invoiceStatus := UploadFailed
	txnStatus := StatusFailed
	if uploaded {
		invoiceStatus = UploadUploaded
		txnStatus = StatusUploaded
	}

	return s.conn.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			UPDATE invoices
			SET upload_status = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, string(invoiceStatus), invoiceID)
		if err != nil {
			return fmt.Errorf("failed to update invoice upload status: %w", err)
		}

		_, err = tx.Exec(`
			UPDATE transactions
			SET status = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, string(txnStatus), transactionID)
		if err != nil {
			return fmt.Errorf("failed to update transaction status: %w", err)
		}

		return nil
	})
}

// Get retrieves an invoice by ID.
func (s *InvoiceStore) Get(id int64) (*Invoice, error) {
	query := `
		SELECT id, transaction_id, file_ref, source, upload_status, created_at, updated_at
		FROM invoices
		WHERE id = ?
	`

	inv, err := scanInvoice(s.conn.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}

	return inv, nil
}

// GetByTransaction retrieves the invoice for a transaction.
// Returns nil if the transaction has no invoice.
func (s *InvoiceStore) GetByTransaction(transactionID int64) (*Invoice, error) {
	query := `
		SELECT id, transaction_id, file_ref, source, upload_status, created_at, updated_at
		FROM invoices
		WHERE transaction_id = ?
	`

	inv, err := scanInvoice(s.conn.QueryRow(query, transactionID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice by transaction: %w", err)
	}

	return inv, nil
}

// Count returns invoice totals grouped by upload status.
func (s *InvoiceStore) Count() (map[UploadStatus]int, error) {
	query := `SELECT upload_status, COUNT(*) FROM invoices GROUP BY upload_status`

	rows, err := s.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to count invoices: %w", err)
	}
	defer rows.Close()

	counts := make(map[UploadStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan invoice count: %w", err)
		}
		counts[UploadStatus(status)] = count
	}

	return counts, rows.Err()
}

func scanInvoice(row scanner) (*Invoice, error) {
	var inv Invoice
	var source, status string

	err := row.Scan(
		&inv.ID,
		&inv.TransactionID,
		&inv.FileRef,
		&source,
		&status,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	inv.Source = InvoiceSourceName(source)
	inv.UploadStatus = UploadStatus(status)
	return &inv, nil
}
