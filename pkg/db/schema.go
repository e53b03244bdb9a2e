// Package db provides SQLite persistence for transactions, invoices and
// processing errors.
package db

// Schema defines the SQL statements to create database tables.
const Schema = `
-- Bank transactions awaiting reconciliation
CREATE TABLE IF NOT EXISTS transactions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    external_id TEXT NOT NULL UNIQUE,  -- Bank-side transaction identifier
    amount TEXT NOT NULL,              -- Exact decimal, stored as string
    date TEXT NOT NULL,                -- YYYY-MM-DD
    vendor TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending'
        CHECK(status IN ('pending', 'matched', 'uploaded', 'failed')),
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_transactions_status
    ON transactions(status);

-- Supporting documents matched to transactions (at most one per transaction)
CREATE TABLE IF NOT EXISTS invoices (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    transaction_id INTEGER NOT NULL UNIQUE REFERENCES transactions(id),
    file_ref TEXT NOT NULL,            -- Path to the downloaded artifact
    source TEXT NOT NULL
        CHECK(source IN ('gmail', 'slack', 'drive', 'portal')),
    upload_status TEXT NOT NULL DEFAULT 'pending'
        CHECK(upload_status IN ('pending', 'uploaded', 'failed')),
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Append-only audit log of processing failures
CREATE TABLE IF NOT EXISTS processing_errors (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    transaction_id INTEGER NOT NULL REFERENCES transactions(id),
    error_kind TEXT NOT NULL,
    message TEXT,
    retry_count INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_processing_errors_transaction
    ON processing_errors(transaction_id);
`

// InitializeSchema initializes the database schema.
// It creates all tables if they don't exist.
func InitializeSchema(conn *Connection) error {
	if _, err := conn.Exec(Schema); err != nil {
		return err
	}
	return nil
}
