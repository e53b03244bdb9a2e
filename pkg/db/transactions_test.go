package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// newTestConn opens a fresh database in a temp directory with the schema
// applied.
func newTestConn(t *testing.T) *Connection {
	t.Helper()

	conn, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := InitializeSchema(conn); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}

	return conn
}

func mustIngest(t *testing.T, store *TransactionStore, externalID string) *Transaction {
	t.Helper()

	date := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	created, err := store.Ingest(externalID, decimal.RequireFromString("149.99"), date, "Acme Corp")
	if err != nil {
		t.Fatalf("failed to ingest transaction: %v", err)
	}
	if !created {
		t.Fatalf("expected transaction %s to be created", externalID)
	}

	txn, err := store.GetByExternalID(externalID)
	if err != nil {
		t.Fatalf("failed to get transaction: %v", err)
	}
	if txn == nil {
		t.Fatalf("transaction %s not found after ingest", externalID)
	}
	return txn
}

func TestIngestIdempotent(t *testing.T) {
	conn := newTestConn(t)
	store := NewTransactionStore(conn)

	date := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	amount := decimal.RequireFromString("1234.56")

	created, err := store.Ingest("TXN-001", amount, date, "Acme Corp")
	if err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}
	if !created {
		t.Error("first ingest should create a row")
	}

	// Same external ID again, even with different details.
	created, err = store.Ingest("TXN-001", decimal.RequireFromString("99.00"), date, "Other Vendor")
	if err != nil {
		t.Fatalf("second ingest failed: %v", err)
	}
	if created {
		t.Error("second ingest of the same external ID should be a no-op")
	}

	txn, err := store.GetByExternalID("TXN-001")
	if err != nil {
		t.Fatalf("failed to get transaction: %v", err)
	}
	if txn == nil {
		t.Fatal("transaction not found")
	}
	if !txn.Amount.Equal(amount) {
		t.Errorf("amount = %s, expected original %s", txn.Amount, amount)
	}
	if txn.Vendor != "Acme Corp" {
		t.Errorf("vendor = %q, expected original %q", txn.Vendor, "Acme Corp")
	}
	if txn.Status != StatusPending {
		t.Errorf("status = %s, expected pending", txn.Status)
	}
}

func TestIngestPreservesExactAmount(t *testing.T) {
	conn := newTestConn(t)
	store := NewTransactionStore(conn)

	tests := []struct {
		name   string
		amount string
	}{
		{"cents", "0.01"},
		{"large", "1000000.99"},
		{"no decimals", "500"},
		{"repeating-prone", "0.10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount := decimal.RequireFromString(tt.amount)
			date := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

			if _, err := store.Ingest("AMT-"+tt.name, amount, date, "vendor"); err != nil {
				t.Fatalf("ingest failed: %v", err)
			}

			txn, err := store.GetByExternalID("AMT-" + tt.name)
			if err != nil {
				t.Fatalf("get failed: %v", err)
			}
			if !txn.Amount.Equal(amount) {
				t.Errorf("amount round-trip = %s, expected %s", txn.Amount, amount)
			}
		})
	}
}

func TestListByStatusOrdersByIngestion(t *testing.T) {
	conn := newTestConn(t)
	store := NewTransactionStore(conn)

	for _, id := range []string{"TXN-A", "TXN-B", "TXN-C"} {
		mustIngest(t, store, id)
	}

	pending, err := store.ListByStatus(StatusPending)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending transactions, got %d", len(pending))
	}
	for i, expected := range []string{"TXN-A", "TXN-B", "TXN-C"} {
		if pending[i].ExternalID != expected {
			t.Errorf("pending[%d] = %s, expected %s", i, pending[i].ExternalID, expected)
		}
	}
}

func TestUpdateStatus(t *testing.T) {
	conn := newTestConn(t)
	store := NewTransactionStore(conn)

	txn := mustIngest(t, store, "TXN-001")

	if err := store.UpdateStatus(txn.ID, StatusMatched); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	got, err := store.GetByExternalID("TXN-001")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != StatusMatched {
		t.Errorf("status = %s, expected matched", got.Status)
	}

	// Unknown ID is an error, not a silent no-op.
	if err := store.UpdateStatus(9999, StatusFailed); err == nil {
		t.Error("expected error updating a missing transaction")
	}
}

func TestCountByStatus(t *testing.T) {
	conn := newTestConn(t)
	store := NewTransactionStore(conn)

	a := mustIngest(t, store, "TXN-A")
	mustIngest(t, store, "TXN-B")

	if err := store.UpdateStatus(a.ID, StatusFailed); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	counts, err := store.CountByStatus()
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if counts[StatusPending] != 1 {
		t.Errorf("pending = %d, expected 1", counts[StatusPending])
	}
	if counts[StatusFailed] != 1 {
		t.Errorf("failed = %d, expected 1", counts[StatusFailed])
	}
}
