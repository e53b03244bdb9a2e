package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/invoice-reconciler/pkg/db"
)

// testStores bundles a fresh database with its stores.
type testStores struct {
	conn         *db.Connection
	transactions *db.TransactionStore
	invoices     *db.InvoiceStore
	procErrors   *db.ErrorStore
}

func newTestStores(t *testing.T) *testStores {
	t.Helper()

	conn, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.InitializeSchema(conn); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}

	return &testStores{
		conn:         conn,
		transactions: db.NewTransactionStore(conn),
		invoices:     db.NewInvoiceStore(conn),
		procErrors:   db.NewErrorStore(conn),
	}
}

func (s *testStores) ingest(t *testing.T, externalID string) db.Transaction {
	t.Helper()

	date := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	if _, err := s.transactions.Ingest(externalID, decimal.RequireFromString("250.00"), date, "Acme Corp"); err != nil {
		t.Fatalf("failed to ingest transaction: %v", err)
	}

	txn, err := s.transactions.GetByExternalID(externalID)
	if err != nil {
		t.Fatalf("failed to get transaction: %v", err)
	}
	if txn == nil {
		t.Fatalf("transaction %s not found", externalID)
	}
	return *txn
}

func (s *testStores) mustGet(t *testing.T, externalID string) db.Transaction {
	t.Helper()

	txn, err := s.transactions.GetByExternalID(externalID)
	if err != nil {
		t.Fatalf("failed to get transaction: %v", err)
	}
	if txn == nil {
		t.Fatalf("transaction %s not found", externalID)
	}
	return *txn
}

func (s *testStores) errorHistory(t *testing.T, txnID int64) []db.ProcessingError {
	t.Helper()

	history, err := s.procErrors.ListByTransaction(txnID)
	if err != nil {
		t.Fatalf("failed to list processing errors: %v", err)
	}
	return history
}

var errMalformed = errors.New("malformed response")

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// quickPolicy retries without actually sleeping.
func quickPolicy(maxAttempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  maxAttempts,
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		sleep:        func(ctx context.Context, d time.Duration) error { return ctx.Err() },
	}
}

// fakeSource scripts an invoice source. The script receives the 1-based
// call number.
type fakeSource struct {
	name   string
	script func(call int) (string, bool, error)
	calls  int
}

func (s *fakeSource) Name() string { return s.name }

func (s *fakeSource) Search(ctx context.Context, vendor string, amount decimal.Decimal, date time.Time) (string, bool, error) {
	s.calls++
	return s.script(s.calls)
}

func sourceHit(name, fileRef string) *fakeSource {
	return &fakeSource{name: name, script: func(int) (string, bool, error) {
		return fileRef, true, nil
	}}
}

func sourceMiss(name string) *fakeSource {
	return &fakeSource{name: name, script: func(int) (string, bool, error) {
		return "", false, nil
	}}
}

func sourceErr(name string, err error) *fakeSource {
	return &fakeSource{name: name, script: func(int) (string, bool, error) {
		return "", false, err
	}}
}

// fakeSink scripts an upload sink.
type fakeSink struct {
	script    func(call int) error
	calls     int
	submitted []string
}

func (s *fakeSink) Submit(ctx context.Context, txn db.Transaction, inv db.Invoice) error {
	s.calls++
	if s.script != nil {
		if err := s.script(s.calls); err != nil {
			return err
		}
	}
	s.submitted = append(s.submitted, txn.ExternalID)
	return nil
}

func okSink() *fakeSink { return &fakeSink{} }

// fakeBank scripts a transaction source.
type fakeBank struct {
	batches [][]RawTransaction
	err     error
	calls   int
}

func (b *fakeBank) FetchNew(ctx context.Context) ([]RawTransaction, error) {
	b.calls++
	if b.err != nil {
		return nil, b.err
	}
	if len(b.batches) == 0 {
		return nil, nil
	}
	batch := b.batches[0]
	b.batches = b.batches[1:]
	return batch, nil
}

func rawTxn(externalID string) RawTransaction {
	return RawTransaction{
		ExternalID: externalID,
		Amount:     decimal.RequireFromString("99.95"),
		Date:       time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
		Vendor:     "Acme Corp",
	}
}
