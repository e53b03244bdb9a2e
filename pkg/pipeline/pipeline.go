// Package pipeline implements the reconciliation core: the orchestration
// loop that ingests bank transactions, drives each one through a bounded
// state machine, searches an ordered list of invoice sources for a matching
// document, and uploads matched pairs to the accounting platform.
//
// External systems are consumed through the narrow capability interfaces
// below; the concrete adapters live in their own packages and are wired
// together by the hosting command.
package pipeline

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/shunichi-ikebuchi/invoice-reconciler/pkg/db"
)

// RawTransaction is one bank ledger entry as reported by the transaction
// source, before it is persisted.
type RawTransaction struct {
	ExternalID string
	Amount     decimal.Decimal
	Date       time.Time
	Vendor     string
}

// TransactionSource feeds new bank transactions into the pipeline.
type TransactionSource interface {
	FetchNew(ctx context.Context) ([]RawTransaction, error)
}

// InvoiceSource searches one venue (mail, chat, file store, vendor portal)
// for a document supporting a transaction. The result is tri-state: a hit
// returns (ref, true, nil), a clean miss returns ("", false, nil), and a
// failed search returns a classified error. A miss is a normal outcome and
// must not be reported as an error.
type InvoiceSource interface {
	// Name identifies the venue; it is persisted as the invoice source.
	Name() string
	Search(ctx context.Context, vendor string, amount decimal.Decimal, date time.Time) (fileRef string, found bool, err error)
}

// UploadSink submits a matched transaction/invoice pair to the accounting
// platform.
type UploadSink interface {
	Submit(ctx context.Context, txn db.Transaction, inv db.Invoice) error
}
