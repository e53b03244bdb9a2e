package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shunichi-ikebuchi/invoice-reconciler/pkg/db"
)

// Processor drives a single transaction through the match and upload stages.
// Every state change is persisted immediately, so a crash mid-step leaves
// the transaction in a consistent prior state and the next cycle resumes it.
type Processor struct {
	transactions *db.TransactionStore
	invoices     *db.InvoiceStore
	procErrors   *db.ErrorStore
	matcher      *Matcher
	sink         UploadSink
	retry        RetryPolicy
	logger       *slog.Logger
}

// NewProcessor creates a Processor.
func NewProcessor(
	transactions *db.TransactionStore,
	invoices *db.InvoiceStore,
	procErrors *db.ErrorStore,
	matcher *Matcher,
	sink UploadSink,
	retry RetryPolicy,
	logger *slog.Logger,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		transactions: transactions,
		invoices:     invoices,
		procErrors:   procErrors,
		matcher:      matcher,
		sink:         sink,
		retry:        retry,
		logger:       logger,
	}
}

// Process runs the per-transaction pipeline. Any failure is contained here:
// the transaction is forced to failed, exactly one processing error is
// recorded, and the returned error only informs the caller's logging. A
// cancelled context is the one exception; the transaction is left in its
// current persisted state so the next cycle can resume it.
func (p *Processor) Process(ctx context.Context, txn db.Transaction) error {
	err := p.process(ctx, txn)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return err
	}

	p.fail(txn, err)
	return err
}

func (p *Processor) process(ctx context.Context, txn db.Transaction) error {
	switch txn.Status {
	case db.StatusPending:
		return p.matchAndUpload(ctx, txn)
	case db.StatusMatched:
		return p.resumeUpload(ctx, txn)
	default:
		// Terminal transactions are never reprocessed automatically.
		return nil
	}
}

// matchAndUpload is the full pipeline for a pending transaction.
func (p *Processor) matchAndUpload(ctx context.Context, txn db.Transaction) error {
	match, err := p.matcher.FindInvoice(ctx, txn)
	if err != nil {
		return err
	}

	if match == nil {
		// A genuine miss across every source is not an error: no invoice
		// row, no processing error, just a failed transaction.
		p.logger.Warn("no invoice found for transaction",
			"external_id", txn.ExternalID,
			"vendor", txn.Vendor)
		return transition(p.transactions, txn, db.StatusFailed)
	}

	inv, err := p.invoices.Attach(txn.ID, match.FileRef, match.Source)
	if err != nil {
		return err
	}
	txn.Status = db.StatusMatched

	return p.upload(ctx, txn, *inv)
}

// resumeUpload picks up a transaction that was matched but not yet uploaded,
// typically after a crash or shutdown between the two stages.
func (p *Processor) resumeUpload(ctx context.Context, txn db.Transaction) error {
	inv, err := p.invoices.GetByTransaction(txn.ID)
	if err != nil {
		return err
	}
	if inv == nil {
		return fmt.Errorf("transaction %s is matched but has no invoice", txn.ExternalID)
	}
	if inv.UploadStatus != db.UploadPending {
		return fmt.Errorf("transaction %s is matched but its invoice upload is already %s", txn.ExternalID, inv.UploadStatus)
	}

	p.logger.Info("resuming upload for matched transaction", "external_id", txn.ExternalID)
	return p.upload(ctx, txn, *inv)
}

// upload submits the pair to the sink. Upload failure is a terminal outcome
// handled here: the invoice row survives with upload_status=failed so the
// found document remains available for manual recovery, and exactly one
// processing error is recorded.
func (p *Processor) upload(ctx context.Context, txn db.Transaction, inv db.Invoice) error {
	err := p.retry.Do(ctx, func(ctx context.Context) error {
		return p.sink.Submit(ctx, txn, inv)
	})
	if err == nil {
		p.logger.Info("invoice uploaded",
			"external_id", txn.ExternalID,
			"source", inv.Source)
		return p.invoices.SetUploadResult(txn.ID, inv.ID, true)
	}

	if ctx.Err() != nil {
		return err
	}

	if dbErr := p.invoices.SetUploadResult(txn.ID, inv.ID, false); dbErr != nil {
		return dbErr
	}
	p.recordError(txn, err)
	p.logger.Error("invoice upload failed",
		"external_id", txn.ExternalID,
		"kind", KindOf(err),
		"error", err)
	return nil
}

// fail is the pipeline boundary: force the transaction to failed and record
// exactly one processing error for the failure.
func (p *Processor) fail(txn db.Transaction, cause error) {
	if !IsTerminal(txn.Status) {
		if err := p.transactions.UpdateStatus(txn.ID, db.StatusFailed); err != nil {
			p.logger.Error("failed to mark transaction failed",
				"external_id", txn.ExternalID,
				"error", err)
		}
	}
	p.recordError(txn, cause)
	p.logger.Error("transaction processing failed",
		"external_id", txn.ExternalID,
		"kind", KindOf(cause),
		"error", cause)
}

func (p *Processor) recordError(txn db.Transaction, cause error) {
	if err := p.procErrors.Record(txn.ID, string(KindOf(cause)), cause.Error(), AttemptsOf(cause)); err != nil {
		p.logger.Error("failed to record processing error",
			"external_id", txn.ExternalID,
			"error", err)
	}
}
