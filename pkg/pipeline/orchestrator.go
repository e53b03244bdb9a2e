package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/shunichi-ikebuchi/invoice-reconciler/pkg/db"
)

// DefaultPollInterval is the pause between reconciliation cycles.
const DefaultPollInterval = 900 * time.Second

// Orchestrator runs the ingest-then-process reconciliation loop. A failure
// in one transaction never aborts the cycle, and a failed cycle never stops
// the loop; the process only exits when its context is cancelled.
type Orchestrator struct {
	source       TransactionSource
	transactions *db.TransactionStore
	processor    *Processor
	interval     time.Duration
	logger       *slog.Logger
}

// NewOrchestrator creates an Orchestrator. A non-positive interval falls
// back to DefaultPollInterval.
func NewOrchestrator(
	source TransactionSource,
	transactions *db.TransactionStore,
	processor *Processor,
	interval time.Duration,
	logger *slog.Logger,
) *Orchestrator {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		source:       source,
		transactions: transactions,
		processor:    processor,
		interval:     interval,
		logger:       logger,
	}
}

// Run executes reconciliation cycles until the context is cancelled. The
// loop sleeps the configured interval between cycles regardless of outcome.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("reconciliation loop started", "interval", o.interval)

	for {
		o.RunCycle(ctx)

		select {
		case <-ctx.Done():
			o.logger.Info("reconciliation loop stopped")
			return ctx.Err()
		case <-time.After(o.interval):
		}
	}
}

// RunCycle performs one full pass: ingest new transactions, then process
// everything still in flight. Ingestion always completes before any
// transaction is processed. Failures are logged and contained.
func (o *Orchestrator) RunCycle(ctx context.Context) {
	start := time.Now()

	if err := o.ingest(ctx); err != nil {
		o.logger.Error("ingestion failed", "error", err)
	}

	if err := o.processAll(ctx); err != nil {
		o.logger.Error("cycle aborted", "error", err)
		return
	}

	o.logger.Info("cycle complete", "elapsed", time.Since(start))
}

// ingest fetches new transactions and persists the ones not seen before.
// Duplicate external identifiers are silently skipped.
func (o *Orchestrator) ingest(ctx context.Context) error {
	raws, err := o.source.FetchNew(ctx)
	if err != nil {
		return err
	}

	created := 0
	for _, raw := range raws {
		ok, err := o.transactions.Ingest(raw.ExternalID, raw.Amount, raw.Date, raw.Vendor)
		if err != nil {
			o.logger.Error("failed to persist transaction",
				"external_id", raw.ExternalID,
				"error", err)
			continue
		}
		if ok {
			created++
		}
	}

	o.logger.Info("ingestion complete", "fetched", len(raws), "created", created)
	return nil
}

// processAll processes matched transactions left over from an interrupted
// cycle first, then the pending backlog, sequentially. Returning an error
// here only happens on store failure or cancellation.
func (o *Orchestrator) processAll(ctx context.Context) error {
	for _, status := range []db.TransactionStatus{db.StatusMatched, db.StatusPending} {
		txns, err := o.transactions.ListByStatus(status)
		if err != nil {
			return err
		}

		for _, txn := range txns {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := o.processor.Process(ctx, txn); err != nil {
				// Already recorded by the processor; keep the cycle going.
				continue
			}
		}
	}

	return nil
}
