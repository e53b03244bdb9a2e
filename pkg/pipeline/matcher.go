package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shunichi-ikebuchi/invoice-reconciler/pkg/db"
)

// Matcher tries a fixed, ordered list of invoice sources for one transaction
// and returns the first hit. Sources are never reordered at runtime; the
// conventional order is mail, chat, file store, then the vendor portal as a
// last resort.
type Matcher struct {
	sources []InvoiceSource
	retry   RetryPolicy
	logger  *slog.Logger
}

// Match is a successful invoice search result.
type Match struct {
	Source  db.InvoiceSourceName
	FileRef string
}

// NewMatcher creates a Matcher over the given sources, in priority order.
func NewMatcher(sources []InvoiceSource, retry RetryPolicy, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{
		sources: sources,
		retry:   retry,
		logger:  logger,
	}
}

// FindInvoice searches each source in order and short-circuits on the first
// hit; later sources are never invoked. A nil Match with a nil error means
// no source has the invoice, which is a normal outcome. A source that
// exhausts its retries on transient failures is treated as a miss for that
// source, while an authentication or unexpected failure is propagated, since
// it may indicate a misconfiguration rather than a missing invoice.
func (m *Matcher) FindInvoice(ctx context.Context, txn db.Transaction) (*Match, error) {
	for _, src := range m.sources {
		var fileRef string
		var found bool

		err := m.retry.Do(ctx, func(ctx context.Context) error {
			var err error
			fileRef, found, err = src.Search(ctx, txn.Vendor, txn.Amount, txn.Date)
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			if KindOf(err) == KindTransient {
				m.logger.Warn("invoice search exhausted retries, trying next source",
					"source", src.Name(),
					"external_id", txn.ExternalID,
					"error", err)
				continue
			}
			return nil, fmt.Errorf("searching %s for transaction %s: %w", src.Name(), txn.ExternalID, err)
		}

		if found {
			m.logger.Info("invoice found",
				"source", src.Name(),
				"external_id", txn.ExternalID,
				"file_ref", fileRef)
			return &Match{Source: db.InvoiceSourceName(src.Name()), FileRef: fileRef}, nil
		}

		m.logger.Debug("no invoice in source",
			"source", src.Name(),
			"external_id", txn.ExternalID)
	}

	return nil, nil
}
