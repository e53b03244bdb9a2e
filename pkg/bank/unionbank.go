// Package bank fetches bank transactions by scraping the UnionBank
// online banking portal with headless Chrome.
package bank

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/invoice-reconciler/pkg/pipeline"
)

const fetchTimeout = 120 * time.Second

// Config represents the configuration for the UnionBank scraper.
type Config struct {
	URL      string
	Username string
	Password string
}

// Scraper logs into the UnionBank portal and extracts the transaction
// statement table.
type Scraper struct {
	config Config
	logger *slog.Logger
}

// NewScraper creates a UnionBank transaction scraper.
func NewScraper(config Config, logger *slog.Logger) *Scraper {
	return &Scraper{
		config: config,
		logger: logger,
	}
}

// FetchNew implements pipeline.TransactionSource. It returns every
// transaction visible on the statement page; dedup happens at ingestion.
func (s *Scraper) FetchNew(ctx context.Context) ([]pipeline.RawTransaction, error) {
	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
		)...,
	)
	defer cancel()

	chromedpCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	chromedpCtx, cancel = context.WithTimeout(chromedpCtx, fetchTimeout)
	defer cancel()

	if err := s.login(chromedpCtx); err != nil {
		return nil, err
	}

	rows, err := s.extractRows(chromedpCtx)
	if err != nil {
		return nil, pipeline.Transient(fmt.Errorf("failed to extract transactions: %w", err))
	}

	transactions := make([]pipeline.RawTransaction, 0, len(rows))
	for i, row := range rows {
		txn, err := parseStatementRow(row)
		if err != nil {
			s.logger.Warn("skipping malformed statement row", "row", i, "error", err)
			continue
		}
		transactions = append(transactions, txn)
	}

	s.logger.Info("fetched bank transactions", "count", len(transactions))
	return transactions, nil
}

// login submits the credentials and verifies no error banner appeared.
func (s *Scraper) login(ctx context.Context) error {
	err := chromedp.Run(ctx,
		chromedp.Navigate(s.config.URL),
		chromedp.SendKeys(`input[name="username"]`, s.config.Username, chromedp.ByQuery),
		chromedp.SendKeys(`input[name="password"]`, s.config.Password, chromedp.ByQuery),
		chromedp.Click(`button[type="submit"]`, chromedp.ByQuery),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return pipeline.Transient(fmt.Errorf("unionbank login failed: %w", err))
	}

	var errorBanners []*cdp.Node
	if err := chromedp.Run(ctx, chromedp.Nodes(".error-message", &errorBanners, chromedp.ByQuery, chromedp.AtLeast(0))); err != nil {
		return pipeline.Transient(fmt.Errorf("unionbank login check failed: %w", err))
	}
	if len(errorBanners) > 0 {
		return pipeline.AuthFailuref("unionbank rejected the login credentials")
	}

	return nil
}

// extractRows opens the transactions page and pulls each table row's cell
// text via the DOM.
func (s *Scraper) extractRows(ctx context.Context) ([][]string, error) {
	var rows [][]string

	err := chromedp.Run(ctx,
		chromedp.Click(`a[href*="transactions"]`, chromedp.ByQuery),
		chromedp.WaitReady("table", chromedp.ByQuery),
		chromedp.Evaluate(`Array.from(document.querySelectorAll('table tr')).slice(1).map(
			tr => Array.from(tr.querySelectorAll('td')).map(td => td.innerText)
		)`, &rows),
	)
	if err != nil {
		return nil, err
	}

	return rows, nil
}

// parseStatementRow converts a statement table row into a transaction.
// Columns are date, amount, vendor, transaction reference.
func parseStatementRow(cells []string) (pipeline.RawTransaction, error) {
	if len(cells) < 4 {
		return pipeline.RawTransaction{}, fmt.Errorf("expected 4 columns, got %d", len(cells))
	}

	date, err := time.Parse("2006-01-02", strings.TrimSpace(cells[0]))
	if err != nil {
		return pipeline.RawTransaction{}, fmt.Errorf("invalid date %q: %w", cells[0], err)
	}

	amount, err := parseAmount(cells[1])
	if err != nil {
		return pipeline.RawTransaction{}, err
	}

	vendor := strings.TrimSpace(cells[2])
	if vendor == "" {
		return pipeline.RawTransaction{}, fmt.Errorf("empty vendor column")
	}

	externalID := strings.TrimSpace(cells[3])
	if externalID == "" {
		return pipeline.RawTransaction{}, fmt.Errorf("empty transaction reference column")
	}

	return pipeline.RawTransaction{
		ExternalID: externalID,
		Amount:     amount,
		Date:       date,
		Vendor:     vendor,
	}, nil
}

// parseAmount parses a statement amount like "$1,234.56" into an exact
// decimal.
func parseAmount(text string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, ",", "")

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid amount %q: %w", text, err)
	}

	return amount, nil
}
