package portal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/invoice-reconciler/pkg/artifact"
	"github.com/shunichi-ikebuchi/invoice-reconciler/pkg/pipeline"
)

const scrapeTimeout = 90 * time.Second

// Scraper is the billing-portal invoice source. Vendors without a portal
// definition are skipped without error so the search falls through to the
// next source.
type Scraper struct {
	config    *Config
	artifacts *artifact.Store
	logger    *slog.Logger
}

// NewScraper creates a portal scraper from loaded vendor definitions.
func NewScraper(config *Config, artifacts *artifact.Store, logger *slog.Logger) *Scraper {
	return &Scraper{
		config:    config,
		artifacts: artifacts,
		logger:    logger,
	}
}

// Name implements pipeline.InvoiceSource.
func (s *Scraper) Name() string {
	return "portal"
}

// Search logs into the vendor's billing portal, searches for the invoice,
// and captures it as a PDF.
func (s *Scraper) Search(ctx context.Context, vendor string, amount decimal.Decimal, date time.Time) (string, bool, error) {
	vc, ok := s.config.Lookup(vendor)
	if !ok {
		s.logger.Debug("no portal configuration for vendor", "vendor", vendor)
		return "", false, nil
	}

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

	chromedpCtx, cancel = context.WithTimeout(chromedpCtx, scrapeTimeout)
	defer cancel()

	if err := s.login(chromedpCtx, vendor, vc); err != nil {
		return "", false, err
	}

	found, err := s.locateInvoice(chromedpCtx, vc, amount, date)
	if err != nil {
		return "", false, pipeline.Transient(fmt.Errorf("portal search for %s failed: %w", vendor, err))
	}
	if !found {
		return "", false, nil
	}

	pdfData, err := s.captureInvoice(chromedpCtx, vc)
	if err != nil {
		return "", false, pipeline.Transient(fmt.Errorf("portal capture for %s failed: %w", vendor, err))
	}

	filename := fmt.Sprintf("%s_portal_invoice.pdf", date.Format("2006-01-02"))
	path, err := s.artifacts.Save(vendor, date, filename, pdfData)
	if err != nil {
		return "", false, err
	}

	return path, true, nil
}

// login navigates to the portal login page and submits credentials from
// the environment variables named in the vendor config.
func (s *Scraper) login(ctx context.Context, vendor string, vc VendorConfig) error {
	actions := []chromedp.Action{
		chromedp.Navigate(vc.LoginURL),
	}

	for _, field := range vc.LoginFields {
		value := os.Getenv(field.EnvVar)
		if value == "" {
			return pipeline.AuthFailuref("missing credential %s for portal %s", field.EnvVar, vendor)
		}
		actions = append(actions, chromedp.SendKeys(field.Selector, value, chromedp.ByQuery))
	}

	actions = append(actions,
		chromedp.Click(vc.LoginButton, chromedp.ByQuery),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)

	if err := chromedp.Run(ctx, actions...); err != nil {
		return pipeline.Transient(fmt.Errorf("portal login for %s failed: %w", vendor, err))
	}

	// A login form still present after submit means the credentials
	// were rejected.
	var loginForms []*cdp.Node
	if err := chromedp.Run(ctx, chromedp.Nodes(vc.LoginButton, &loginForms, chromedp.ByQuery, chromedp.AtLeast(0))); err != nil {
		return pipeline.Transient(fmt.Errorf("portal login check for %s failed: %w", vendor, err))
	}
	if len(loginForms) > 0 {
		return pipeline.AuthFailuref("portal login for %s was rejected", vendor)
	}

	return nil
}

// locateInvoice navigates to the invoice listing, runs the search form if
// one is configured, and reports whether the invoice link is present.
func (s *Scraper) locateInvoice(ctx context.Context, vc VendorConfig, amount decimal.Decimal, date time.Time) (bool, error) {
	var actions []chromedp.Action

	switch {
	case vc.InvoicePageURL != "":
		actions = append(actions, chromedp.Navigate(vc.InvoicePageURL))
	case vc.InvoicePageLink != "":
		actions = append(actions,
			chromedp.Click(vc.InvoicePageLink, chromedp.ByQuery),
			chromedp.WaitReady("body", chromedp.ByQuery),
		)
	}

	if len(vc.SearchForm) > 0 {
		for _, field := range vc.SearchForm {
			switch field.Type {
			case "date":
				actions = append(actions, chromedp.SendKeys(field.Selector, date.Format("2006-01-02"), chromedp.ByQuery))
			case "amount":
				actions = append(actions, chromedp.SendKeys(field.Selector, amount.StringFixed(2), chromedp.ByQuery))
			}
		}
		actions = append(actions,
			chromedp.Click(vc.SearchButton, chromedp.ByQuery),
			chromedp.WaitReady("body", chromedp.ByQuery),
		)
	}

	var links []*cdp.Node
	actions = append(actions, chromedp.Nodes(vc.InvoiceLink, &links, chromedp.ByQuery, chromedp.AtLeast(0)))

	if err := chromedp.Run(ctx, actions...); err != nil {
		return false, err
	}

	return len(links) > 0, nil
}

// captureInvoice opens the invoice document and prints the page to PDF.
func (s *Scraper) captureInvoice(ctx context.Context, vc VendorConfig) ([]byte, error) {
	var pdfData []byte

	err := chromedp.Run(ctx,
		chromedp.Click(vc.InvoiceLink, chromedp.ByQuery),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdfData, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPreferCSSPageSize(true).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, err
	}

	return pdfData, nil
}
