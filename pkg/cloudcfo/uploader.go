// Package cloudcfo submits matched invoices to the CloudCFO accounting
// system through its web upload form.
package cloudcfo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"github.com/shunichi-ikebuchi/invoice-reconciler/pkg/db"
	"github.com/shunichi-ikebuchi/invoice-reconciler/pkg/pipeline"
)

const uploadTimeout = 120 * time.Second

// Config represents the configuration for the CloudCFO uploader.
type Config struct {
	URL      string
	Username string
	Password string
}

// Uploader drives the CloudCFO upload form with headless Chrome.
type Uploader struct {
	config Config
	logger *slog.Logger
}

// NewUploader creates a CloudCFO upload sink.
func NewUploader(config Config, logger *slog.Logger) *Uploader {
	return &Uploader{
		config: config,
		logger: logger,
	}
}

// Submit implements pipeline.UploadSink. It logs in, fills the upload form
// with the transaction details, attaches the invoice file, and verifies
// the success banner appeared.
func (u *Uploader) Submit(ctx context.Context, txn db.Transaction, inv db.Invoice) error {
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

	chromedpCtx, cancel = context.WithTimeout(chromedpCtx, uploadTimeout)
	defer cancel()

	if err := u.login(chromedpCtx); err != nil {
		return err
	}

	if err := u.fillAndSubmit(chromedpCtx, txn, inv); err != nil {
		return err
	}

	u.logger.Info("uploaded invoice to cloudcfo",
		"transaction_id", txn.ExternalID,
		"invoice_id", inv.ID,
	)
	return nil
}

func (u *Uploader) login(ctx context.Context) error {
	err := chromedp.Run(ctx,
		chromedp.Navigate(u.config.URL),
		chromedp.SendKeys(`input[name="username"]`, u.config.Username, chromedp.ByQuery),
		chromedp.SendKeys(`input[name="password"]`, u.config.Password, chromedp.ByQuery),
		chromedp.Click(`button[type="submit"]`, chromedp.ByQuery),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return pipeline.Transient(fmt.Errorf("cloudcfo login failed: %w", err))
	}

	var errorBanners []*cdp.Node
	if err := chromedp.Run(ctx, chromedp.Nodes(".error-message", &errorBanners, chromedp.ByQuery, chromedp.AtLeast(0))); err != nil {
		return pipeline.Transient(fmt.Errorf("cloudcfo login check failed: %w", err))
	}
	if len(errorBanners) > 0 {
		return pipeline.AuthFailuref("cloudcfo rejected the login credentials")
	}

	return nil
}

func (u *Uploader) fillAndSubmit(ctx context.Context, txn db.Transaction, inv db.Invoice) error {
	err := chromedp.Run(ctx,
		chromedp.Click(`a[href*="upload"]`, chromedp.ByQuery),
		chromedp.WaitReady(`input[name="amount"]`, chromedp.ByQuery),
		chromedp.SendKeys(`input[name="amount"]`, txn.Amount.StringFixed(2), chromedp.ByQuery),
		chromedp.SendKeys(`input[name="date"]`, txn.Date.Format("2006-01-02"), chromedp.ByQuery),
		chromedp.SendKeys(`input[name="vendor"]`, txn.Vendor, chromedp.ByQuery),
		chromedp.SetUploadFiles(`input[type="file"]`, []string{inv.FileRef}, chromedp.ByQuery),
		chromedp.Click(`button[type="submit"]`, chromedp.ByQuery),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return pipeline.Transient(fmt.Errorf("cloudcfo upload for %s failed: %w", txn.ExternalID, err))
	}

	// The form redirects to a confirmation page on success. Anything
	// else means the upload cannot be trusted to have landed.
	var successBanners []*cdp.Node
	if err := chromedp.Run(ctx, chromedp.Nodes(".success-message", &successBanners, chromedp.ByQuery, chromedp.AtLeast(0))); err != nil {
		return pipeline.Transient(fmt.Errorf("cloudcfo upload check for %s failed: %w", txn.ExternalID, err))
	}
	if len(successBanners) == 0 {
		return pipeline.UploadVerificationf("no upload confirmation for transaction %s", txn.ExternalID)
	}

	return nil
}
