package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"

	"github.com/shunichi-ikebuchi/invoice-reconciler/pkg/artifact"
	"github.com/shunichi-ikebuchi/invoice-reconciler/pkg/pipeline"
)

// Source searches Gmail for invoice emails matching a transaction and
// downloads the first usable attachment.
type Source struct {
	service   *gmail.Service
	userID    string
	artifacts *artifact.Store
}

// NewSource creates a Gmail invoice source.
func NewSource(client *Client, artifacts *artifact.Store) *Source {
	return &Source{
		service:   client.Service(),
		userID:    client.UserID(),
		artifacts: artifacts,
	}
}

// Name implements pipeline.InvoiceSource.
func (s *Source) Name() string {
	return "gmail"
}

// Search looks for a message from the vendor mentioning the amount, sent on
// or after the transaction date, carrying a document attachment. The first
// matching attachment is saved as the invoice artifact.
func (s *Source) Search(ctx context.Context, vendor string, amount decimal.Decimal, date time.Time) (string, bool, error) {
	query := buildQuery(vendor, amount, date)

	resp, err := s.service.Users.Messages.List(s.userID).Q(query).MaxResults(10).Context(ctx).Do()
	if err != nil {
		return "", false, classify(err)
	}

	for _, m := range resp.Messages {
		msg, err := s.service.Users.Messages.Get(s.userID, m.Id).Format("full").Context(ctx).Do()
		if err != nil {
			return "", false, classify(err)
		}
		if msg.Payload == nil {
			continue
		}

		att := findAttachment(msg.Payload)
		if att == nil {
			continue
		}

		body, err := s.service.Users.Messages.Attachments.Get(s.userID, m.Id, att.Body.AttachmentId).Context(ctx).Do()
		if err != nil {
			return "", false, classify(err)
		}

		data, err := base64.URLEncoding.DecodeString(body.Data)
		if err != nil {
			// Malformed response, not a missing invoice.
			return "", false, fmt.Errorf("malformed attachment data for message %s: %w", m.Id, err)
		}

		path, err := s.artifacts.Save(vendor, date, att.Filename, data)
		if err != nil {
			return "", false, err
		}
		return path, true, nil
	}

	return "", false, nil
}

// buildQuery builds the Gmail search query for a transaction.
func buildQuery(vendor string, amount decimal.Decimal, date time.Time) string {
	return fmt.Sprintf("from:%s $%s after:%s", vendor, amount.StringFixed(2), date.Format("2006/01/02"))
}

// findAttachment recursively finds the first document attachment.
func findAttachment(part *gmail.MessagePart) *gmail.MessagePart {
	if part == nil {
		return nil
	}

	if part.Filename != "" && part.Body != nil && part.Body.AttachmentId != "" {
		if isDocument(part.Filename) {
			return part
		}
	}

	for _, p := range part.Parts {
		if found := findAttachment(p); found != nil {
			return found
		}
	}

	return nil
}

// isDocument reports whether a filename looks like an invoice document.
func isDocument(filename string) bool {
	lower := strings.ToLower(filename)
	return strings.HasSuffix(lower, ".pdf") ||
		strings.HasSuffix(lower, ".jpg") ||
		strings.HasSuffix(lower, ".png")
}

// classify maps Google API failures onto the pipeline error taxonomy.
func classify(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden:
			return pipeline.AuthFailure(err)
		case gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500:
			return pipeline.Transient(err)
		}
		return err
	}

	// Transport-level failures (timeouts, resets) are retryable.
	return pipeline.Transient(err)
}
