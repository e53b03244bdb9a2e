// Package drive provides the Google Drive invoice source.
package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/shunichi-ikebuchi/invoice-reconciler/pkg/artifact"
	"github.com/shunichi-ikebuchi/invoice-reconciler/pkg/pipeline"
)

// dateWindow is how far a file's creation time may drift from the
// transaction date and still count as a match.
const dateWindow = 7 * 24 * time.Hour

// Source searches Google Drive for invoice documents matching a transaction.
type Source struct {
	service   *drive.Service
	artifacts *artifact.Store
}

// NewSource creates a Drive invoice source on an already-authenticated HTTP
// client (shared with the Gmail adapter).
func NewSource(ctx context.Context, httpClient *http.Client, artifacts *artifact.Store) (*Source, error) {
	service, err := drive.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create Drive service: %w", err)
	}

	return &Source{
		service:   service,
		artifacts: artifacts,
	}, nil
}

// Name implements pipeline.InvoiceSource.
func (s *Source) Name() string {
	return "drive"
}

// Search performs a full-text search for files mentioning the vendor and
// amount, keeps only files created within a week of the transaction date,
// and downloads the first match.
func (s *Source) Search(ctx context.Context, vendor string, amount decimal.Decimal, date time.Time) (string, bool, error) {
	query := buildQuery(vendor, amount)

	resp, err := s.service.Files.List().
		Q(query).
		Spaces("drive").
		Fields("files(id, name, createdTime)").
		PageSize(10).
		Context(ctx).
		Do()
	if err != nil {
		return "", false, classify(err)
	}

	for _, file := range resp.Files {
		created, err := time.Parse(time.RFC3339, file.CreatedTime)
		if err != nil {
			// Malformed response, not a missing invoice.
			return "", false, fmt.Errorf("malformed createdTime %q for file %s: %w", file.CreatedTime, file.Id, err)
		}
		if !withinWindow(created, date) {
			continue
		}

		data, err := s.download(ctx, file.Id)
		if err != nil {
			return "", false, err
		}

		path, err := s.artifacts.Save(vendor, date, file.Name, data)
		if err != nil {
			return "", false, err
		}
		return path, true, nil
	}

	return "", false, nil
}

func (s *Source) download(ctx context.Context, fileID string) ([]byte, error) {
	resp, err := s.service.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pipeline.Transient(fmt.Errorf("failed to read file %s: %w", fileID, err))
	}

	return data, nil
}

// buildQuery builds the Drive full-text query for a transaction.
func buildQuery(vendor string, amount decimal.Decimal) string {
	escaped := strings.ReplaceAll(vendor, "'", `\'`)
	return fmt.Sprintf("fullText contains '%s' and fullText contains '%s'", escaped, amount.StringFixed(2))
}

// withinWindow reports whether a file creation time is close enough to the
// transaction date.
func withinWindow(created, date time.Time) bool {
	diff := created.Sub(date)
	if diff < 0 {
		diff = -diff
	}
	return diff <= dateWindow
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

	return pipeline.Transient(err)
}
