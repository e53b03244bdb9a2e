// Package slack provides the Slack invoice source, searching shared files
// in the finance channels via the Slack Web API.
package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/invoice-reconciler/pkg/artifact"
	"github.com/shunichi-ikebuchi/invoice-reconciler/pkg/pipeline"
)

const defaultAPIURL = "https://slack.com/api"

// dateWindow is how far a file's shared timestamp may drift from the
// transaction date and still count as a match.
const dateWindow = 7 * 24 * time.Hour

// ClientConfig represents the configuration for the Slack client.
type ClientConfig struct {
	APIURL  string // Default: https://slack.com/api
	Token   string
	Timeout time.Duration // Default: 30 seconds
}

// Client is a Slack Web API client covering the file search endpoints.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	artifacts  *artifact.Store
}

// NewClient creates a new Slack client.
func NewClient(config ClientConfig, artifacts *artifact.Store) *Client {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	baseURL := config.APIURL
	if baseURL == "" {
		baseURL = defaultAPIURL
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:   baseURL,
		token:     config.Token,
		artifacts: artifacts,
	}
}

// Name implements pipeline.InvoiceSource.
func (c *Client) Name() string {
	return "slack"
}

// Search looks for files shared with the vendor name and amount in their
// title or surrounding message, keeps only files shared within a week of
// the transaction date, and downloads the first match.
func (c *Client) Search(ctx context.Context, vendor string, amount decimal.Decimal, date time.Time) (string, bool, error) {
	query := fmt.Sprintf("%s %s", vendor, amount.StringFixed(2))

	files, err := c.searchFiles(ctx, query)
	if err != nil {
		return "", false, err
	}

	for _, file := range files {
		shared := time.Unix(file.Timestamp, 0)
		if !withinWindow(shared, date) {
			continue
		}
		if file.URLPrivate == "" {
			continue
		}

		data, err := c.download(ctx, file.URLPrivate)
		if err != nil {
			return "", false, err
		}

		path, err := c.artifacts.Save(vendor, date, file.Name, data)
		if err != nil {
			return "", false, err
		}
		return path, true, nil
	}

	return "", false, nil
}

// searchFiles calls search.files and returns the matching file entries.
func (c *Client) searchFiles(ctx context.Context, query string) ([]File, error) {
	endpoint := fmt.Sprintf("%s/search.files", c.baseURL)

	queryParams := url.Values{}
	queryParams.Set("query", query)
	queryParams.Set("count", "10")

	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s?%s", endpoint, queryParams.Encode()), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pipeline.Transient(fmt.Errorf("failed to make request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode)
	}

	var searchResp SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if !searchResp.OK {
		return nil, classifyAPIError(searchResp.Error)
	}

	return searchResp.Files.Matches, nil
}

// download fetches a file's private URL with the bot token.
func (c *Client) download(ctx context.Context, fileURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pipeline.Transient(fmt.Errorf("failed to download file: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pipeline.Transient(fmt.Errorf("failed to read file body: %w", err))
	}

	return data, nil
}

// withinWindow reports whether a shared timestamp is close enough to the
// transaction date.
func withinWindow(shared, date time.Time) bool {
	diff := shared.Sub(date)
	if diff < 0 {
		diff = -diff
	}
	return diff <= dateWindow
}

// classifyStatus maps an HTTP status onto the pipeline error taxonomy.
func classifyStatus(status int) error {
	err := fmt.Errorf("slack API error (status %d)", status)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return pipeline.AuthFailure(err)
	case status == http.StatusTooManyRequests || status >= 500:
		return pipeline.Transient(err)
	}
	return err
}

// classifyAPIError maps a Slack ok=false error code onto the pipeline
// error taxonomy.
func classifyAPIError(code string) error {
	err := fmt.Errorf("slack API error: %s", code)
	switch {
	case code == "invalid_auth" || code == "not_authed" || code == "token_revoked" || code == "token_expired":
		return pipeline.AuthFailure(err)
	case code == "rate_limited" || strings.HasPrefix(code, "fatal_error"):
		return pipeline.Transient(err)
	}
	return err
}
