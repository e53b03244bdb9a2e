package drive

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name     string
		vendor   string
		amount   string
		expected string
	}{
		{
			name:     "plain vendor",
			vendor:   "Acme Corp",
			amount:   "149.99",
			expected: "fullText contains 'Acme Corp' and fullText contains '149.99'",
		},
		{
			name:     "pads amount to cents",
			vendor:   "Acme",
			amount:   "500",
			expected: "fullText contains 'Acme' and fullText contains '500.00'",
		},
		{
			name:     "escapes quotes in vendor",
			vendor:   "O'Reilly",
			amount:   "10.00",
			expected: `fullText contains 'O\'Reilly' and fullText contains '10.00'`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildQuery(tt.vendor, decimal.RequireFromString(tt.amount))
			if got != tt.expected {
				t.Errorf("buildQuery() = %q, expected %q", got, tt.expected)
			}
		})
	}
}

func TestWithinWindow(t *testing.T) {
	date := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		created  time.Time
		expected bool
	}{
		{"same day", date, true},
		{"a few days after", date.AddDate(0, 0, 3), true},
		{"a few days before", date.AddDate(0, 0, -3), true},
		{"exactly a week after", date.AddDate(0, 0, 7), true},
		{"eight days after", date.AddDate(0, 0, 8), false},
		{"a month before", date.AddDate(0, -1, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := withinWindow(tt.created, date); got != tt.expected {
				t.Errorf("withinWindow(%v) = %v, expected %v", tt.created, got, tt.expected)
			}
		})
	}
}
