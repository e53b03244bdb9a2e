package bank

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseStatementRow(t *testing.T) {
	tests := []struct {
		name       string
		cells      []string
		expectErr  bool
		externalID string
		amount     string
		vendor     string
		date       string
	}{
		{
			name:       "plain row",
			cells:      []string{"2026-08-15", "$149.99", "Acme Corp", "TXN-001"},
			externalID: "TXN-001",
			amount:     "149.99",
			vendor:     "Acme Corp",
			date:       "2026-08-15",
		},
		{
			name:       "thousands separator",
			cells:      []string{"2026-01-02", "$1,234,567.89", "Big Vendor", "TXN-002"},
			externalID: "TXN-002",
			amount:     "1234567.89",
			vendor:     "Big Vendor",
			date:       "2026-01-02",
		},
		{
			name:       "whitespace padding",
			cells:      []string{" 2026-08-15 ", " $99.00 ", "  Acme Corp  ", " TXN-003 "},
			externalID: "TXN-003",
			amount:     "99",
			vendor:     "Acme Corp",
			date:       "2026-08-15",
		},
		{
			name:       "no currency symbol",
			cells:      []string{"2026-08-15", "500.00", "Acme Corp", "TXN-004"},
			externalID: "TXN-004",
			amount:     "500",
			vendor:     "Acme Corp",
			date:       "2026-08-15",
		},
		{name: "too few columns", cells: []string{"2026-08-15", "$1.00", "Acme"}, expectErr: true},
		{name: "bad date", cells: []string{"15/08/2026", "$1.00", "Acme", "TXN-005"}, expectErr: true},
		{name: "bad amount", cells: []string{"2026-08-15", "one dollar", "Acme", "TXN-006"}, expectErr: true},
		{name: "empty vendor", cells: []string{"2026-08-15", "$1.00", "   ", "TXN-007"}, expectErr: true},
		{name: "empty reference", cells: []string{"2026-08-15", "$1.00", "Acme", "  "}, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn, err := parseStatementRow(tt.cells)
			if tt.expectErr {
				if err == nil {
					t.Fatalf("expected error for %v", tt.cells)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if txn.ExternalID != tt.externalID {
				t.Errorf("external ID = %q, expected %q", txn.ExternalID, tt.externalID)
			}
			if !txn.Amount.Equal(decimal.RequireFromString(tt.amount)) {
				t.Errorf("amount = %s, expected %s", txn.Amount, tt.amount)
			}
			if txn.Vendor != tt.vendor {
				t.Errorf("vendor = %q, expected %q", txn.Vendor, tt.vendor)
			}
			if got := txn.Date.Format("2006-01-02"); got != tt.date {
				t.Errorf("date = %s, expected %s", got, tt.date)
			}
		})
	}
}
