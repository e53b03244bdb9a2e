package pathutil

import (
	"path/filepath"
	"testing"
)

func TestNewDefaults(t *testing.T) {
	p := New(Config{DataRoot: "/data"})

	if got := p.GetDatabasePath(); got != filepath.Join("/data", "reconciler.db") {
		t.Errorf("database path = %q", got)
	}
	if got := p.GetInvoicesDir(); got != filepath.Join("/data", "invoices") {
		t.Errorf("invoices dir = %q", got)
	}
}

func TestNewOverrides(t *testing.T) {
	p := New(Config{
		DataRoot:     "/data",
		DatabasePath: "/elsewhere/state.db",
		InvoicesDir:  "/bulk/invoices",
	})

	if got := p.GetDatabasePath(); got != "/elsewhere/state.db" {
		t.Errorf("database path = %q", got)
	}
	if got := p.GetInvoicesDir(); got != "/bulk/invoices" {
		t.Errorf("invoices dir = %q", got)
	}
}

func TestGetInvoicePath(t *testing.T) {
	p := New(Config{DataRoot: "/data"})

	tests := []struct {
		name      string
		date      string
		filename  string
		expected  string
		expectErr bool
	}{
		{
			name:     "shards by year and month",
			date:     "2026-08-15",
			filename: "2026-08-15_acme_invoice.pdf",
			expected: filepath.Join("/data", "invoices", "2026", "08", "2026-08-15_acme_invoice.pdf"),
		},
		{
			name:     "year and month only",
			date:     "2026-08",
			filename: "x.pdf",
			expected: filepath.Join("/data", "invoices", "2026", "08", "x.pdf"),
		},
		{name: "malformed date", date: "20260815", filename: "x.pdf", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.GetInvoicePath(tt.date, tt.filename)
			if tt.expectErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("path = %q, expected %q", got, tt.expected)
			}
		})
	}
}
