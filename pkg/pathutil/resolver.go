// Package pathutil provides centralized path management for the reconciler
// data directory.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathResolver manages paths for the database and downloaded invoice files.
type PathResolver struct {
	dataRoot     string
	databasePath string
	invoicesDir  string
}

// Config represents the configuration for PathResolver.
type Config struct {
	// DataRoot is the root directory for all reconciler state (e.g., ./data)
	DataRoot string
	// DatabasePath is the path to the SQLite database file
	DatabasePath string
	// InvoicesDir is the directory for downloaded invoice documents
	InvoicesDir string
}

// New creates a new PathResolver with the given configuration.
// If DatabasePath is empty, it defaults to {DataRoot}/reconciler.db
// If InvoicesDir is empty, it defaults to {DataRoot}/invoices
func New(config Config) *PathResolver {
	dbPath := config.DatabasePath
	if dbPath == "" {
		dbPath = filepath.Join(config.DataRoot, "reconciler.db")
	}

	invoicesDir := config.InvoicesDir
	if invoicesDir == "" {
		invoicesDir = filepath.Join(config.DataRoot, "invoices")
	}

	return &PathResolver{
		dataRoot:     config.DataRoot,
		databasePath: dbPath,
		invoicesDir:  invoicesDir,
	}
}

// GetDataRoot returns the data root directory.
func (p *PathResolver) GetDataRoot() string {
	return p.dataRoot
}

// GetDatabasePath returns the database file path.
func (p *PathResolver) GetDatabasePath() string {
	return p.databasePath
}

// GetInvoicesDir returns the invoices directory.
func (p *PathResolver) GetInvoicesDir() string {
	return p.invoicesDir
}

// GetInvoicePath returns the file path for an invoice artifact, sharded into
// year/month subdirectories.
// Example: invoices/2024/01/2024-01-10_acme_invoice.pdf
func (p *PathResolver) GetInvoicePath(date, filename string) (string, error) {
	parts := strings.Split(date, "-")
	if len(parts) < 2 {
		return "", fmt.Errorf("invalid date format: %s. Expected YYYY-MM-DD", date)
	}

	year := parts[0]
	month := parts[1]

	return filepath.Join(p.invoicesDir, year, month, filename), nil
}

// EnsureDir creates a directory if it doesn't exist.
// It creates all parent directories as needed (like mkdir -p).
func (p *PathResolver) EnsureDir(dirPath string) error {
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dirPath, err)
	}
	return nil
}

// EnsureParentDir ensures the parent directory of a file exists.
func (p *PathResolver) EnsureParentDir(filePath string) error {
	dir := filepath.Dir(filePath)
	return p.EnsureDir(dir)
}

// FileExists checks if a file exists.
func (p *PathResolver) FileExists(filePath string) bool {
	_, err := os.Stat(filePath)
	return err == nil
}
