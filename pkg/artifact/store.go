// Package artifact stores downloaded invoice documents on the local
// filesystem. Search adapters save the raw document bytes here and hand the
// resulting path to the pipeline as the invoice file reference.
package artifact

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shunichi-ikebuchi/invoice-reconciler/pkg/pathutil"
)

// Store is a filesystem store for invoice artifacts.
type Store struct {
	pathResolver *pathutil.PathResolver
}

// NewStore creates a new Store.
func NewStore(pathResolver *pathutil.PathResolver) *Store {
	return &Store{pathResolver: pathResolver}
}

// Save writes an invoice document and returns its path. The name combines
// the transaction date and vendor with the original filename; when two
// documents would collide, a short random suffix keeps them apart.
func (s *Store) Save(vendor string, date time.Time, filename string, data []byte) (string, error) {
	dateStr := date.Format("2006-01-02")

	name := buildFilename(dateStr, vendor, filename)
	path, err := s.pathResolver.GetInvoicePath(dateStr, name)
	if err != nil {
		return "", err
	}

	if s.pathResolver.FileExists(path) {
		name = buildFilename(dateStr, vendor, uniqueSuffix(filename))
		path, err = s.pathResolver.GetInvoicePath(dateStr, name)
		if err != nil {
			return "", err
		}
	}

	if err := s.pathResolver.EnsureParentDir(path); err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write invoice artifact: %w", err)
	}

	return path, nil
}

// buildFilename generates a filename for an invoice artifact.
func buildFilename(date, vendor, filename string) string {
	v := sanitizeFilename(vendor)
	if v == "" {
		v = "unknown"
	}

	f := sanitizeFilename(filename)
	if f == "" {
		f = "invoice.pdf"
	}

	return fmt.Sprintf("%s_%s_%s", date, v, f)
}

// uniqueSuffix prefixes a filename with a short random tag.
func uniqueSuffix(filename string) string {
	tag := uuid.NewString()[:8]
	if filename == "" {
		return tag + "_invoice.pdf"
	}
	return tag + "_" + filename
}

// sanitizeFilename removes invalid characters from filename.
func sanitizeFilename(name string) string {
	invalid := regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	name = invalid.ReplaceAllString(name, "_")

	name = strings.Trim(name, " .")
	name = strings.ReplaceAll(name, " ", "_")

	if len(name) > 50 {
		name = name[:50]
	}

	return name
}
