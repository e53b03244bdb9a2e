package artifact

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shunichi-ikebuchi/invoice-reconciler/pkg/pathutil"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()

	root := t.TempDir()
	return NewStore(pathutil.New(pathutil.Config{DataRoot: root})), root
}

func TestSaveWritesShardedArtifact(t *testing.T) {
	store, root := newTestStore(t)
	date := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)

	path, err := store.Save("Acme Corp", date, "invoice.pdf", []byte("document"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := filepath.Join(root, "invoices", "2026", "08", "2026-08-15_Acme_Corp_invoice.pdf")
	if path != expected {
		t.Errorf("path = %q, expected %q", path, expected)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read artifact: %v", err)
	}
	if string(data) != "document" {
		t.Errorf("content = %q", data)
	}
}

func TestSaveAvoidsCollisions(t *testing.T) {
	store, _ := newTestStore(t)
	date := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)

	first, err := store.Save("Acme", date, "invoice.pdf", []byte("first"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := store.Save("Acme", date, "invoice.pdf", []byte("second"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first == second {
		t.Fatal("expected distinct paths for colliding names")
	}

	data, err := os.ReadFile(first)
	if err != nil {
		t.Fatalf("failed to read first artifact: %v", err)
	}
	if string(data) != "first" {
		t.Error("first artifact was overwritten")
	}
}

func TestSaveSanitizesNames(t *testing.T) {
	store, _ := newTestStore(t)
	date := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)

	path, err := store.Save(`Ac/me:Corp`, date, `inv\oice?.pdf`, []byte("x"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	base := filepath.Base(path)
	if strings.ContainsAny(base, `/\:?*"<>|`) {
		t.Errorf("filename %q still contains invalid characters", base)
	}
}

func TestSaveEmptyNamesFallBack(t *testing.T) {
	store, _ := newTestStore(t)
	date := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)

	path, err := store.Save("", date, "", []byte("x"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if filepath.Base(path) != "2026-08-15_unknown_invoice.pdf" {
		t.Errorf("path = %q, expected fallback names", path)
	}
}
