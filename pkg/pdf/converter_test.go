package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"jamabandi/pkg/logger"
)

const sampleRecord = `<html><head><title>Nakal Khewat 12</title></head><body>
<table>
<tr><th>Khewat</th><th>Owner</th><th>Area</th></tr>
<tr><td>12</td><td>Test Holder</td><td>4-3-2</td></tr>
<tr><td>12</td><td>Second Holder with a much longer name that needs wrapping across lines</td><td>1-0-0</td></tr>
</table>
</body></html>`

func writeRecord(t *testing.T, dir string, khewat int) string {
	t.Helper()
	path := filepath.Join(dir, fmt.Sprintf("nakal_khewat_%04d.html", khewat))
	if err := os.WriteFile(path, []byte(sampleRecord), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNativeConvertProducesPDF(t *testing.T) {
	dir := t.TempDir()
	htmlPath := writeRecord(t, dir, 12)
	pdfPath := PDFPathFor(htmlPath)

	backend := newNative(logger.NewNopLogger())
	if err := backend.Convert(context.Background(), htmlPath, pdfPath); err != nil {
		t.Fatalf("Convert: %v", err)
	}

	data, err := os.ReadFile(pdfPath)
	if err != nil {
		t.Fatalf("read PDF: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Error("output does not start with PDF header")
	}
	if !bytes.Contains(data, []byte("%%EOF")) {
		t.Error("output missing EOF marker")
	}
}

func TestNativeConvertNoTables(t *testing.T) {
	dir := t.TempDir()
	htmlPath := filepath.Join(dir, "nakal_khewat_0001.html")
	if err := os.WriteFile(htmlPath, []byte("<html><body>no tables here</body></html>"), 0o644); err != nil {
		t.Fatal(err)
	}

	backend := newNative(logger.NewNopLogger())
	err := backend.Convert(context.Background(), htmlPath, PDFPathFor(htmlPath))
	if err == nil {
		t.Fatal("expected error for table-free page")
	}
	if !strings.Contains(err.Error(), "no tables") {
		t.Errorf("error = %v, want table complaint", err)
	}
}

func TestPDFPathFor(t *testing.T) {
	got := PDFPathFor("/data/nakal_khewat_0042.html")
	if got != "/data/nakal_khewat_0042.pdf" {
		t.Errorf("PDFPathFor = %q", got)
	}
}

// failingBackend fails for paths recorded in bad
type failingBackend struct {
	bad map[string]bool
}

func (f *failingBackend) Name() string { return "failing" }

func (f *failingBackend) Convert(_ context.Context, htmlPath, pdfPath string) error {
	if f.bad[htmlPath] {
		return errors.New("boom")
	}
	return os.WriteFile(pdfPath, []byte("%PDF-1.4\n%%EOF"), 0o644)
}

func TestConvertAll(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for khewat := 1; khewat <= 5; khewat++ {
		paths = append(paths, writeRecord(t, dir, khewat))
	}

	// Record 2 is already converted and must be skipped.
	if err := os.WriteFile(PDFPathFor(paths[1]), []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}

	backend := &failingBackend{bad: map[string]bool{paths[4]: true}}
	converter := NewConverter(backend, 3, logger.NewNopLogger())

	result := converter.ConvertAll(context.Background(), paths)

	if result.Converted != 3 {
		t.Errorf("Converted = %d, want 3", result.Converted)
	}
	if result.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", result.Skipped)
	}
	if result.Failed != 1 {
		t.Errorf("Failed = %d, want 1", result.Failed)
	}
	if len(result.FailedFiles) != 1 || result.FailedFiles[0] != paths[4] {
		t.Errorf("FailedFiles = %v", result.FailedFiles)
	}
}

func TestConvertAllCancellation(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for khewat := 1; khewat <= 20; khewat++ {
		paths = append(paths, writeRecord(t, dir, khewat))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	converter := NewConverter(&failingBackend{}, 2, logger.NewNopLogger())
	result := converter.ConvertAll(ctx, paths)

	if result.Converted == len(paths) {
		t.Error("expected cancellation to stop scheduling new items")
	}
}

func TestDetectFallsBackToNative(t *testing.T) {
	backend := Detect(BackendNative, logger.NewNopLogger())
	if backend.Name() != BackendNative {
		t.Errorf("backend = %s, want native", backend.Name())
	}
}
