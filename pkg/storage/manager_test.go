package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestManagerSaveAndResume(t *testing.T) {
	tempDir := t.TempDir()

	manager, err := NewManager(tempDir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	if manager.SavedCount() != 0 {
		t.Error("Expected initial saved count to be 0")
	}
	if manager.IsDownloaded(12) {
		t.Error("Expected IsDownloaded to return false for missing record")
	}

	testData := []byte("<html>nakal record</html>")
	path, err := manager.SaveHTML(12, testData)
	if err != nil {
		t.Fatalf("Failed to save HTML: %v", err)
	}

	expectedPath := filepath.Join(tempDir, "nakal_khewat_0012.html")
	if path != expectedPath {
		t.Errorf("Path = %q, want %q", path, expectedPath)
	}

	content, err := os.ReadFile(expectedPath)
	if err != nil {
		t.Fatalf("Failed to read saved file: %v", err)
	}
	if !bytes.Equal(content, testData) {
		t.Error("File content does not match expected data")
	}

	if !manager.IsDownloaded(12) {
		t.Error("Expected IsDownloaded to return true after save")
	}
	if manager.SavedCount() != 1 {
		t.Errorf("Saved count = %d, want 1", manager.SavedCount())
	}

	// A fresh manager over the same directory must pick up prior work.
	if _, err := manager.SavePDF(7, []byte("%PDF-1.4")); err != nil {
		t.Fatalf("Failed to save PDF: %v", err)
	}
	manager2, err := NewManager(tempDir)
	if err != nil {
		t.Fatalf("Failed to create second manager: %v", err)
	}
	if manager2.SavedCount() != 2 {
		t.Errorf("Saved count after rescan = %d, want 2", manager2.SavedCount())
	}
	if !manager2.IsDownloaded(7) || !manager2.IsDownloaded(12) {
		t.Error("Expected rescan to detect both artifacts")
	}
}

func TestManagerNoTempLeftover(t *testing.T) {
	tempDir := t.TempDir()
	manager, err := NewManager(tempDir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	if _, err := manager.SaveHTML(1, []byte("data")); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".tmp") {
			t.Errorf("Temp file left behind: %s", entry.Name())
		}
	}
}

func TestManagerIgnoresForeignFiles(t *testing.T) {
	tempDir := t.TempDir()
	for _, name := range []string{"notes.txt", "debug_form.html", "nakal_khewat_bad.html"} {
		if err := os.WriteFile(filepath.Join(tempDir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	manager, err := NewManager(tempDir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	if manager.SavedCount() != 0 {
		t.Errorf("Saved count = %d, want 0 for foreign files", manager.SavedCount())
	}
}

func TestPendingConversions(t *testing.T) {
	tempDir := t.TempDir()
	manager, err := NewManager(tempDir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	for _, khewat := range []int{3, 1, 2} {
		if _, err := manager.SaveHTML(khewat, []byte("<html>nakal</html>")); err != nil {
			t.Fatalf("Failed to save HTML %d: %v", khewat, err)
		}
	}
	// Record 2 already has its PDF.
	if _, err := manager.SavePDF(2, []byte("%PDF-1.4")); err != nil {
		t.Fatalf("Failed to save PDF: %v", err)
	}

	pending, err := manager.PendingConversions()
	if err != nil {
		t.Fatalf("PendingConversions: %v", err)
	}

	want := []string{
		filepath.Join(tempDir, "nakal_khewat_0001.html"),
		filepath.Join(tempDir, "nakal_khewat_0003.html"),
	}
	if len(pending) != len(want) {
		t.Fatalf("Pending = %v, want %v", pending, want)
	}
	for i := range want {
		if pending[i] != want[i] {
			t.Errorf("Pending[%d] = %q, want %q", i, pending[i], want[i])
		}
	}
}
