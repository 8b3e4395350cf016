package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// artifactPattern is the record filename scheme, shared by HTML and PDF
const artifactPattern = "nakal_khewat_%04d"

// Manager handles artifact storage and duplicate detection
type Manager struct {
	outputDir string
	saved     map[int]bool
	mu        sync.RWMutex
}

// NewManager creates a storage manager rooted at outputDir, creating
// the directory if needed and indexing existing artifacts for resume
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create downloads directory: %w", err)
	}

	manager := &Manager{
		outputDir: outputDir,
		saved:     make(map[int]bool),
	}

	if err := manager.scanExistingFiles(); err != nil {
		return nil, fmt.Errorf("failed to scan downloads directory: %w", err)
	}

	return manager, nil
}

// scanExistingFiles indexes artifacts already present in the directory
func (m *Manager) scanExistingFiles() error {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if khewat, ok := parseArtifactName(entry.Name()); ok {
			m.saved[khewat] = true
		}
	}

	return nil
}

// parseArtifactName extracts the khewat number from an artifact
// filename, accepting both .html and .pdf extensions
func parseArtifactName(name string) (int, bool) {
	ext := filepath.Ext(name)
	if ext != ".html" && ext != ".pdf" {
		return 0, false
	}

	var khewat int
	base := name[:len(name)-len(ext)]
	if _, err := fmt.Sscanf(base, artifactPattern, &khewat); err != nil {
		return 0, false
	}
	return khewat, true
}

// OutputDir returns the downloads directory path
func (m *Manager) OutputDir() string {
	return m.outputDir
}

// HTMLPath returns the artifact path for an HTML record
func (m *Manager) HTMLPath(khewat int) string {
	return filepath.Join(m.outputDir, fmt.Sprintf(artifactPattern+".html", khewat))
}

// PDFPath returns the artifact path for a PDF record
func (m *Manager) PDFPath(khewat int) string {
	return filepath.Join(m.outputDir, fmt.Sprintf(artifactPattern+".pdf", khewat))
}

// IsDownloaded reports whether an artifact for this record exists
func (m *Manager) IsDownloaded(khewat int) bool {
	m.mu.RLock()
	if m.saved[khewat] {
		m.mu.RUnlock()
		return true
	}
	m.mu.RUnlock()

	// Fall back to a disk check in case another process wrote it.
	if fileExists(m.HTMLPath(khewat)) || fileExists(m.PDFPath(khewat)) {
		m.mu.Lock()
		m.saved[khewat] = true
		m.mu.Unlock()
		return true
	}

	return false
}

// SaveHTML atomically writes an HTML record artifact and returns its path
func (m *Manager) SaveHTML(khewat int, body []byte) (string, error) {
	return m.save(khewat, m.HTMLPath(khewat), body)
}

// SavePDF atomically writes a PDF record artifact and returns its path
func (m *Manager) SavePDF(khewat int, body []byte) (string, error) {
	return m.save(khewat, m.PDFPath(khewat), body)
}

func (m *Manager) save(khewat int, path string, body []byte) (string, error) {
	tempFile := path + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, writeErr := out.Write(body)
	if writeErr == nil {
		writeErr = out.Sync()
	}
	closeErr := out.Close()

	if writeErr != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to write artifact: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to close artifact: %w", closeErr)
	}

	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to finalize artifact: %w", err)
	}

	m.mu.Lock()
	m.saved[khewat] = true
	m.mu.Unlock()

	return path, nil
}

// SavedCount returns the number of records with a stored artifact
func (m *Manager) SavedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.saved)
}

// PendingConversions lists HTML artifacts that have no PDF sibling yet,
// sorted by khewat number
func (m *Manager) PendingConversions() ([]string, error) {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read downloads directory: %w", err)
	}

	type pending struct {
		khewat int
		path   string
	}
	var items []pending
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".html" {
			continue
		}
		khewat, ok := parseArtifactName(entry.Name())
		if !ok {
			continue
		}
		if fileExists(m.PDFPath(khewat)) {
			continue
		}
		items = append(items, pending{khewat, filepath.Join(m.outputDir, entry.Name())})
	}

	sort.Slice(items, func(i, j int) bool { return items[i].khewat < items[j].khewat })

	paths := make([]string, len(items))
	for i, item := range items {
		paths[i] = item.path
	}
	return paths, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
