package progress

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"

	"jamabandi/pkg/logger"
)

// TargetInfo records which administrative unit a progress file belongs to.
// Stored for provenance only; it does not affect identity of the file.
type TargetInfo struct {
	District string `json:"district"`
	Tehsil   string `json:"tehsil"`
	Village  string `json:"village"`
	Period   string `json:"period"`
}

// RunStats holds aggregate download statistics persisted with the progress file
type RunStats struct {
	StartTime       *time.Time `json:"start_time"`
	TotalTime       float64    `json:"total_time"`
	DownloadCount   int        `json:"download_count"`
	BytesDownloaded int64      `json:"bytes_downloaded"`
}

// fileData is the on-disk shape of the progress file
type fileData struct {
	Config      TargetInfo        `json:"config"`
	Completed   []int             `json:"completed"`
	Failed      map[string]string `json:"failed"`
	LastUpdated *time.Time        `json:"last_updated"`
	Stats       RunStats          `json:"stats"`
}

// Summary holds display counts for the current state
type Summary struct {
	Completed int
	Failed    int
	Pending   int
}

func (s Summary) String() string {
	return fmt.Sprintf("Completed: %d, Failed: %d, Pending: %d", s.Completed, s.Failed, s.Pending)
}

// DefaultSaveInterval is how many unsaved mutations trigger an automatic flush
const DefaultSaveInterval = 5

// Tracker is the durable, thread-safe record of which khewat numbers are
// done, failed, or pending. All mutating writes go through one mutex; the
// file itself is replaced atomically (temp file + rename) so a crash can
// never leave a half-written progress file.
type Tracker struct {
	path         string
	saveInterval int
	logger       logger.Logger

	mu        sync.Mutex
	data      fileData
	completed map[int]struct{}
	unsaved   int
}

// NewTracker creates a tracker backed by the given file path. Relative
// paths resolve against the application data directory so the location
// does not depend on the working directory the process was launched from.
func NewTracker(path string, saveInterval int, log logger.Logger) (*Tracker, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if saveInterval < 1 {
		saveInterval = DefaultSaveInterval
	}

	resolved, err := resolvePath(path)
	if err != nil {
		return nil, err
	}

	t := &Tracker{
		path:         resolved,
		saveInterval: saveInterval,
		logger:       log,
		data: fileData{
			Completed: []int{},
			Failed:    make(map[string]string),
		},
		completed: make(map[int]struct{}),
	}
	t.Load()
	return t, nil
}

// Path returns the resolved progress file location
func (t *Tracker) Path() string {
	return t.path
}

// Load reads the persisted file if present. A missing or corrupt file is
// not an error: the tracker degrades to empty state and the run starts over.
func (t *Tracker) Load() {
	t.mu.Lock()
	defer t.mu.Unlock()

	raw, err := os.ReadFile(t.path)
	if err != nil {
		if !os.IsNotExist(err) {
			t.logger.WithError(err).Warn("could not read progress file, starting fresh")
		}
		return
	}

	var loaded fileData
	if err := json.Unmarshal(raw, &loaded); err != nil {
		t.logger.WithError(err).WithField("path", t.path).
			Warn("progress file is malformed, starting fresh")
		return
	}

	// Backfill anything an older file version is missing
	if loaded.Failed == nil {
		loaded.Failed = make(map[string]string)
	}
	if loaded.Completed == nil {
		loaded.Completed = []int{}
	}

	t.data = loaded
	t.completed = make(map[int]struct{}, len(loaded.Completed))
	for _, id := range loaded.Completed {
		t.completed[id] = struct{}{}
	}
	t.normalizeCompletedLocked()

	t.logger.InfoWithFields("progress loaded", map[string]interface{}{
		"path":      t.path,
		"completed": len(t.data.Completed),
		"failed":    len(t.data.Failed),
	})
}

// SetConfig records the target parameters for provenance and flushes
func (t *Tracker) SetConfig(info TargetInfo) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.data.Config = info
	t.unsaved++
	return t.saveLocked()
}

// StartRun stamps the run start time if this is the first run for the file
func (t *Tracker) StartRun() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.data.Stats.StartTime == nil {
		now := time.Now()
		t.data.Stats.StartTime = &now
		t.unsaved++
	}
}

// AddElapsed accumulates wall-clock run time into the persisted stats
func (t *Tracker) AddElapsed(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.data.Stats.TotalTime += d.Seconds()
	t.unsaved++
}

// MarkComplete records a successful download. It is idempotent: marking an
// already-completed khewat neither duplicates the entry nor double-counts
// statistics. Any failure entry for the khewat is removed.
func (t *Tracker) MarkComplete(khewat int, bytesDownloaded int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, done := t.completed[khewat]; done {
		return nil
	}

	t.completed[khewat] = struct{}{}
	t.data.Completed = append(t.data.Completed, khewat)
	sort.Ints(t.data.Completed)
	delete(t.data.Failed, strconv.Itoa(khewat))

	t.data.Stats.DownloadCount++
	t.data.Stats.BytesDownloaded += bytesDownloaded

	t.unsaved++
	return t.maybeSaveLocked()
}

// MarkFailed records (or overwrites) the failure reason for a khewat.
// A khewat that has already completed stays completed; the failure is
// dropped so an id is never in both sets.
func (t *Tracker) MarkFailed(khewat int, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, done := t.completed[khewat]; done {
		return nil
	}

	t.data.Failed[strconv.Itoa(khewat)] = reason
	t.unsaved++
	return t.maybeSaveLocked()
}

// GetPending returns, in ascending order, every khewat in [start, end]
// that has not completed
func (t *Tracker) GetPending(start, end int) []int {
	t.mu.Lock()
	defer t.mu.Unlock()

	var pending []int
	for k := start; k <= end; k++ {
		if _, done := t.completed[k]; !done {
			pending = append(pending, k)
		}
	}
	return pending
}

// IsCompleted reports whether a khewat has already been downloaded
func (t *Tracker) IsCompleted(khewat int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, done := t.completed[khewat]
	return done
}

// Completed returns a copy of the completed set in ascending order
func (t *Tracker) Completed() []int {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]int, len(t.data.Completed))
	copy(out, t.data.Completed)
	return out
}

// Failed returns a copy of the failure map keyed by khewat number
func (t *Tracker) Failed() map[int]string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[int]string, len(t.data.Failed))
	for k, v := range t.data.Failed {
		id, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		out[id] = v
	}
	return out
}

// Stats returns a copy of the persisted aggregate statistics
func (t *Tracker) Stats() RunStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.data.Stats
}

// GetSummary returns display counts for the given khewat range
func (t *Tracker) GetSummary(start, end int) Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	total := end - start + 1
	if total < 0 {
		total = 0
	}
	done := 0
	for k := start; k <= end; k++ {
		if _, ok := t.completed[k]; ok {
			done++
		}
	}
	return Summary{
		Completed: done,
		Failed:    len(t.data.Failed),
		Pending:   total - done,
	}
}

// Flush forces a durable write. When nothing is unsaved it is a no-op and
// the file's modification time is left untouched.
func (t *Tracker) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.unsaved == 0 {
		return nil
	}
	return t.saveLocked()
}

// UnsavedCount reports mutations not yet persisted (test hook)
func (t *Tracker) UnsavedCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.unsaved
}

// maybeSaveLocked flushes once the unsaved counter reaches the interval.
// Callers must hold the mutex.
func (t *Tracker) maybeSaveLocked() error {
	if t.unsaved < t.saveInterval {
		return nil
	}
	return t.saveLocked()
}

// saveLocked writes the full state atomically: serialize to a temp file in
// the same directory, fsync, then rename over the target. The old file is
// intact until the rename succeeds. Callers must hold the mutex.
func (t *Tracker) saveLocked() error {
	now := time.Now()
	t.data.LastUpdated = &now

	if err := os.MkdirAll(filepath.Dir(t.path), 0755); err != nil {
		return fmt.Errorf("failed to create progress directory: %w", err)
	}

	tempPath := t.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary progress file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(&t.data); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode progress: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync progress file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close progress file: %w", err)
	}

	if err := os.Rename(tempPath, t.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace progress file: %w", err)
	}

	t.unsaved = 0

	t.logger.DebugWithFields("progress saved", map[string]interface{}{
		"completed": len(t.data.Completed),
		"failed":    len(t.data.Failed),
	})

	return nil
}

// normalizeCompletedLocked restores the sorted, duplicate-free invariant
// after loading a file written by an older version. Callers must hold the
// mutex.
func (t *Tracker) normalizeCompletedLocked() {
	if len(t.completed) == len(t.data.Completed) && sort.IntsAreSorted(t.data.Completed) {
		return
	}
	deduped := make([]int, 0, len(t.completed))
	for id := range t.completed {
		deduped = append(deduped, id)
	}
	sort.Ints(deduped)
	t.data.Completed = deduped
}

// resolvePath anchors relative paths at the per-OS application data
// directory so the progress file location is deterministic
func resolvePath(path string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	dataDir, err := dataDirectory()
	if err != nil {
		return "", fmt.Errorf("failed to resolve data directory: %w", err)
	}
	return filepath.Join(dataDir, path), nil
}

// dataDirectory returns the appropriate data directory for the current OS
func dataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "linux":
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "jamabandi")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "jamabandi")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "jamabandi")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "jamabandi")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	return dataDir, nil
}
