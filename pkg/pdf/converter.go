package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"jamabandi/pkg/logger"
	"jamabandi/pkg/validator"
)

// Result aggregates a conversion batch
type Result struct {
	Converted   int
	Failed      int
	Skipped     int
	FailedFiles []string
	Elapsed     time.Duration
}

// Converter runs a backend over a batch of HTML artifacts with a pool
// of workers
type Converter struct {
	backend  Backend
	workers  int
	validate *validator.Validator
	logger   logger.Logger

	mu sync.Mutex
}

// NewConverter creates a batch converter. workers is clamped to at
// least one.
func NewConverter(backend Backend, workers int, log logger.Logger) *Converter {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Converter{backend: backend, workers: workers, validate: validator.New(), logger: log}
}

// PDFPathFor maps an HTML artifact path to its PDF sibling
func PDFPathFor(htmlPath string) string {
	return strings.TrimSuffix(htmlPath, filepath.Ext(htmlPath)) + ".pdf"
}

// ConvertAll converts every listed HTML artifact, skipping those whose
// PDF already exists. Honors ctx cancellation between items; in-flight
// conversions finish first.
func (c *Converter) ConvertAll(ctx context.Context, htmlPaths []string) Result {
	start := time.Now()
	result := Result{}

	jobs := make(chan string)
	var wg sync.WaitGroup

	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for htmlPath := range jobs {
				c.convertOne(ctx, workerID, htmlPath, &result)
			}
		}(i + 1)
	}

feed:
	for _, htmlPath := range htmlPaths {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- htmlPath:
		}
	}
	close(jobs)
	wg.Wait()

	result.Elapsed = time.Since(start)
	c.logger.InfoWithFields("conversion batch finished", map[string]interface{}{
		"converted": result.Converted,
		"failed":    result.Failed,
		"skipped":   result.Skipped,
		"elapsed":   result.Elapsed,
	})
	return result
}

func (c *Converter) convertOne(ctx context.Context, workerID int, htmlPath string, result *Result) {
	pdfPath := PDFPathFor(htmlPath)

	if fileExists(pdfPath) {
		c.mu.Lock()
		result.Skipped++
		c.mu.Unlock()
		return
	}

	err := c.backend.Convert(ctx, htmlPath, pdfPath)
	if err == nil {
		if check := c.validate.ValidatePDF(pdfPath); check.Status == validator.StatusInvalid {
			os.Remove(pdfPath)
			err = fmt.Errorf("output rejected: %s", check.Message)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		result.Failed++
		result.FailedFiles = append(result.FailedFiles, htmlPath)
		c.logger.WarnWithFields("conversion failed", map[string]interface{}{
			"worker": workerID,
			"file":   filepath.Base(htmlPath),
			"error":  err.Error(),
		})
		return
	}

	result.Converted++
	c.logger.DebugWithFields("converted", map[string]interface{}{
		"worker": workerID,
		"file":   filepath.Base(htmlPath),
	})
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
