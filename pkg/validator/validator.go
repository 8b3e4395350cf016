package validator

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Status is the outcome class of a validation check
type Status string

const (
	// StatusValid means the artifact looks like a genuine record
	StatusValid Status = "valid"
	// StatusWarning means the artifact is usable but suspicious
	StatusWarning Status = "warning"
	// StatusInvalid means the artifact is an error page or broken file
	StatusInvalid Status = "invalid"
)

// Result is the tagged outcome of a validation check. These are expected,
// frequent outcomes, so they are values rather than errors.
type Result struct {
	Status  Status
	Message string
	Size    int64
	Pages   int
}

// IsValid reports whether the check passed cleanly
func (r Result) IsValid() bool {
	return r.Status == StatusValid
}

const (
	// DefaultMinPDFSize is the smallest plausible record PDF
	DefaultMinPDFSize = 10 * 1024
	// DefaultMinHTMLLength is the smallest plausible record page
	DefaultMinHTMLLength = 1000
)

var pdfHeader = []byte("%PDF-")

// eofMarker is the PDF end-of-file marker expected near the end of a
// complete document
var eofMarker = []byte("%%EOF")

// failurePhrases match error pages the portal serves with HTTP 200.
// Whitespace-tolerant because the markup pads text unpredictably.
var failurePhrases = []*regexp.Regexp{
	regexp.MustCompile(`no\s+record\s+found`),
	regexp.MustCompile(`error\s+occurred`),
	regexp.MustCompile(`session\s+expired`),
	regexp.MustCompile(`please\s+login`),
	regexp.MustCompile(`access\s+denied`),
}

// Validator inspects downloaded artifacts to confirm they are genuine
// records rather than error pages, login redirects, or truncated files
type Validator struct {
	MinPDFSize    int64
	MinHTMLLength int
}

// New creates a validator with default thresholds
func New() *Validator {
	return &Validator{
		MinPDFSize:    DefaultMinPDFSize,
		MinHTMLLength: DefaultMinHTMLLength,
	}
}

// ValidatePDF performs the basic file check: existence, magic header,
// and a minimum-size sanity threshold
func (v *Validator) ValidatePDF(path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		return Result{Status: StatusInvalid, Message: "file does not exist"}
	}
	size := info.Size()

	file, err := os.Open(path)
	if err != nil {
		return Result{Status: StatusInvalid, Message: fmt.Sprintf("read error: %v", err)}
	}
	defer file.Close()

	header := make([]byte, len(pdfHeader))
	if _, err := file.Read(header); err != nil || !bytes.HasPrefix(header, pdfHeader) {
		return Result{Status: StatusInvalid, Message: "invalid PDF header", Size: size}
	}

	if size < v.MinPDFSize {
		return Result{
			Status:  StatusWarning,
			Message: fmt.Sprintf("file too small (%d bytes)", size),
			Size:    size,
		}
	}

	return Result{Status: StatusValid, Message: "PDF is valid", Size: size}
}

// ValidatePDFBytes applies the basic checks to an in-memory response
// body, before it has been written to disk
func (v *Validator) ValidatePDFBytes(data []byte) Result {
	size := int64(len(data))

	if !bytes.HasPrefix(data, pdfHeader) {
		return Result{Status: StatusInvalid, Message: "invalid PDF header", Size: size}
	}
	if size < v.MinPDFSize {
		return Result{
			Status:  StatusWarning,
			Message: fmt.Sprintf("file too small (%d bytes)", size),
			Size:    size,
		}
	}
	return Result{Status: StatusValid, Message: "PDF is valid", Size: size}
}

// ValidatePDFDeep extends ValidatePDF with structural checks: a missing
// end-of-file marker downgrades to a warning (possible truncation), and a
// document pdfcpu cannot parse, or one with zero pages, is invalid.
func (v *Validator) ValidatePDFDeep(path string) Result {
	result := v.ValidatePDF(path)
	if result.Status == StatusInvalid {
		return result
	}

	if !hasEOFMarker(path) {
		return Result{
			Status:  StatusWarning,
			Message: "missing %%EOF marker, file may be truncated",
			Size:    result.Size,
		}
	}

	ctx, err := api.ReadContextFile(path)
	if err != nil {
		return Result{
			Status:  StatusInvalid,
			Message: fmt.Sprintf("structural parse failed: %v", err),
			Size:    result.Size,
		}
	}
	if ctx.PageCount == 0 {
		return Result{Status: StatusInvalid, Message: "document has zero pages", Size: result.Size}
	}

	result.Pages = ctx.PageCount
	result.Message = fmt.Sprintf("PDF is valid (%d pages)", ctx.PageCount)
	return result
}

// hasEOFMarker scans the tail of the file for the PDF end marker
func hasEOFMarker(path string) bool {
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return false
	}

	const tailLen = 1024
	offset := info.Size() - tailLen
	if offset < 0 {
		offset = 0
	}

	tail := make([]byte, info.Size()-offset)
	if _, err := file.ReadAt(tail, offset); err != nil {
		return false
	}
	return bytes.Contains(tail, eofMarker)
}

// ValidateHTMLContent checks a response body for the portal's
// 200-with-error-page pattern and for implausibly short content
func (v *Validator) ValidateHTMLContent(html string) Result {
	lower := strings.ToLower(html)

	for _, phrase := range failurePhrases {
		if loc := phrase.FindString(lower); loc != "" {
			return Result{
				Status:  StatusInvalid,
				Message: fmt.Sprintf("failure phrase found: %q", loc),
			}
		}
	}

	if len(html) < v.MinHTMLLength {
		return Result{
			Status:  StatusWarning,
			Message: fmt.Sprintf("content too short (%d chars)", len(html)),
			Size:    int64(len(html)),
		}
	}

	return Result{Status: StatusValid, Message: "HTML is valid", Size: int64(len(html))}
}

// ValidateDownload composes the HTML and PDF checks: HTML invalidity
// short-circuits; a supplied PDF must then also validate cleanly.
func (v *Validator) ValidateDownload(html string, pdfPath string) Result {
	htmlResult := v.ValidateHTMLContent(html)
	if htmlResult.Status == StatusInvalid {
		return htmlResult
	}

	if pdfPath != "" {
		if pdfResult := v.ValidatePDF(pdfPath); pdfResult.Status != StatusValid {
			return pdfResult
		}
	}

	return Result{Status: StatusValid, Message: "download validated"}
}
