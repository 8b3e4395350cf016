package validator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func fakePDF(size int, withEOF bool) []byte {
	buf := make([]byte, 0, size)
	buf = append(buf, []byte("%PDF-1.4\n")...)
	for len(buf) < size-6 {
		buf = append(buf, 'x')
	}
	if withEOF {
		buf = append(buf, []byte("\n%%EOF")...)
	} else {
		buf = append(buf, []byte("\nxxxxx")...)
	}
	return buf
}

func TestValidatePDFMissingFile(t *testing.T) {
	v := New()
	result := v.ValidatePDF(filepath.Join(t.TempDir(), "nope.pdf"))
	if result.Status != StatusInvalid {
		t.Errorf("status = %s, want invalid", result.Status)
	}
}

func TestValidatePDFBadHeader(t *testing.T) {
	v := New()
	path := writeFile(t, "bad.pdf", []byte("<html>error page</html>"))
	result := v.ValidatePDF(path)
	if result.Status != StatusInvalid {
		t.Errorf("status = %s, want invalid", result.Status)
	}
	if !strings.Contains(result.Message, "header") {
		t.Errorf("message = %q, want header complaint", result.Message)
	}
}

func TestValidatePDFTooSmall(t *testing.T) {
	v := New()
	path := writeFile(t, "small.pdf", fakePDF(512, true))
	result := v.ValidatePDF(path)
	if result.Status != StatusWarning {
		t.Errorf("status = %s, want warning", result.Status)
	}
	if result.Size != 512 {
		t.Errorf("size = %d, want 512", result.Size)
	}
}

func TestValidatePDFValid(t *testing.T) {
	v := New()
	path := writeFile(t, "ok.pdf", fakePDF(20*1024, true))
	result := v.ValidatePDF(path)
	if !result.IsValid() {
		t.Errorf("result = %+v, want valid", result)
	}
}

func TestValidatePDFDeepMissingEOF(t *testing.T) {
	v := New()
	path := writeFile(t, "trunc.pdf", fakePDF(20*1024, false))
	result := v.ValidatePDFDeep(path)
	if result.Status != StatusWarning {
		t.Errorf("status = %s, want warning", result.Status)
	}
	if !strings.Contains(result.Message, "%%EOF") {
		t.Errorf("message = %q, want truncation hint", result.Message)
	}
}

func TestValidatePDFDeepUnparseable(t *testing.T) {
	// Correct header and EOF marker but garbage in between: the
	// structural parse must reject it.
	v := New()
	path := writeFile(t, "garbage.pdf", fakePDF(20*1024, true))
	result := v.ValidatePDFDeep(path)
	if result.Status != StatusInvalid {
		t.Errorf("status = %s, want invalid", result.Status)
	}
}

func TestValidatePDFDeepInvalidShortCircuits(t *testing.T) {
	v := New()
	path := writeFile(t, "notpdf.pdf", []byte("plain text"))
	result := v.ValidatePDFDeep(path)
	if result.Status != StatusInvalid {
		t.Errorf("status = %s, want invalid", result.Status)
	}
}

func TestValidateHTMLContentFailurePhrases(t *testing.T) {
	v := New()
	pad := strings.Repeat("x", 2000)
	tests := []struct {
		name string
		html string
	}{
		{"no record", pad + "No Record Found for khewat"},
		{"spread whitespace", pad + "no  \n\t record   found"},
		{"error page", pad + "An Error  Occurred while processing"},
		{"session expiry", pad + "Your Session   Expired, try again"},
		{"login redirect", pad + "Please\nLogin to continue"},
		{"access denied", pad + "Access Denied"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.ValidateHTMLContent(tt.html)
			if result.Status != StatusInvalid {
				t.Errorf("status = %s, want invalid", result.Status)
			}
		})
	}
}

func TestValidateHTMLContentTooShort(t *testing.T) {
	v := New()
	result := v.ValidateHTMLContent("<html><body>ok</body></html>")
	if result.Status != StatusWarning {
		t.Errorf("status = %s, want warning", result.Status)
	}
}

func TestValidateHTMLContentValid(t *testing.T) {
	v := New()
	html := "<html><body>" + strings.Repeat("nakal record row ", 200) + "</body></html>"
	result := v.ValidateHTMLContent(html)
	if !result.IsValid() {
		t.Errorf("result = %+v, want valid", result)
	}
}

func TestValidateDownloadHTMLShortCircuits(t *testing.T) {
	v := New()
	// A valid PDF alongside an error page must still fail.
	path := writeFile(t, "ok.pdf", fakePDF(20*1024, true))
	result := v.ValidateDownload(strings.Repeat("x", 2000)+"no record found", path)
	if result.Status != StatusInvalid {
		t.Errorf("status = %s, want invalid", result.Status)
	}
}

func TestValidateDownloadBothChecked(t *testing.T) {
	v := New()
	html := strings.Repeat("nakal ", 500)

	bad := writeFile(t, "bad.pdf", []byte("not a pdf"))
	if result := v.ValidateDownload(html, bad); result.Status != StatusInvalid {
		t.Errorf("bad pdf: status = %s, want invalid", result.Status)
	}

	if result := v.ValidateDownload(html, ""); !result.IsValid() {
		t.Errorf("html only: result = %+v, want valid", result)
	}
}
