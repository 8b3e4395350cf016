package pdf

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"jamabandi/pkg/logger"
)

// pageCSS forces the record tables visible and keeps them inside an A4
// landscape page
const pageCSS = `
html, body { display: block !important; visibility: visible !important; margin: 0; padding: 0; }
table { width: 100% !important; border-collapse: collapse; font-size: 7.5pt; table-layout: fixed; word-wrap: break-word; }
th, td { border: 1px solid #333; padding: 2px 3px; overflow: hidden; word-wrap: break-word; }
th { font-size: 7pt; background-color: #eee; }
#btnLogout, #btnGetVirifiableNakal, #dvlang, .btn_login, .header_43 { display: none !important; }
`

// insertAfterHead places the style block just inside the head tag,
// matching the tag case-insensitively, or prepends it when absent
func insertAfterHead(html, style string) string {
	lower := strings.ToLower(html)
	if idx := strings.Index(lower, "<head"); idx >= 0 {
		if end := strings.Index(lower[idx:], ">"); end >= 0 {
			pos := idx + end + 1
			return html[:pos] + style + html[pos:]
		}
	}
	return style + html
}

// wkhtmltopdfBackend shells out to the wkhtmltopdf binary
type wkhtmltopdfBackend struct {
	binary string
	logger logger.Logger
}

func newWkhtmltopdf(binary string, log logger.Logger) *wkhtmltopdfBackend {
	return &wkhtmltopdfBackend{binary: binary, logger: log}
}

func (b *wkhtmltopdfBackend) Name() string { return BackendWkhtmltopdf }

// Convert cleans the HTML into a temp file, runs wkhtmltopdf on it, and
// leaves the PDF at pdfPath
func (b *wkhtmltopdfBackend) Convert(ctx context.Context, htmlPath, pdfPath string) error {
	raw, err := os.ReadFile(htmlPath)
	if err != nil {
		return fmt.Errorf("failed to read HTML: %w", err)
	}

	cleaned := CleanHTML(string(raw))
	cleaned = insertAfterHead(cleaned, "<style>"+pageCSS+"</style>")

	tempHTML := filepath.Join(os.TempDir(), filepath.Base(htmlPath)+".clean.html")
	if err := os.WriteFile(tempHTML, []byte(cleaned), 0o644); err != nil {
		return fmt.Errorf("failed to write cleaned HTML: %w", err)
	}
	defer os.Remove(tempHTML)

	args := []string{
		"--orientation", "Landscape",
		"--page-size", "A4",
		"--margin-top", "6mm",
		"--margin-right", "6mm",
		"--margin-bottom", "6mm",
		"--margin-left", "6mm",
		"--encoding", "UTF-8",
		"--no-stop-slow-scripts",
		"--enable-local-file-access",
		"--quiet",
		tempHTML,
		pdfPath,
	}

	cmd := exec.CommandContext(ctx, b.binary, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		os.Remove(pdfPath)
		b.logger.ErrorWithFields("wkhtmltopdf failed", map[string]interface{}{
			"file":   filepath.Base(htmlPath),
			"output": strings.TrimSpace(string(output)),
			"error":  err.Error(),
		})
		return fmt.Errorf("wkhtmltopdf: %w", err)
	}

	return nil
}
