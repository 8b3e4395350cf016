package pdf

import "regexp"

// The portal's record pages carry print-blocking CSS, scripts, and
// fixed pixel widths that clip table columns. These are stripped before
// conversion so the full table renders.
var (
	printBlockRe = regexp.MustCompile(`(?is)@media\s+print\s*\{[^}]*display\s*:\s*none[^}]*\}`)
	scriptRe     = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleLinkRe  = regexp.MustCompile(`(?i)<link[^>]*stylesheet[^>]*>`)
	hiddenRe     = regexp.MustCompile(`(?i)<input[^>]*type=["']hidden["'][^>]*>`)
	pixelWidthRe = regexp.MustCompile(`(?i)width\s*:\s*\d+px\s*;?\s*`)
	positionRe   = regexp.MustCompile(`(?i)position\s*:\s*(?:relative|static)\s*;?\s*`)
	offsetRe     = regexp.MustCompile(`(?i)(?:left|top)\s*:\s*-?\d+px\s*;?\s*`)
)

// CleanHTML prepares a record page body for PDF conversion
func CleanHTML(html string) string {
	html = printBlockRe.ReplaceAllString(html, "")
	html = scriptRe.ReplaceAllString(html, "")
	html = styleLinkRe.ReplaceAllString(html, "")
	html = hiddenRe.ReplaceAllString(html, "")
	html = pixelWidthRe.ReplaceAllString(html, "")
	html = positionRe.ReplaceAllString(html, "")
	html = offsetRe.ReplaceAllString(html, "")
	return html
}
