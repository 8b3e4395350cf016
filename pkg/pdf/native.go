package pdf

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-pdf/fpdf"

	"jamabandi/pkg/logger"
)

// nativeBackend renders record tables with a pure-Go PDF writer. It
// extracts tabular text rather than rendering the page's CSS, trading
// visual fidelity for zero external dependencies.
type nativeBackend struct {
	logger logger.Logger
}

func newNative(log logger.Logger) *nativeBackend {
	return &nativeBackend{logger: log}
}

func (b *nativeBackend) Name() string { return BackendNative }

// Convert parses the record page and renders its tables onto landscape
// A4 pages
func (b *nativeBackend) Convert(ctx context.Context, htmlPath, pdfPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := os.ReadFile(htmlPath)
	if err != nil {
		return fmt.Errorf("failed to read HTML: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(CleanHTML(string(raw))))
	if err != nil {
		return fmt.Errorf("failed to parse HTML: %w", err)
	}

	tables := extractTables(doc)
	if len(tables) == 0 {
		return fmt.Errorf("no tables found in %s", htmlPath)
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(6, 6, 6)
	pdf.SetAutoPageBreak(true, 6)
	pdf.AddPage()

	if title := strings.TrimSpace(doc.Find("title").Text()); title != "" {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(0, 8, title, "", 1, "C", false, 0, "")
		pdf.Ln(2)
	}

	for i, table := range tables {
		if i > 0 {
			pdf.Ln(4)
		}
		renderTable(pdf, table)
	}

	if err := pdf.OutputFileAndClose(pdfPath); err != nil {
		os.Remove(pdfPath)
		return fmt.Errorf("failed to write PDF: %w", err)
	}
	return nil
}

// extractTables pulls the text grid out of every non-empty table,
// skipping nested tables so rows are not counted twice
func extractTables(doc *goquery.Document) [][][]string {
	var tables [][][]string

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		if table.ParentsFiltered("table").Length() > 0 {
			return
		}

		var rows [][]string
		table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			var cells []string
			tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, normalizeSpace(cell.Text()))
			})
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
		})

		if len(rows) > 0 {
			tables = append(tables, rows)
		}
	})

	return tables
}

// renderTable draws one table as a bordered grid with equal column
// widths and wrapped cell text
func renderTable(pdf *fpdf.Fpdf, rows [][]string) {
	numCols := 0
	for _, row := range rows {
		if len(row) > numCols {
			numCols = len(row)
		}
	}
	if numCols == 0 {
		return
	}

	pageWidth, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	colWidth := (pageWidth - left - right) / float64(numCols)

	const fontSize = 7
	const lineHeight = 3.2
	pdf.SetFont("Helvetica", "", fontSize)

	for rowIdx, row := range rows {
		if rowIdx == 0 {
			pdf.SetFont("Helvetica", "B", fontSize)
			pdf.SetFillColor(238, 238, 238)
		}

		height := rowHeight(pdf, row, colWidth, lineHeight)
		x, y := pdf.GetXY()

		for col := 0; col < numCols; col++ {
			text := ""
			if col < len(row) {
				text = row[col]
			}
			cellX := x + float64(col)*colWidth
			pdf.Rect(cellX, y, colWidth, height, "D")
			pdf.SetXY(cellX, y)
			pdf.MultiCell(colWidth, lineHeight, text, "", "L", rowIdx == 0)
		}

		pdf.SetXY(x, y+height)

		if rowIdx == 0 {
			pdf.SetFont("Helvetica", "", fontSize)
		}
	}
}

// rowHeight computes the tallest wrapped cell in a row
func rowHeight(pdf *fpdf.Fpdf, row []string, colWidth, lineHeight float64) float64 {
	maxLines := 1
	for _, text := range row {
		lines := pdf.SplitText(text, colWidth-1)
		if len(lines) > maxLines {
			maxLines = len(lines)
		}
	}
	return float64(maxLines) * lineHeight
}

func normalizeSpace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
