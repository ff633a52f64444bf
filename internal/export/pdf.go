// Package export renders archived entries to portable formats.
package export

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// WritePDF renders an entry's title and text as a simple paginated PDF.
// Layout is intentionally plain: a bold title followed by wrapped
// paragraphs, with blank lines preserved as vertical spacing.
func WritePDF(title, text, outPath string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.AddPage()

	if strings.TrimSpace(title) != "" {
		pdf.SetFont("Helvetica", "B", 14)
		pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.Ln(3)
	}

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			pdf.Ln(5)
			continue
		}
		pdf.MultiCell(0, 5, line, "", "L", false)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan text: %w", err)
	}

	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
