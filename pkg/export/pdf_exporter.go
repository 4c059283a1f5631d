package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const (
	portraitWidth  = 190.0
	landscapeWidth = 277.0
	keyColumnShare = 2.5
)

// PDFExporter renders datasets into a tabular PDF. Tables wider than
// LandscapeAfter columns are laid out on landscape pages.
type PDFExporter struct {
	LandscapeAfter int
}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{LandscapeAfter: 8}
}

// Render creates a PDF document with an optional title and table body.
// Highlighted cells are shaded.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	orientation, width := "P", portraitWidth
	if len(data.Headers) > e.LandscapeAfter {
		orientation, width = "L", landscapeWidth
	}
	pdf := gofpdf.New(orientation, "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.SetFillColor(255, 230, 150)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(title), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	// the key column gets a wider share than the slot columns
	unit := width / (float64(len(data.Headers)-1) + keyColumnShare)
	widthOf := func(i int) float64 {
		if i == 0 {
			return unit * keyColumnShare
		}
		return unit
	}

	fontSize := 9.0
	if orientation == "L" {
		fontSize = 6
	}
	pdf.SetFont("Arial", "B", fontSize)
	for i, header := range data.Headers {
		pdf.CellFormat(widthOf(i), 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", fontSize)
	for _, row := range data.Rows {
		key := data.Key(row)
		for i, header := range data.Headers {
			fill := data.Highlighted(key, header)
			pdf.CellFormat(widthOf(i), 7, row[header], "1", 0, "", fill, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
