package export

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const (
	pageWidth   = 190.0
	swatchWidth = 6.0
)

// PDFExporter renders datasets into a tabular PDF. When ColorColumn names a header holding
// hex colors, each row is prefixed with a colored swatch instead of the raw value.
type PDFExporter struct {
	ColorColumn string
}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter(colorColumn string) *PDFExporter {
	return &PDFExporter{ColorColumn: colorColumn}
}

// Render creates a PDF document with an optional title and table body.
func (e *PDFExporter) Render(data Dataset) ([]byte, error) {
	headers := e.visibleHeaders(data.Headers)
	if len(headers) == 0 {
		return nil, errors.New("pdf requires at least one header")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if data.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(data.Title), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	swatch := 0.0
	if e.ColorColumn != "" {
		swatch = swatchWidth
	}
	colWidth := (pageWidth - swatch) / float64(len(headers))

	pdf.SetFont("Arial", "B", 10)
	if swatch > 0 {
		pdf.CellFormat(swatch, 8, "", "1", 0, "C", false, 0, "")
	}
	for _, header := range headers {
		pdf.CellFormat(colWidth, 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	writeRow := func(row map[string]string, style string) {
		pdf.SetFont("Arial", style, 9)
		if swatch > 0 {
			r, g, b, ok := parseHexColor(row[e.ColorColumn])
			if ok {
				pdf.SetFillColor(r, g, b)
			}
			pdf.CellFormat(swatch, 7, "", "1", 0, "", ok, 0, "")
		}
		for _, header := range headers {
			pdf.CellFormat(colWidth, 7, row[header], "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}
	for _, row := range data.Rows {
		writeRow(row, "")
	}
	for _, row := range data.Footer {
		writeRow(row, "B")
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *PDFExporter) visibleHeaders(headers []string) []string {
	out := make([]string, 0, len(headers))
	for _, h := range headers {
		if h != e.ColorColumn {
			out = append(out, h)
		}
	}
	return out
}

func parseHexColor(hex string) (r, g, b int, ok bool) {
	hex = strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(hex) != 6 {
		return 0, 0, 0, false
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, 0, false
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff), true
}
