package ingest

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor extracts plain text from PDF payloads.
type PDFExtractor struct{}

// ExtractText returns the concatenated plain text of all pages.
func (PDFExtractor) ExtractText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotPDF, err)
	}

	body, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotPDF, err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(body); err != nil {
		return "", fmt.Errorf("reading pdf content: %w", err)
	}
	return buf.String(), nil
}

// IsPDF reports whether the uploaded file looks like a PDF by extension.
func IsPDF(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".pdf")
}
