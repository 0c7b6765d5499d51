// Package ingest turns an uploaded PDF payload into overlapping text chunks
// suitable for indexing. It has no dependency on the session store; ingestion
// is a pure function of the payload.
package ingest

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotPDF indicates the payload is not a parseable PDF document.
	ErrNotPDF = errors.New("document is not a valid PDF")
	// ErrEmptyDocument indicates the PDF contained no extractable text.
	ErrEmptyDocument = errors.New("document contains no extractable text")
	// ErrTooLarge indicates the payload exceeds the configured size limit.
	ErrTooLarge = errors.New("document exceeds the size limit")
)

// Extractor extracts plain text from a binary document payload.
type Extractor interface {
	ExtractText(data []byte) (string, error)
}

// Ingester validates an uploaded payload and produces ordered text chunks.
type Ingester struct {
	Extractor Extractor
	MaxSize   int64
	ChunkSize int
	Overlap   int
}

// Ingest extracts text from the payload and splits it into chunks.
func (ing *Ingester) Ingest(data []byte) ([]string, error) {
	if ing.MaxSize > 0 && int64(len(data)) > ing.MaxSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}
	text, err := ing.Extractor.ExtractText(data)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyDocument
	}
	return Chunk(text, ing.ChunkSize, ing.Overlap), nil
}
