// Package documents extracts plain text from uploaded pdf, docx and text
// files so it can ground chat replies.
package documents

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// DefaultContextChars is how much extracted text grounds a reply.
const DefaultContextChars = 1000

// TextExtractor turns a document blob into text.
type TextExtractor interface {
	Extract(ctx context.Context, blob []byte, mimeType string) (string, error)
}

// Extractor dispatches on the declared MIME type.
type Extractor struct {
	maxBytes int64
}

// NewExtractor builds an extractor rejecting blobs larger than maxBytes.
// A non-positive maxBytes disables the check.
func NewExtractor(maxBytes int64) *Extractor {
	return &Extractor{maxBytes: maxBytes}
}

// Extract returns the full text of blob. Types other than pdf, docx and
// plain text yield ErrUnsupportedType.
func (e *Extractor) Extract(ctx context.Context, blob []byte, mimeType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if e != nil && e.maxBytes > 0 && int64(len(blob)) > e.maxBytes {
		return "", fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, len(blob), e.maxBytes)
	}

	switch t := NormalizeType(mimeType); t {
	case TypePDF:
		return extractPDF(blob)
	case TypeDOCX:
		return extractDOCX(blob)
	case TypeText:
		if !utf8.Valid(blob) {
			return "", fmt.Errorf("%w: text is not valid utf-8", ErrExtraction)
		}
		return string(blob), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, mimeType)
	}
}

func extractPDF(blob []byte) (text string, err error) {
	// the pdf reader panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: pdf: %v", ErrExtraction, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		return "", fmt.Errorf("%w: pdf: %w", ErrExtraction, err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: pdf text: %w", ErrExtraction, err)
	}
	var buf strings.Builder
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("%w: pdf read: %w", ErrExtraction, err)
	}
	return buf.String(), nil
}

// Truncate keeps the first limit characters of text. A non-positive limit
// returns text unchanged.
func Truncate(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	n := 0
	for i := range text {
		if n == limit {
			return text[:i]
		}
		n++
	}
	return text
}
