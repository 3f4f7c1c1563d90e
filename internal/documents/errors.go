package documents

import "errors"

var (
	// ErrUnsupportedType is returned for declared types other than pdf, docx and plain text.
	ErrUnsupportedType = errors.New("documents: unsupported file type")

	// ErrExtraction is returned when a supported document cannot be read.
	ErrExtraction = errors.New("documents: text extraction failed")

	// ErrTooLarge is returned when a blob exceeds the configured size limit.
	ErrTooLarge = errors.New("documents: file too large")
)
