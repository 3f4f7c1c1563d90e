package documents

import (
	"mime"
	"path/filepath"
	"strings"
)

// Declared types the extractor understands.
const (
	TypePDF  = "application/pdf"
	TypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	TypeText = "text/plain"
)

var extensionTypes = map[string]string{
	".pdf":  TypePDF,
	".docx": TypeDOCX,
	".txt":  TypeText,
}

// NormalizeType strips parameters and case from a declared MIME type, so
// "Text/Plain; charset=utf-8" becomes "text/plain".
func NormalizeType(declared string) string {
	declared = strings.TrimSpace(declared)
	if declared == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return strings.ToLower(declared)
	}
	return mediaType
}

// ResolveType returns the declared type, falling back to the file extension
// when the client sent nothing useful (empty or application/octet-stream).
func ResolveType(filename, declared string) string {
	t := NormalizeType(declared)
	if t != "" && t != "application/octet-stream" {
		return t
	}
	if byExt, ok := extensionTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return byExt
	}
	return t
}
