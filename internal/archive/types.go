package archive

// Document is an uploaded original to keep.
type Document struct {
	SessionID string
	Filename  string
	MimeType  string
	Blob      []byte
	// Excerpt is the extracted text that grounded the session.
	Excerpt string
}

// ManifestEntry is one JSONL line in the monthly manifest file.
type ManifestEntry struct {
	SessionID  string `json:"session_id"`
	S3Key      string `json:"s3_key"`
	Filename   string `json:"filename"`
	MimeType   string `json:"mime_type"`
	SizeBytes  int    `json:"size_bytes"`
	SHA256     string `json:"sha256"`
	Preview    string `json:"preview,omitempty"`
	ArchivedAt string `json:"archived_at"`
}

const previewChars = 200
