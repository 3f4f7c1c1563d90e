package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockS3Client records PutObject/GetObject calls for testing.
type mockS3Client struct {
	putCalls []putCall
	objects  map[string][]byte // key -> body
	getErr   error
}

type putCall struct {
	bucket      string
	key         string
	contentType string
	body        []byte
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, _ := io.ReadAll(input.Body)
	m.putCalls = append(m.putCalls, putCall{
		bucket:      *input.Bucket,
		key:         *input.Key,
		contentType: *input.ContentType,
		body:        body,
	})
	m.objects[*input.Key] = body
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, &notFoundError{}
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader(data)),
	}, nil
}

type notFoundError struct{}

func (e *notFoundError) Error() string { return "NoSuchKey: key not found" }

func fixedStore(mock *mockS3Client) *Store {
	store := NewStore(mock, "test-bucket", nil)
	store.now = func() time.Time { return time.Date(2024, 12, 18, 15, 0, 0, 0, time.UTC) }
	return store
}

func TestStore_ArchiveDocument(t *testing.T) {
	mock := newMockS3()
	store := fixedStore(mock)

	key, err := store.ArchiveDocument(context.Background(), Document{
		SessionID: "sess-1",
		Filename:  "../visitor guide.pdf",
		MimeType:  "application/pdf",
		Blob:      []byte("%PDF-1.4 ..."),
		Excerpt:   "Call 330-333-2654 or write to desk@example.com for visiting hours.",
	})
	require.NoError(t, err)

	// document + manifest
	require.Len(t, mock.putCalls, 2)
	assert.Equal(t, key, mock.putCalls[0].key)
	assert.True(t, strings.HasPrefix(key, "documents/v1/by-date/2024/12/18/sess-1/"), key)
	assert.True(t, strings.HasSuffix(key, "-visitor_guide.pdf"), key)
	assert.Equal(t, "application/pdf", mock.putCalls[0].contentType)
	assert.Equal(t, []byte("%PDF-1.4 ..."), mock.putCalls[0].body)

	assert.Equal(t, "documents/v1/manifests/2024-12.jsonl", mock.putCalls[1].key)
	var entry ManifestEntry
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(mock.putCalls[1].body), &entry))
	assert.Equal(t, "sess-1", entry.SessionID)
	assert.Equal(t, key, entry.S3Key)
	assert.Equal(t, HashContent([]byte("%PDF-1.4 ...")), entry.SHA256)
	assert.NotContains(t, entry.Preview, "desk@example.com")
	assert.Contains(t, entry.Preview, "[EMAIL]")
}

func TestStore_Disabled(t *testing.T) {
	store := NewStore(nil, "", nil)
	assert.False(t, store.Enabled())

	key, err := store.ArchiveDocument(context.Background(), Document{Filename: "a.txt"})
	assert.NoError(t, err) // no-op, no error
	assert.Empty(t, key)
}

func TestStore_ManifestAppend(t *testing.T) {
	mock := newMockS3()
	store := fixedStore(mock)

	require.NoError(t, store.AppendManifest(context.Background(), ManifestEntry{SessionID: "s-1"}))
	require.NoError(t, store.AppendManifest(context.Background(), ManifestEntry{SessionID: "s-2"}))

	lastPut := mock.putCalls[len(mock.putCalls)-1]
	lines := bytes.Split(bytes.TrimSpace(lastPut.body), []byte("\n"))
	assert.Len(t, lines, 2)
}

func TestStore_ManifestReadFailureDoesNotOverwrite(t *testing.T) {
	mock := newMockS3()
	mock.getErr = errors.New("AccessDenied")
	store := fixedStore(mock)

	err := store.AppendManifest(context.Background(), ManifestEntry{SessionID: "s-1"})
	require.Error(t, err)
	assert.Empty(t, mock.putCalls)
}

func TestSafeSegment(t *testing.T) {
	assert.Equal(t, "report.pdf", safeSegment("C:\\Users\\me\\report.pdf"))
	assert.Equal(t, "unnamed", safeSegment(""))
	assert.Equal(t, "a_b.txt", safeSegment("a b.txt"))
}
