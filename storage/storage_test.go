package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "documents/doc_1/metadata.json", DocumentMetadataKey("doc_1"))
	assert.Equal(t, "documents/doc_1/results.json", DocumentResultsKey("doc_1"))
	assert.Equal(t, "documents/doc_1/extracted.txt", DocumentTextKey("doc_1"))
	assert.Equal(t, "documents/doc_1/original.pdf", DocumentOriginalKey("doc_1", "Agreement.PDF"))
	assert.Equal(t, "documents/doc_1/original.txt", DocumentOriginalKey("doc_1", "notes.t$xt"))
	assert.Equal(t, "documents/doc_1/original", DocumentOriginalKey("doc_1", "README"))
}

func TestLocalStorage(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "documents/a/extracted.txt", strings.NewReader("hello"), "text/plain"))

	r, err := s.Get(ctx, "documents/a/extracted.txt")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, r.Close())
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	require.NoError(t, s.Delete(ctx, "documents/a/extracted.txt"))
	require.NoError(t, s.Delete(ctx, "documents/a/extracted.txt"))

	_, err = s.Get(ctx, "documents/a/extracted.txt")
	assert.True(t, errors.Is(err, ErrObjectNotFound))
}

func TestLocalStorageRejectsEscapingKeys(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "/etc/passwd", "../outside", "a/../../b"} {
		err := s.Put(context.Background(), key, strings.NewReader("x"), "")
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	type blob struct {
		Score float64 `json:"score"`
	}
	require.NoError(t, PutJSON(ctx, s, "x/results.json", blob{Score: 70}))

	var out blob
	require.NoError(t, GetJSON(ctx, s, "x/results.json", &out))
	assert.Equal(t, 70.0, out.Score)
}

func TestNewStorage(t *testing.T) {
	s, err := NewStorage(context.Background(), StorageConfig{Type: StorageTypeLocal, LocalPath: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, s)

	_, err = NewStorage(context.Background(), StorageConfig{Type: StorageTypeS3})
	assert.Error(t, err)

	_, err = NewStorage(context.Background(), StorageConfig{Type: "ftp"})
	assert.ErrorContains(t, err, "unknown storage type")
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "application/pdf", contentTypeFor("a/original.pdf"))
	assert.Equal(t, "application/x-ndjson", contentTypeFor("regulations/corpus.jsonl"))
	assert.Equal(t, "application/octet-stream", contentTypeFor("blob"))
}
