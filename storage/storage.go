package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
)

// Storage is a key-addressed object store
type Storage interface {
	// Put stores data under key, replacing any existing object
	Put(ctx context.Context, key string, data io.Reader, contentType string) error

	// Get opens the object stored under key
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the object stored under key. Missing objects are not an error.
	Delete(ctx context.Context, key string) error
}

// ErrObjectNotFound is returned by Get for a missing key
var ErrObjectNotFound = errors.New("object not found")

// ErrInvalidKey is returned for keys that are empty or escape the store root
var ErrInvalidKey = errors.New("invalid object key")

// StorageType represents the storage backend type
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeS3    StorageType = "s3"
	StorageTypeGCS   StorageType = "gcs"
)

// StorageConfig holds configuration for storage
type StorageConfig struct {
	Type               StorageType
	LocalPath          string
	S3Bucket           string
	S3Region           string
	AWSAccessKey       string
	AWSSecretKey       string
	GCSBucket          string
	GCSCredentialsFile string
}

// NewStorage creates a new storage instance based on configuration
func NewStorage(ctx context.Context, cfg StorageConfig) (Storage, error) {
	switch cfg.Type {
	case StorageTypeLocal, "":
		localPath := cfg.LocalPath
		if localPath == "" {
			localPath = "./storage/files"
		}
		return NewLocalStorage(localPath)
	case StorageTypeS3:
		if cfg.S3Bucket == "" {
			return nil, errors.New("S3 bucket is required for S3 storage")
		}
		return NewS3Storage(ctx, cfg)
	case StorageTypeGCS:
		if cfg.GCSBucket == "" {
			return nil, errors.New("GCS bucket is required for GCS storage")
		}
		return NewGCSStorage(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// DocumentMetadataKey is where a document's metadata blob lives
func DocumentMetadataKey(documentID string) string {
	return path.Join("documents", documentID, "metadata.json")
}

// DocumentResultsKey is where a document's processing results live
func DocumentResultsKey(documentID string) string {
	return path.Join("documents", documentID, "results.json")
}

// DocumentTextKey is where the extracted plain text of a document is kept
func DocumentTextKey(documentID string) string {
	return path.Join("documents", documentID, "extracted.txt")
}

// DocumentOriginalKey is where the uploaded file is kept, named original.<ext>
func DocumentOriginalKey(documentID, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	ext = strings.Map(func(r rune) rune {
		if r == '.' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, ext)
	return path.Join("documents", documentID, "original"+ext)
}

// PutJSON marshals v and stores it under key
func PutJSON(ctx context.Context, s Storage, key string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return s.Put(ctx, key, bytes.NewReader(data), "application/json")
}

// GetJSON loads key and unmarshals it into v
func GetJSON(ctx context.Context, s Storage, key string, v interface{}) error {
	r, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	defer r.Close()

	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return ErrInvalidKey
		}
	}
	return nil
}

// contentTypeFor determines content type from a key's extension
func contentTypeFor(key string) string {
	switch strings.ToLower(filepath.Ext(key)) {
	case ".pdf":
		return "application/pdf"
	case ".txt":
		return "text/plain"
	case ".json":
		return "application/json"
	case ".jsonl":
		return "application/x-ndjson"
	default:
		return "application/octet-stream"
	}
}
