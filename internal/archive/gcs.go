package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSSink uploads exports to a Google Cloud Storage bucket
type GCSSink struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSSink creates a GCS client from a service account key file
func NewGCSSink(ctx context.Context, bucket, prefix, saKeyPath string) (*GCSSink, error) {
	if bucket == "" {
		return nil, fmt.Errorf("GCS bucket is required")
	}
	if _, err := os.Stat(saKeyPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("service account key not found at path: %s", saKeyPath)
	}

	client, err := storage.NewClient(ctx, option.WithCredentialsFile(saKeyPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}

	return &GCSSink{client: client, bucket: bucket, prefix: prefix}, nil
}

// Name identifies the sink in logs and metrics
func (s *GCSSink) Name() string { return "gcs" }

// Write uploads data as a new object
func (s *GCSSink) Write(ctx context.Context, name string, data []byte) (string, error) {
	object := path.Join(s.prefix, name)

	writer := s.client.Bucket(s.bucket).Object(object).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = "application/json"
	writer.CacheControl = "no-cache, no-store, must-revalidate"

	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		writer.Close()
		return "", fmt.Errorf("failed to upload receipt export to %s: %w", object, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer for %s: %w", object, err)
	}

	return fmt.Sprintf("gs://%s/%s", s.bucket, object), nil
}

// Close releases the storage client
func (s *GCSSink) Close() error {
	return s.client.Close()
}
