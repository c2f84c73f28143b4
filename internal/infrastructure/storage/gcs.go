package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/loicbachelot/cross-section-digitizer/internal/application/ports"
)

// GCSTarget stores repository objects in a Google Cloud Storage bucket.
type GCSTarget struct {
	client *gcs.Client
	bucket string
	prefix string
}

// NewGCSTarget creates a target using application default credentials.
// STORAGE_EMULATOR_HOST redirects it to an emulator.
func NewGCSTarget(ctx context.Context, bucket, prefix string) (*GCSTarget, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gs target needs a bucket")
	}
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return NewGCSTargetWithClient(client, bucket, prefix), nil
}

// NewGCSTargetWithClient wires an existing client, used by tests
func NewGCSTargetWithClient(client *gcs.Client, bucket, prefix string) *GCSTarget {
	return &GCSTarget{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

// Name identifies the target for logs and reports
func (t *GCSTarget) Name() string {
	if t.prefix == "" {
		return "gs://" + t.bucket
	}
	return "gs://" + path.Join(t.bucket, t.prefix)
}

func (t *GCSTarget) objectKey(key string) string {
	if t.prefix == "" {
		return key
	}
	return t.prefix + "/" + key
}

// Put writes an object at key, replacing any previous content
func (t *GCSTarget) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	w := t.client.Bucket(t.bucket).Object(t.objectKey(key)).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, body); err != nil {
		w.Close()
		return fmt.Errorf("failed to write gs://%s/%s: %w", t.bucket, t.objectKey(key), err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish gs://%s/%s: %w", t.bucket, t.objectKey(key), err)
	}
	return nil
}

// Get opens the object at key, ErrNotExist when absent
func (t *GCSTarget) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := t.client.Bucket(t.bucket).Object(t.objectKey(key)).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, fmt.Errorf("%s: %w", key, ports.ErrNotExist)
		}
		return nil, fmt.Errorf("failed to get gs://%s/%s: %w", t.bucket, t.objectKey(key), err)
	}
	return r, nil
}

// List returns the keys under a prefix
func (t *GCSTarget) List(ctx context.Context, prefix string) ([]string, error) {
	it := t.client.Bucket(t.bucket).Objects(ctx, &gcs.Query{
		Prefix: t.objectKey(prefix),
	})

	var keys []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list gs://%s: %w", t.bucket, err)
		}
		key := attrs.Name
		if t.prefix != "" {
			key = strings.TrimPrefix(key, t.prefix+"/")
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// URL returns the public object URL for a key, best effort
func (t *GCSTarget) URL(key string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", t.bucket, t.objectKey(key))
}
