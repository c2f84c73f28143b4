package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/loicbachelot/cross-section-digitizer/internal/application/ports"
)

// S3Target stores repository objects in an Amazon S3 bucket.
type S3Target struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Target creates a target using the ambient AWS credential chain
func NewS3Target(ctx context.Context, bucket, prefix string) (*S3Target, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 target needs a bucket")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return NewS3TargetWithClient(s3.NewFromConfig(cfg), bucket, prefix), nil
}

// NewS3TargetWithClient wires an existing client, used by tests
func NewS3TargetWithClient(client *s3.Client, bucket, prefix string) *S3Target {
	return &S3Target{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

// Name identifies the target for logs and reports
func (t *S3Target) Name() string {
	if t.prefix == "" {
		return "s3://" + t.bucket
	}
	return "s3://" + path.Join(t.bucket, t.prefix)
}

func (t *S3Target) objectKey(key string) string {
	if t.prefix == "" {
		return key
	}
	return t.prefix + "/" + key
}

// Put writes an object at key, replacing any previous content
func (t *S3Target) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	_, err := t.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(t.bucket),
		Key:           aws.String(t.objectKey(key)),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to put s3://%s/%s: %w", t.bucket, t.objectKey(key), err)
	}
	return nil
}

// Get opens the object at key, ErrNotExist when absent
func (t *S3Target) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := t.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(t.objectKey(key)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("%s: %w", key, ports.ErrNotExist)
		}
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", t.bucket, t.objectKey(key), err)
	}
	return out.Body, nil
}

// List returns the keys under a prefix
func (t *S3Target) List(ctx context.Context, prefix string) ([]string, error) {
	paginator := s3.NewListObjectsV2Paginator(t.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(t.bucket),
		Prefix: aws.String(t.objectKey(prefix)),
	})

	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list s3://%s: %w", t.bucket, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if t.prefix != "" {
				key = strings.TrimPrefix(key, t.prefix+"/")
			}
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// URL returns the virtual-hosted URL for a key, best effort
func (t *S3Target) URL(key string) string {
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", t.bucket, t.objectKey(key))
}

func isS3NotFound(err error) bool {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var notFound *types.NotFound
	return errors.As(err, &notFound)
}
