package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/loicbachelot/cross-section-digitizer/internal/application/ports"
)

// NewTarget builds a storage target from a URL. Bare paths and file://
// URLs map to the local filesystem, s3:// to Amazon S3 and gs:// to
// Google Cloud Storage.
func NewTarget(rawURL string) (ports.StorageTarget, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("target URL cannot be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid target URL %q: %w", rawURL, err)
	}

	switch u.Scheme {
	case "":
		return NewLocalTarget(rawURL)
	case "file":
		return NewLocalTarget(u.Path)
	case "s3":
		return NewS3Target(context.Background(), u.Host, strings.TrimPrefix(u.Path, "/"))
	case "gs":
		return NewGCSTarget(context.Background(), u.Host, strings.TrimPrefix(u.Path, "/"))
	default:
		return nil, fmt.Errorf("unsupported target scheme %q (use a path, file://, s3:// or gs://)", u.Scheme)
	}
}
