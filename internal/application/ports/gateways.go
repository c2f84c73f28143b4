package ports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// ErrReleaseNotFound is returned when no published release exists for a tag.
var ErrReleaseNotFound = errors.New("release not found")

// ErrNotExist is returned by storage targets when a key is absent.
var ErrNotExist = errors.New("object does not exist")

// Repo identifies a GitHub repository.
type Repo struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// ParseRepo parses "owner/name" into a Repo.
func ParseRepo(s string) (Repo, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Repo{}, fmt.Errorf("repository must be in owner/name form, got %q", s)
	}
	return Repo{Owner: parts[0], Name: parts[1]}, nil
}

// String returns the owner/name form.
func (r Repo) String() string {
	return r.Owner + "/" + r.Name
}

// IsZero reports whether the repo is unset.
func (r Repo) IsZero() bool {
	return r.Owner == "" && r.Name == ""
}

// Release is a published GitHub release.
type Release struct {
	ID          int64     `json:"id"`
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Draft       bool      `json:"draft"`
	Prerelease  bool      `json:"prerelease"`
	HTMLURL     string    `json:"html_url"`
	UploadURL   string    `json:"upload_url"`
	PublishedAt time.Time `json:"published_at"`
}

// Asset is a file attached to a release.
type Asset struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Size               int64     `json:"size"`
	ContentType        string    `json:"content_type"`
	BrowserDownloadURL string    `json:"browser_download_url"`
	CreatedAt          time.Time `json:"created_at"`
}

// ReleaseGateway defines the interface for publishing release assets
type ReleaseGateway interface {
	// FindReleaseByTag returns the release for a tag, ErrReleaseNotFound if absent
	FindReleaseByTag(ctx context.Context, repo Repo, tag string) (*Release, error)

	// ListAssets returns the assets attached to a release
	ListAssets(ctx context.Context, repo Repo, releaseID int64) ([]Asset, error)

	// UploadAsset attaches a file to a release
	UploadAsset(ctx context.Context, release *Release, name, contentType string, body io.Reader, size int64) (*Asset, error)

	// DeleteAsset removes an asset from a release
	DeleteAsset(ctx context.Context, repo Repo, assetID int64) error

	// TestConnection verifies the API is reachable with the configured token
	TestConnection(ctx context.Context) error

	// GetRequestStats returns gateway request statistics
	GetRequestStats() RequestStats
}

// RequestStats contains gateway usage statistics
type RequestStats struct {
	TotalRequests      int64         `json:"total_requests"`
	SuccessfulRequests int64         `json:"successful_requests"`
	FailedRequests     int64         `json:"failed_requests"`
	RetriedRequests    int64         `json:"retried_requests"`
	TotalBytesUploaded int64         `json:"total_bytes_uploaded"`
	AverageLatency     time.Duration `json:"average_latency"`
	LastRequestTime    time.Time     `json:"last_request_time"`
}

// StorageTarget defines the interface for plugin repository storage
type StorageTarget interface {
	// Name identifies the target for logs and reports
	Name() string

	// Put writes an object at key, replacing any previous content
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error

	// Get opens the object at key, ErrNotExist when absent
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// List returns the keys under a prefix
	List(ctx context.Context, prefix string) ([]string, error)

	// URL returns the public URL for a key, best effort
	URL(key string) string
}

// VersionResolver inspects a git working tree for release information
type VersionResolver interface {
	// HeadTag returns the tag pointing at HEAD, empty when HEAD is untagged
	HeadTag(dir string) (string, error)

	// OriginRepository derives the owner/name repo from the origin remote
	OriginRepository(dir string) (Repo, error)
}

// LoggingGateway defines the interface for logging operations
type LoggingGateway interface {
	// Log logs a message with the specified level
	Log(level LogLevel, message string, fields map[string]interface{})

	// LogError logs an error
	LogError(err error, message string, fields map[string]interface{})

	// SetLogLevel sets the logging level
	SetLogLevel(level LogLevel)

	// GetLogLevel returns the current logging level
	GetLogLevel() LogLevel
}

// LogLevel defines the logging level
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)
