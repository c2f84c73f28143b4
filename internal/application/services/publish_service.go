package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/loicbachelot/cross-section-digitizer/internal/application/ports"
	"github.com/loicbachelot/cross-section-digitizer/internal/core/archive"
	"github.com/loicbachelot/cross-section-digitizer/internal/core/qgisrepo"
)

// PackagePrefix is where plugin zips live inside a repository target.
const PackagePrefix = "packages/"

// TargetFactory builds a storage target from a URL like
// /srv/plugins, file:///srv/plugins, s3://bucket/prefix or gs://bucket.
type TargetFactory func(url string) (ports.StorageTarget, error)

// PublishService pushes a packaged plugin and an updated plugins.xml
// index to a repository target
type PublishService struct {
	packaging *PackagingService
	newTarget TargetFactory
	logger    ports.LoggingGateway
}

// NewPublishService creates a new publish service
func NewPublishService(packaging *PackagingService, newTarget TargetFactory, logger ports.LoggingGateway) *PublishService {
	return &PublishService{
		packaging: packaging,
		newTarget: newTarget,
		logger:    logger,
	}
}

// PublishOptions controls a publish run
type PublishOptions struct {
	PluginDir    string
	DistDir      string
	TargetURL    string
	BaseURL      string
	SkipPackage  bool
	ArtifactPath string
	Excludes     []string
	Force        bool
}

// PublishResult describes the published entry
type PublishResult struct {
	Target      string
	Artifact    *archive.Artifact
	Entry       qgisrepo.Plugin
	PackageKey  string
	IndexKey    string
	DownloadURL string
	NewEntry    bool
}

// Publish uploads the zip and then the merged index, in that order, so
// a reader never sees an index entry whose package is missing
func (s *PublishService) Publish(ctx context.Context, opts PublishOptions) (*PublishResult, error) {
	if opts.TargetURL == "" {
		return nil, fmt.Errorf("no repository target configured")
	}
	target, err := s.newTarget(opts.TargetURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository target: %w", err)
	}

	artifact, err := s.resolveArtifact(ctx, opts)
	if err != nil {
		return nil, err
	}

	m, _, err := archive.ReadManifest(artifact.Path)
	if err != nil {
		return nil, err
	}

	fileName := filepath.Base(artifact.Path)
	packageKey := PackagePrefix + fileName

	idx, err := s.loadIndex(ctx, target)
	if err != nil {
		return nil, err
	}

	downloadURL := target.URL(packageKey)
	if opts.BaseURL != "" {
		downloadURL = strings.TrimSuffix(opts.BaseURL, "/") + "/" + packageKey
	}

	entry := qgisrepo.NewPlugin(m, fileName, downloadURL, time.Now())
	newEntry := idx.Find(entry.Name, entry.Version) == nil
	idx.Upsert(entry)

	f, err := os.Open(artifact.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact: %w", err)
	}
	if err := target.Put(ctx, packageKey, f, artifact.Size, "application/zip"); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to upload package to %s: %w", target.Name(), err)
	}
	f.Close()

	var buf bytes.Buffer
	if err := idx.Write(&buf); err != nil {
		return nil, err
	}
	if err := target.Put(ctx, qgisrepo.IndexFileName, bytes.NewReader(buf.Bytes()), int64(buf.Len()), "application/xml"); err != nil {
		return nil, fmt.Errorf("failed to upload index to %s: %w", target.Name(), err)
	}

	s.logger.Log(ports.LogLevelInfo, "Published plugin to repository", map[string]interface{}{
		"target":  target.Name(),
		"package": packageKey,
		"name":    entry.Name,
		"version": entry.Version,
		"new":     newEntry,
	})

	return &PublishResult{
		Target:      target.Name(),
		Artifact:    artifact,
		Entry:       entry,
		PackageKey:  packageKey,
		IndexKey:    qgisrepo.IndexFileName,
		DownloadURL: downloadURL,
		NewEntry:    newEntry,
	}, nil
}

// resolveArtifact either builds a fresh package or describes an
// already-built zip when --skip-package is used.
func (s *PublishService) resolveArtifact(ctx context.Context, opts PublishOptions) (*archive.Artifact, error) {
	if !opts.SkipPackage {
		return s.packaging.Package(ctx, PackageOptions{
			PluginDir: opts.PluginDir,
			DistDir:   opts.DistDir,
			Excludes:  opts.Excludes,
			Force:     opts.Force,
		})
	}

	if opts.ArtifactPath == "" {
		return nil, fmt.Errorf("an artifact path is required when packaging is skipped")
	}
	m, pkg, err := archive.ReadManifest(opts.ArtifactPath)
	if err != nil {
		return nil, err
	}
	stat, err := os.Stat(opts.ArtifactPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat artifact: %w", err)
	}
	digest, err := fileSHA256(opts.ArtifactPath)
	if err != nil {
		return nil, err
	}
	return &archive.Artifact{
		Path:        opts.ArtifactPath,
		PackageName: pkg,
		Version:     m.Version,
		Size:        stat.Size(),
		SHA256:      digest,
	}, nil
}

func (s *PublishService) loadIndex(ctx context.Context, target ports.StorageTarget) (*qgisrepo.Index, error) {
	rc, err := target.Get(ctx, qgisrepo.IndexFileName)
	if err != nil {
		if errors.Is(err, ports.ErrNotExist) {
			return qgisrepo.NewIndex(), nil
		}
		return nil, fmt.Errorf("failed to read existing index from %s: %w", target.Name(), err)
	}
	defer rc.Close()

	idx, err := qgisrepo.Parse(rc)
	if err != nil {
		return nil, fmt.Errorf("existing index on %s is unreadable: %w", target.Name(), err)
	}
	return idx, nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
