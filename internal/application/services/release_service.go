package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/loicbachelot/cross-section-digitizer/internal/application/ports"
	"github.com/loicbachelot/cross-section-digitizer/internal/core/archive"
)

// assetContentType is the media type release zips are uploaded with.
const assetContentType = "application/zip"

// ReleaseService packages a plugin and attaches the artifact to a
// published GitHub release, the step CI runs when a release goes out
type ReleaseService struct {
	gateway   ports.ReleaseGateway
	packaging *PackagingService
	resolver  ports.VersionResolver
	logger    ports.LoggingGateway
}

// NewReleaseService creates a new release service
func NewReleaseService(
	gateway ports.ReleaseGateway,
	packaging *PackagingService,
	resolver ports.VersionResolver,
	logger ports.LoggingGateway,
) *ReleaseService {
	return &ReleaseService{
		gateway:   gateway,
		packaging: packaging,
		resolver:  resolver,
		logger:    logger,
	}
}

// ReleaseOptions controls a release upload
type ReleaseOptions struct {
	PluginDir    string
	DistDir      string
	Repository   string
	Tag          string
	AssetName    string
	Excludes     []string
	Force        bool
	DryRun       bool
	KeepExisting bool
}

// ReleaseResult describes what was (or would be) uploaded
type ReleaseResult struct {
	Repo      ports.Repo
	Tag       string
	Artifact  *archive.Artifact
	Release   *ports.Release
	Asset     *ports.Asset
	AssetName string
	Replaced  bool
	DryRun    bool
	Warnings  []string
}

// Release resolves the target release, builds the artifact and uploads
// it as a release asset, replacing any asset of the same name
func (s *ReleaseService) Release(ctx context.Context, opts ReleaseOptions) (*ReleaseResult, error) {
	repo, err := s.resolveRepo(opts)
	if err != nil {
		return nil, err
	}

	tag := opts.Tag
	if tag == "" {
		tag, err = s.resolver.HeadTag(opts.PluginDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve release tag: %w", err)
		}
		if tag == "" {
			return nil, fmt.Errorf("no release tag: pass --tag or tag the current commit")
		}
	}

	artifact, err := s.packaging.Package(ctx, PackageOptions{
		PluginDir: opts.PluginDir,
		DistDir:   opts.DistDir,
		Excludes:  opts.Excludes,
		Force:     opts.Force,
	})
	if err != nil {
		return nil, err
	}

	result := &ReleaseResult{
		Repo:     repo,
		Tag:      tag,
		Artifact: artifact,
		DryRun:   opts.DryRun,
	}

	if tagVersion := strings.TrimPrefix(tag, "v"); tagVersion != artifact.Version {
		warning := fmt.Sprintf("tag %s does not match manifest version %s", tag, artifact.Version)
		result.Warnings = append(result.Warnings, warning)
		s.logger.Log(ports.LogLevelWarn, "Tag and manifest version disagree", map[string]interface{}{
			"tag":     tag,
			"version": artifact.Version,
		})
	}

	release, err := s.gateway.FindReleaseByTag(ctx, repo, tag)
	if err != nil {
		return nil, fmt.Errorf("failed to find release for tag %s in %s: %w", tag, repo, err)
	}
	result.Release = release

	result.AssetName = opts.AssetName
	if result.AssetName == "" {
		result.AssetName = filepath.Base(artifact.Path)
	}

	if opts.DryRun {
		s.logger.Log(ports.LogLevelInfo, "Dry run, skipping upload", map[string]interface{}{
			"repo":  repo.String(),
			"tag":   tag,
			"asset": result.AssetName,
		})
		return result, nil
	}

	replaced, err := s.replaceExistingAsset(ctx, repo, release, result.AssetName, opts.KeepExisting)
	if err != nil {
		return nil, err
	}
	result.Replaced = replaced

	f, err := os.Open(artifact.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact: %w", err)
	}
	defer f.Close()

	asset, err := s.gateway.UploadAsset(ctx, release, result.AssetName, assetContentType, f, artifact.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s to release %s: %w", result.AssetName, tag, err)
	}
	result.Asset = asset

	s.logger.Log(ports.LogLevelInfo, "Uploaded release asset", map[string]interface{}{
		"repo":     repo.String(),
		"tag":      tag,
		"asset":    asset.Name,
		"size":     asset.Size,
		"url":      asset.BrowserDownloadURL,
		"replaced": replaced,
	})

	return result, nil
}

func (s *ReleaseService) resolveRepo(opts ReleaseOptions) (ports.Repo, error) {
	if opts.Repository != "" {
		return ports.ParseRepo(opts.Repository)
	}
	repo, err := s.resolver.OriginRepository(opts.PluginDir)
	if err != nil {
		return ports.Repo{}, fmt.Errorf("no GitHub repository configured and origin gave none: %w", err)
	}
	return repo, nil
}

// replaceExistingAsset deletes any asset with the given name so a
// republished tag serves the fresh build.
func (s *ReleaseService) replaceExistingAsset(ctx context.Context, repo ports.Repo, release *ports.Release, name string, keepExisting bool) (bool, error) {
	assets, err := s.gateway.ListAssets(ctx, repo, release.ID)
	if err != nil {
		return false, fmt.Errorf("failed to list release assets: %w", err)
	}
	for _, asset := range assets {
		if asset.Name != name {
			continue
		}
		if keepExisting {
			return false, fmt.Errorf("asset %s already exists on release %s", name, release.TagName)
		}
		if err := s.gateway.DeleteAsset(ctx, repo, asset.ID); err != nil {
			return false, fmt.Errorf("failed to delete existing asset %s: %w", name, err)
		}
		return true, nil
	}
	return false, nil
}
