package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/loicbachelot/cross-section-digitizer/internal/application/ports"
	"github.com/loicbachelot/cross-section-digitizer/internal/core/archive"
)

// PackagingService builds installable plugin archives
type PackagingService struct {
	resolver ports.VersionResolver
	logger   ports.LoggingGateway
}

// NewPackagingService creates a new packaging service
func NewPackagingService(resolver ports.VersionResolver, logger ports.LoggingGateway) *PackagingService {
	return &PackagingService{
		resolver: resolver,
		logger:   logger,
	}
}

// PackageOptions controls a single package build
type PackageOptions struct {
	PluginDir      string
	DistDir        string
	PackageName    string
	Version        string
	VersionFromGit bool
	Excludes       []string
	Force          bool
}

// Package builds the plugin zip and returns the artifact description
func (s *PackagingService) Package(ctx context.Context, opts PackageOptions) (*archive.Artifact, error) {
	version := opts.Version
	if version == "" && opts.VersionFromGit {
		tag, err := s.resolver.HeadTag(opts.PluginDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve version from git: %w", err)
		}
		if tag == "" {
			return nil, fmt.Errorf("cannot derive version from git: HEAD is not tagged")
		}
		version = strings.TrimPrefix(tag, "v")
		s.logger.Log(ports.LogLevelDebug, "Resolved version from git tag", map[string]interface{}{
			"tag":     tag,
			"version": version,
		})
	}

	builder := &archive.Builder{
		SourceDir:   opts.PluginDir,
		DistDir:     opts.DistDir,
		PackageName: opts.PackageName,
		Version:     version,
		Excludes:    opts.Excludes,
		Force:       opts.Force,
	}

	artifact, err := builder.Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build plugin package: %w", err)
	}

	s.logger.Log(ports.LogLevelInfo, "Built plugin package", map[string]interface{}{
		"path":    artifact.Path,
		"version": artifact.Version,
		"files":   artifact.FileCount,
		"size":    artifact.Size,
		"sha256":  artifact.SHA256,
	})

	return artifact, nil
}
