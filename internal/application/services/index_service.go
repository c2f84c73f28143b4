package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/loicbachelot/cross-section-digitizer/internal/application/ports"
	"github.com/loicbachelot/cross-section-digitizer/internal/core/archive"
	"github.com/loicbachelot/cross-section-digitizer/internal/core/qgisrepo"
)

// IndexService rebuilds a plugins.xml index from the zips already
// sitting in a repository directory
type IndexService struct {
	logger ports.LoggingGateway
}

// NewIndexService creates a new index service
func NewIndexService(logger ports.LoggingGateway) *IndexService {
	return &IndexService{logger: logger}
}

// RebuildOptions controls an index rebuild
type RebuildOptions struct {
	Dir     string
	BaseURL string
}

// RebuildResult summarizes the rebuilt index
type RebuildResult struct {
	IndexPath string
	Index     *qgisrepo.Index
	Scanned   int
	Skipped   []string
}

// Rebuild scans the directory for plugin zips, reads each embedded
// manifest and writes a fresh plugins.xml beside them. Zips that are
// not plugin packages are skipped, not fatal.
func (s *IndexService) Rebuild(ctx context.Context, opts RebuildOptions) (*RebuildResult, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("a repository directory is required")
	}
	info, err := os.Stat(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read repository directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", opts.Dir)
	}

	result := &RebuildResult{
		IndexPath: filepath.Join(opts.Dir, qgisrepo.IndexFileName),
		Index:     qgisrepo.NewIndex(),
	}

	err = filepath.WalkDir(opts.Dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && p != opts.Dir {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(d.Name()), ".zip") {
			return nil
		}

		rel, err := filepath.Rel(opts.Dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		result.Scanned++

		m, _, err := archive.ReadManifest(p)
		if err != nil {
			result.Skipped = append(result.Skipped, rel)
			s.logger.Log(ports.LogLevelWarn, "Skipping zip without a readable manifest", map[string]interface{}{
				"file":  rel,
				"error": err.Error(),
			})
			return nil
		}

		downloadURL := rel
		if opts.BaseURL != "" {
			downloadURL = strings.TrimSuffix(opts.BaseURL, "/") + "/" + rel
		}
		result.Index.Upsert(qgisrepo.NewPlugin(m, filepath.Base(p), downloadURL, time.Now()))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", opts.Dir, err)
	}

	if err := result.Index.SaveFile(result.IndexPath); err != nil {
		return nil, err
	}

	s.logger.Log(ports.LogLevelInfo, "Rebuilt repository index", map[string]interface{}{
		"path":    result.IndexPath,
		"entries": len(result.Index.Plugins),
		"skipped": len(result.Skipped),
	})

	return result, nil
}
