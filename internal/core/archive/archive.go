package archive

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/loicbachelot/cross-section-digitizer/internal/core/manifest"
)

// DefaultDistDir is where artifacts land when no destination is configured.
const DefaultDistDir = "dist"

// defaultExcludes are never packaged. Hidden files and directories are
// excluded on top of these.
var defaultExcludes = []string{
	".git",
	".github",
	"__pycache__",
	"*.pyc",
	DefaultDistDir,
	".csd.yml",
}

// DefaultExcludes returns the built-in exclude patterns.
func DefaultExcludes() []string {
	return append([]string(nil), defaultExcludes...)
}

// Artifact describes a built plugin zip.
type Artifact struct {
	Path        string
	PackageName string
	Version     string
	Size        int64
	SHA256      string
	FileCount   int
}

// ArtifactPath is the fixed destination contract between the build and
// upload steps: <dist>/<package>.<version>.zip.
func ArtifactPath(distDir, packageName, version string) string {
	return filepath.Join(distDir, fmt.Sprintf("%s.%s.zip", packageName, version))
}

// Builder packages a plugin directory into a zip the QGIS plugin manager
// can install: every entry lives under a single top-level directory named
// after the plugin package.
type Builder struct {
	// SourceDir is the plugin directory holding metadata.txt.
	SourceDir string
	// DistDir receives the artifact. Defaults to SourceDir/dist.
	DistDir string
	// PackageName overrides the name derived from the manifest.
	PackageName string
	// Version overrides the manifest version.
	Version string
	// Excludes are additional patterns on top of the defaults.
	Excludes []string
	// Force packages even when the manifest fails validation.
	Force bool
}

// Build walks the source tree in sorted order and writes the artifact
// atomically, replacing any previous build of the same version.
func (b *Builder) Build(ctx context.Context) (*Artifact, error) {
	if b.SourceDir == "" {
		return nil, fmt.Errorf("source directory is required")
	}
	sourceDir, err := filepath.Abs(b.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve source directory: %w", err)
	}
	info, err := os.Stat(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read source directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source %s is not a directory", b.SourceDir)
	}

	m, err := manifest.LoadDir(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load plugin manifest: %w", err)
	}
	if !b.Force {
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("refusing to package an invalid manifest: %w", err)
		}
	}

	packageName := b.PackageName
	if packageName == "" {
		packageName = m.PackageName()
	}
	if packageName == "" {
		return nil, fmt.Errorf("cannot derive a package name: manifest has no name")
	}
	version := b.Version
	if version == "" {
		version = m.Version
	}
	if version == "" {
		return nil, fmt.Errorf("cannot derive a version: manifest has no version")
	}

	distDir := b.DistDir
	if distDir == "" {
		distDir = filepath.Join(sourceDir, DefaultDistDir)
	}
	distDir, err = filepath.Abs(distDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve dist directory: %w", err)
	}
	if err := os.MkdirAll(distDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create dist directory: %w", err)
	}

	excludes := append(DefaultExcludes(), b.Excludes...)
	files, err := collectFiles(ctx, sourceDir, distDir, excludes)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("nothing to package in %s", b.SourceDir)
	}

	artifactPath := ArtifactPath(distDir, packageName, version)
	size, digest, err := writeZip(ctx, sourceDir, packageName, artifactPath, files)
	if err != nil {
		return nil, err
	}

	return &Artifact{
		Path:        artifactPath,
		PackageName: packageName,
		Version:     version,
		Size:        size,
		SHA256:      digest,
		FileCount:   len(files),
	}, nil
}

// collectFiles returns the slash-separated relative paths to package,
// sorted so the archive layout does not depend on directory order.
func collectFiles(ctx context.Context, sourceDir, distDir string, excludes []string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(sourceDir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if p == sourceDir {
			return nil
		}
		rel, err := filepath.Rel(sourceDir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if p == distDir || excluded(rel, excludes) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if excluded(rel, excludes) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", sourceDir, err)
	}
	sort.Strings(files)
	return files, nil
}

// excluded matches a pattern against the path's base name and against
// the full slash path. Hidden entries are always excluded.
func excluded(rel string, patterns []string) bool {
	base := path.Base(rel)
	if strings.HasPrefix(base, ".") {
		return true
	}
	for _, pattern := range patterns {
		if ok, _ := path.Match(pattern, base); ok {
			return true
		}
		if ok, _ := path.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// writeZip builds the archive in a temp file next to the destination and
// renames it into place, so a failed build never clobbers a good artifact.
func writeZip(ctx context.Context, sourceDir, packageName, artifactPath string, files []string) (int64, string, error) {
	tmp, err := os.CreateTemp(filepath.Dir(artifactPath), ".csd-build-*.zip")
	if err != nil {
		return 0, "", fmt.Errorf("failed to create temp artifact: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	hasher := sha256.New()
	zw := zip.NewWriter(io.MultiWriter(tmp, hasher))

	for _, rel := range files {
		if ctx.Err() != nil {
			tmp.Close()
			return 0, "", ctx.Err()
		}
		if err := addFile(zw, sourceDir, packageName, rel); err != nil {
			tmp.Close()
			return 0, "", err
		}
	}

	if err := zw.Close(); err != nil {
		tmp.Close()
		return 0, "", fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, "", fmt.Errorf("failed to close temp artifact: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return 0, "", fmt.Errorf("failed to set artifact permissions: %w", err)
	}
	if err := os.Rename(tmpPath, artifactPath); err != nil {
		return 0, "", fmt.Errorf("failed to move artifact into place: %w", err)
	}

	stat, err := os.Stat(artifactPath)
	if err != nil {
		return 0, "", fmt.Errorf("failed to stat artifact: %w", err)
	}
	return stat.Size(), hex.EncodeToString(hasher.Sum(nil)), nil
}

func addFile(zw *zip.Writer, sourceDir, packageName, rel string) error {
	full := filepath.Join(sourceDir, filepath.FromSlash(rel))
	info, err := os.Stat(full)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", rel, err)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("failed to build header for %s: %w", rel, err)
	}
	header.Name = path.Join(packageName, rel)
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to add %s to archive: %w", rel, err)
	}
	src, err := os.Open(full)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", rel, err)
	}
	defer src.Close()
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("failed to write %s to archive: %w", rel, err)
	}
	return nil
}
