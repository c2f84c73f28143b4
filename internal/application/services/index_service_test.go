package services

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loicbachelot/cross-section-digitizer/internal/core/archive"
	"github.com/loicbachelot/cross-section-digitizer/internal/core/qgisrepo"
)

// TestIndexService_Rebuild_ScansZips tests index generation from a
// repository directory
func TestIndexService_Rebuild_ScansZips(t *testing.T) {
	repoDir := t.TempDir()
	packagesDir := filepath.Join(repoDir, "packages")
	require.NoError(t, os.MkdirAll(packagesDir, 0o755))

	pluginDir := writePluginFixture(t)
	_, err := (&archive.Builder{SourceDir: pluginDir, DistDir: packagesDir}).Build(context.Background())
	require.NoError(t, err)

	// A second version of the same plugin.
	meta := strings.Replace(fixtureMetadata, "version=1.2.0", "version=1.3.0", 1)
	require.NoError(t, os.WriteFile(filepath.Join(pluginDir, "metadata.txt"), []byte(meta), 0o644))
	_, err = (&archive.Builder{SourceDir: pluginDir, DistDir: packagesDir}).Build(context.Background())
	require.NoError(t, err)

	// A zip that is not a plugin package.
	garbage := filepath.Join(packagesDir, "notes.zip")
	f, err := os.Create(garbage)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("notes.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("not a plugin"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	svc := NewIndexService(noopLogger{})
	result, err := svc.Rebuild(context.Background(), RebuildOptions{
		Dir:     repoDir,
		BaseURL: "https://plugins.example.org",
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Scanned)
	assert.Equal(t, []string{"packages/notes.zip"}, result.Skipped)
	require.Len(t, result.Index.Plugins, 2)
	assert.Equal(t, "1.3.0", result.Index.Plugins[0].Version, "newest version sorts first")
	assert.Equal(t, "https://plugins.example.org/packages/cross_section_digitizer.1.3.0.zip",
		result.Index.Plugins[0].DownloadURL)

	// The index landed next to the zips and parses back.
	loaded, err := qgisrepo.LoadFile(result.IndexPath)
	require.NoError(t, err)
	assert.Len(t, loaded.Plugins, 2)
}

// TestIndexService_Rebuild_RelativeURLsWithoutBase tests the default URL form
func TestIndexService_Rebuild_RelativeURLsWithoutBase(t *testing.T) {
	repoDir := t.TempDir()
	pluginDir := writePluginFixture(t)
	_, err := (&archive.Builder{SourceDir: pluginDir, DistDir: repoDir}).Build(context.Background())
	require.NoError(t, err)

	svc := NewIndexService(noopLogger{})
	result, err := svc.Rebuild(context.Background(), RebuildOptions{Dir: repoDir})
	require.NoError(t, err)

	require.Len(t, result.Index.Plugins, 1)
	assert.Equal(t, "cross_section_digitizer.1.2.0.zip", result.Index.Plugins[0].DownloadURL)
}

// TestIndexService_Rebuild_ErrorCases tests input validation
func TestIndexService_Rebuild_ErrorCases(t *testing.T) {
	svc := NewIndexService(noopLogger{})

	_, err := svc.Rebuild(context.Background(), RebuildOptions{})
	require.Error(t, err)

	_, err = svc.Rebuild(context.Background(), RebuildOptions{Dir: "/nonexistent/repo"})
	require.Error(t, err)

	file := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	_, err = svc.Rebuild(context.Background(), RebuildOptions{Dir: file})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}
