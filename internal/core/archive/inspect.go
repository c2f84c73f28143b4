package archive

import (
	"archive/zip"
	"fmt"
	"strings"

	"github.com/loicbachelot/cross-section-digitizer/internal/core/manifest"
)

// ReadManifest opens a plugin zip and parses the metadata.txt sitting
// directly under its top-level package directory. It returns the parsed
// manifest and the package directory name.
func ReadManifest(zipPath string) (*manifest.Manifest, string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open %s: %w", zipPath, err)
	}
	defer r.Close()

	for _, f := range r.File {
		parts := strings.Split(f.Name, "/")
		if len(parts) != 2 || parts[1] != manifest.FileName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, "", fmt.Errorf("failed to read %s from %s: %w", f.Name, zipPath, err)
		}
		m, err := manifest.Parse(rc)
		rc.Close()
		if err != nil {
			return nil, "", fmt.Errorf("invalid manifest in %s: %w", zipPath, err)
		}
		return m, parts[0], nil
	}
	return nil, "", fmt.Errorf("no %s found under a top-level directory in %s", manifest.FileName, zipPath)
}
