// Package qgisrepo models the plugins.xml index a QGIS plugin repository
// serves next to its zip files. The plugin manager reads this index to
// discover available plugins and their download URLs.
package qgisrepo

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/loicbachelot/cross-section-digitizer/internal/core/manifest"
)

// IndexFileName is the index file the QGIS plugin manager fetches.
const IndexFileName = "plugins.xml"

// dateFormat is the date form the official plugin repository uses.
const dateFormat = "2006-01-02"

// Plugin is one <pyqgis_plugin> entry. Boolean fields are spelled
// True/False the way the official repository emits them.
type Plugin struct {
	XMLName            xml.Name `xml:"pyqgis_plugin"`
	Name               string   `xml:"name,attr"`
	Version            string   `xml:"version,attr"`
	Description        string   `xml:"description"`
	About              string   `xml:"about,omitempty"`
	QGISMinimumVersion string   `xml:"qgis_minimum_version"`
	QGISMaximumVersion string   `xml:"qgis_maximum_version,omitempty"`
	Homepage           string   `xml:"homepage,omitempty"`
	FileName           string   `xml:"file_name"`
	Icon               string   `xml:"icon,omitempty"`
	AuthorName         string   `xml:"author_name"`
	DownloadURL        string   `xml:"download_url"`
	UploadedBy         string   `xml:"uploaded_by,omitempty"`
	CreateDate         string   `xml:"create_date,omitempty"`
	UpdateDate         string   `xml:"update_date,omitempty"`
	Experimental       string   `xml:"experimental"`
	Deprecated         string   `xml:"deprecated"`
	Tracker            string   `xml:"tracker,omitempty"`
	Repository         string   `xml:"repository,omitempty"`
	Tags               string   `xml:"tags,omitempty"`
	Server             string   `xml:"server,omitempty"`
}

// NewPlugin builds an index entry from a parsed manifest and the
// artifact it points at.
func NewPlugin(m *manifest.Manifest, fileName, downloadURL string, now time.Time) Plugin {
	date := now.Format(dateFormat)
	p := Plugin{
		Name:               m.Name,
		Version:            m.Version,
		Description:        m.Description,
		About:              m.About,
		QGISMinimumVersion: m.QGISMinimumVersion,
		QGISMaximumVersion: m.QGISMaximumVersion,
		Homepage:           m.Homepage,
		FileName:           fileName,
		Icon:               m.Icon,
		AuthorName:         m.Author,
		DownloadURL:        downloadURL,
		CreateDate:         date,
		UpdateDate:         date,
		Experimental:       boolString(m.Experimental.Bool()),
		Deprecated:         boolString(m.Deprecated.Bool()),
		Tracker:            m.Tracker,
		Repository:         m.Repository,
		Tags:               m.Tags,
	}
	if m.Server.Bool() {
		p.Server = boolString(true)
	}
	return p
}

func boolString(v bool) string {
	if v {
		return "True"
	}
	return "False"
}

// Index is the <plugins> document.
type Index struct {
	XMLName xml.Name `xml:"plugins"`
	Plugins []Plugin `xml:"pyqgis_plugin"`
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{}
}

// Upsert inserts the entry, replacing any existing entry with the same
// name and version. A replaced entry keeps its original create_date so
// republishing does not rewrite history. Entries stay sorted by name,
// then by descending version.
func (idx *Index) Upsert(p Plugin) {
	for i, existing := range idx.Plugins {
		if existing.Name == p.Name && existing.Version == p.Version {
			if existing.CreateDate != "" {
				p.CreateDate = existing.CreateDate
			}
			idx.Plugins[i] = p
			idx.sort()
			return
		}
	}
	idx.Plugins = append(idx.Plugins, p)
	idx.sort()
}

// Find returns the entry with the given name and version, nil if absent.
func (idx *Index) Find(name, version string) *Plugin {
	for i := range idx.Plugins {
		if idx.Plugins[i].Name == name && idx.Plugins[i].Version == version {
			return &idx.Plugins[i]
		}
	}
	return nil
}

// Remove drops the entry with the given name and version, reporting
// whether anything was removed.
func (idx *Index) Remove(name, version string) bool {
	for i := range idx.Plugins {
		if idx.Plugins[i].Name == name && idx.Plugins[i].Version == version {
			idx.Plugins = append(idx.Plugins[:i], idx.Plugins[i+1:]...)
			return true
		}
	}
	return false
}

func (idx *Index) sort() {
	sort.SliceStable(idx.Plugins, func(i, j int) bool {
		if idx.Plugins[i].Name != idx.Plugins[j].Name {
			return idx.Plugins[i].Name < idx.Plugins[j].Name
		}
		vi, errI := manifest.ParseVersion(idx.Plugins[i].Version)
		vj, errJ := manifest.ParseVersion(idx.Plugins[j].Version)
		if errI != nil || errJ != nil {
			return idx.Plugins[i].Version > idx.Plugins[j].Version
		}
		return vi.Compare(vj) > 0
	})
}

// Parse reads a plugins.xml document.
func Parse(r io.Reader) (*Index, error) {
	var idx Index
	if err := xml.NewDecoder(r).Decode(&idx); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", IndexFileName, err)
	}
	return &idx, nil
}

// Write emits the index as indented XML with the standard header.
func (idx *Index) Write(w io.Writer) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("failed to write %s: %w", IndexFileName, err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(idx); err != nil {
		return fmt.Errorf("failed to encode %s: %w", IndexFileName, err)
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return fmt.Errorf("failed to write %s: %w", IndexFileName, err)
	}
	return nil
}

// LoadFile reads an index from disk.
func LoadFile(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// SaveFile writes the index to disk.
func (idx *Index) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := idx.Write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}
