package manifest

import (
	"fmt"
	"strings"
)

// FileName is the manifest file QGIS expects at the root of every plugin.
const FileName = "metadata.txt"

// Canonical key names as they appear in metadata.txt. Lookups are
// case-insensitive but these spellings are used when writing.
const (
	KeyName                  = "name"
	KeyQGISMinimumVersion    = "qgisMinimumVersion"
	KeyQGISMaximumVersion    = "qgisMaximumVersion"
	KeyDescription           = "description"
	KeyAbout                 = "about"
	KeyVersion               = "version"
	KeyAuthor                = "author"
	KeyEmail                 = "email"
	KeyChangelog             = "changelog"
	KeyExperimental          = "experimental"
	KeyDeprecated            = "deprecated"
	KeyTags                  = "tags"
	KeyHomepage              = "homepage"
	KeyRepository            = "repository"
	KeyTracker               = "tracker"
	KeyIcon                  = "icon"
	KeyCategory              = "category"
	KeyServer                = "server"
	KeyHasProcessingProvider = "hasProcessingProvider"
)

// canonicalKeys defines the order keys are written in.
var canonicalKeys = []string{
	KeyName,
	KeyQGISMinimumVersion,
	KeyQGISMaximumVersion,
	KeyDescription,
	KeyAbout,
	KeyVersion,
	KeyAuthor,
	KeyEmail,
	KeyChangelog,
	KeyExperimental,
	KeyDeprecated,
	KeyTags,
	KeyHomepage,
	KeyRepository,
	KeyTracker,
	KeyIcon,
	KeyCategory,
	KeyServer,
	KeyHasProcessingProvider,
}

// Flag is a boolean manifest value that remembers the raw spelling used
// in the file and whether the key was present at all. QGIS treats an
// absent flag as false.
type Flag struct {
	raw string
	set bool
}

// NewFlag creates a flag with the canonical True/False spelling.
func NewFlag(value bool) Flag {
	if value {
		return Flag{raw: "True", set: true}
	}
	return Flag{raw: "False", set: true}
}

// parseBool interprets a raw flag value the way configparser does.
func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "yes", "true", "on":
		return true, nil
	case "0", "no", "false", "off":
		return false, nil
	default:
		return false, fmt.Errorf("not a boolean value: %q", raw)
	}
}

// Bool returns the flag value, treating unset or unparseable values as false.
func (f Flag) Bool() bool {
	if !f.set {
		return false
	}
	value, err := parseBool(f.raw)
	if err != nil {
		return false
	}
	return value
}

// IsSet reports whether the key was present in the manifest.
func (f Flag) IsSet() bool {
	return f.set
}

// Raw returns the spelling as it appeared in the file.
func (f Flag) Raw() string {
	return f.raw
}

// Manifest is a parsed metadata.txt. Known keys map to struct fields,
// anything else is kept in Extra so a round trip does not lose data.
type Manifest struct {
	Name               string
	QGISMinimumVersion string
	QGISMaximumVersion string
	Description        string
	About              string
	Version            string
	Author             string
	Email              string
	Changelog          string
	Tags               string
	Homepage           string
	Repository         string
	Tracker            string
	Icon               string
	Category           string

	Experimental          Flag
	Deprecated            Flag
	Server                Flag
	HasProcessingProvider Flag

	// Extra holds keys outside the known schema, with lowercased names.
	Extra map[string]string

	duplicates []string
}

// New returns an empty manifest ready to be filled in.
func New() *Manifest {
	return &Manifest{Extra: make(map[string]string)}
}

// set stores a value under a case-insensitive key.
func (m *Manifest) set(key, value string) {
	switch strings.ToLower(key) {
	case "name":
		m.Name = value
	case "qgisminimumversion":
		m.QGISMinimumVersion = value
	case "qgismaximumversion":
		m.QGISMaximumVersion = value
	case "description":
		m.Description = value
	case "about":
		m.About = value
	case "version":
		m.Version = value
	case "author":
		m.Author = value
	case "email":
		m.Email = value
	case "changelog":
		m.Changelog = value
	case "tags":
		m.Tags = value
	case "homepage":
		m.Homepage = value
	case "repository":
		m.Repository = value
	case "tracker":
		m.Tracker = value
	case "icon":
		m.Icon = value
	case "category":
		m.Category = value
	case "experimental":
		m.Experimental = Flag{raw: value, set: true}
	case "deprecated":
		m.Deprecated = Flag{raw: value, set: true}
	case "server":
		m.Server = Flag{raw: value, set: true}
	case "hasprocessingprovider":
		m.HasProcessingProvider = Flag{raw: value, set: true}
	default:
		if m.Extra == nil {
			m.Extra = make(map[string]string)
		}
		m.Extra[strings.ToLower(key)] = value
	}
}

// get returns the current value for a case-insensitive key and whether
// the key belongs to the known schema. Unset flags read as empty.
func (m *Manifest) get(key string) (string, bool) {
	switch strings.ToLower(key) {
	case "name":
		return m.Name, true
	case "qgisminimumversion":
		return m.QGISMinimumVersion, true
	case "qgismaximumversion":
		return m.QGISMaximumVersion, true
	case "description":
		return m.Description, true
	case "about":
		return m.About, true
	case "version":
		return m.Version, true
	case "author":
		return m.Author, true
	case "email":
		return m.Email, true
	case "changelog":
		return m.Changelog, true
	case "tags":
		return m.Tags, true
	case "homepage":
		return m.Homepage, true
	case "repository":
		return m.Repository, true
	case "tracker":
		return m.Tracker, true
	case "icon":
		return m.Icon, true
	case "category":
		return m.Category, true
	case "experimental":
		return m.Experimental.raw, true
	case "deprecated":
		return m.Deprecated.raw, true
	case "server":
		return m.Server.raw, true
	case "hasprocessingprovider":
		return m.HasProcessingProvider.raw, true
	default:
		value, ok := m.Extra[strings.ToLower(key)]
		return value, ok
	}
}

// PackageName derives the Python package directory name from the plugin
// name: lowercased, word separators collapsed to single underscores.
func (m *Manifest) PackageName() string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(m.Name)) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_' || r == '.':
			pendingSep = true
		}
	}
	return b.String()
}

// TagList splits the comma-separated tags value into trimmed entries.
func (m *Manifest) TagList() []string {
	if strings.TrimSpace(m.Tags) == "" {
		return nil
	}
	var tags []string
	for _, tag := range strings.Split(m.Tags, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// PluginVersion parses the version key.
func (m *Manifest) PluginVersion() (Version, error) {
	return ParseVersion(m.Version)
}

// DuplicateKeys lists keys that appeared more than once during parsing.
// For each duplicate the last occurrence won.
func (m *Manifest) DuplicateKeys() []string {
	return m.duplicates
}
