package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoGeneralSection is returned when a manifest has no [general]
// section, which makes QGIS refuse to load the plugin.
var ErrNoGeneralSection = errors.New("manifest has no [general] section")

// Parse reads a metadata.txt manifest from r.
//
// The dialect is the one Python's configparser gives QGIS: a [general]
// section of key=value pairs (":" is accepted as separator too), full-line
// comments starting with "#" or ";", and indented lines that continue the
// previous value. Keys are case-insensitive. Sections other than
// [general] are skipped.
func Parse(r io.Reader) (*Manifest, error) {
	m := New()
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		section    string
		sawGeneral bool
		lastKey    string
		lineNo     int
	)

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if lineNo == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		line = strings.TrimRight(line, "\r")

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			// A blank line ends any multi-line value.
			lastKey = ""
			continue
		}
		if trimmed[0] == '#' || trimmed[0] == ';' {
			continue
		}

		// Indented lines continue the previous value.
		if line[0] == ' ' || line[0] == '\t' {
			if section != "general" {
				continue
			}
			if lastKey == "" {
				return nil, fmt.Errorf("line %d: continuation line without a key", lineNo)
			}
			prev, _ := m.get(lastKey)
			m.set(lastKey, prev+"\n"+trimmed)
			continue
		}

		if strings.HasPrefix(trimmed, "[") {
			if !strings.HasSuffix(trimmed, "]") || len(trimmed) < 3 {
				return nil, fmt.Errorf("line %d: malformed section header %q", lineNo, trimmed)
			}
			section = strings.ToLower(strings.TrimSpace(trimmed[1 : len(trimmed)-1]))
			if section == "general" {
				sawGeneral = true
			}
			lastKey = ""
			continue
		}

		if section == "" {
			return nil, fmt.Errorf("line %d: key before any section header", lineNo)
		}
		if section != "general" {
			continue
		}

		key, value, err := splitKeyValue(trimmed)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		lowered := strings.ToLower(key)
		if seen[lowered] {
			m.duplicates = append(m.duplicates, lowered)
		}
		seen[lowered] = true

		m.set(key, value)
		lastKey = lowered
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	if !sawGeneral {
		return nil, ErrNoGeneralSection
	}

	return m, nil
}

// splitKeyValue splits a line at the first "=" or ":", whichever comes
// first, so values containing either character stay intact.
func splitKeyValue(line string) (key, value string, err error) {
	eq := strings.IndexByte(line, '=')
	co := strings.IndexByte(line, ':')

	sep := eq
	if sep < 0 || (co >= 0 && co < sep) {
		sep = co
	}
	if sep < 0 {
		return "", "", fmt.Errorf("expected key=value, got %q", line)
	}

	key = strings.TrimSpace(line[:sep])
	if key == "" {
		return "", "", fmt.Errorf("empty key in line %q", line)
	}
	return key, strings.TrimSpace(line[sep+1:]), nil
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()

	m, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return m, nil
}

// LoadDir reads the metadata.txt inside a plugin directory.
func LoadDir(dir string) (*Manifest, error) {
	return Load(filepath.Join(dir, FileName))
}
