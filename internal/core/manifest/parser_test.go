package manifest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

const sampleManifest = `[general]
name=Cross Section Digitizer
qgisMinimumVersion=3.28
description=Digitize cross-section profiles from georeferenced raster images
version=1.2.0
author=CRESCENT
email=dev@example.org
about=Extracts profile geometry
    from scanned survey plots
    with pixel-to-plot calibration.
tracker=https://github.com/loicbachelot/cross-section-digitizer/issues
repository=https://github.com/loicbachelot/cross-section-digitizer
tags=profile, cross section, digitizing
homepage=https://example.org/csd
category=Raster
icon=icon.png
experimental=False
deprecated=False
hasProcessingProvider=no
`

// TestParse_FullManifest checks every known key survives parsing
func TestParse_FullManifest(t *testing.T) {
	m, err := Parse(strings.NewReader(sampleManifest))
	require.NoError(t, err)

	assert.Equal(t, "Cross Section Digitizer", m.Name)
	assert.Equal(t, "3.28", m.QGISMinimumVersion)
	assert.Equal(t, "Digitize cross-section profiles from georeferenced raster images", m.Description)
	assert.Equal(t, "1.2.0", m.Version)
	assert.Equal(t, "CRESCENT", m.Author)
	assert.Equal(t, "dev@example.org", m.Email)
	assert.Equal(t, "Extracts profile geometry\nfrom scanned survey plots\nwith pixel-to-plot calibration.", m.About)
	assert.Equal(t, "https://github.com/loicbachelot/cross-section-digitizer/issues", m.Tracker)
	assert.Equal(t, "https://github.com/loicbachelot/cross-section-digitizer", m.Repository)
	assert.Equal(t, "profile, cross section, digitizing", m.Tags)
	assert.Equal(t, "https://example.org/csd", m.Homepage)
	assert.Equal(t, "Raster", m.Category)
	assert.Equal(t, "icon.png", m.Icon)
	assert.False(t, m.Experimental.Bool())
	assert.True(t, m.Experimental.IsSet())
	assert.False(t, m.HasProcessingProvider.Bool())
	assert.Equal(t, "no", m.HasProcessingProvider.Raw())
	assert.False(t, m.Server.IsSet(), "absent flag should read as unset")
	assert.Empty(t, m.DuplicateKeys())
}

// TestParse_Dialect covers the configparser quirks the loader accepts
func TestParse_Dialect(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		check       func(t *testing.T, m *Manifest)
		description string
	}{
		{
			name:  "ColonSeparator_ShouldParse",
			input: "[general]\nname: Profile Tool\nversion: 0.1\n",
			check: func(t *testing.T, m *Manifest) {
				assert.Equal(t, "Profile Tool", m.Name)
				assert.Equal(t, "0.1", m.Version)
			},
			description: "Colon is a valid key/value separator",
		},
		{
			name:  "ValueContainingSeparators_ShouldStayIntact",
			input: "[general]\nhomepage=https://example.org/?a=b&c=d\n",
			check: func(t *testing.T, m *Manifest) {
				assert.Equal(t, "https://example.org/?a=b&c=d", m.Homepage)
			},
			description: "Only the first separator splits the line",
		},
		{
			name:  "Comments_ShouldBeSkipped",
			input: "[general]\n# a comment\nname=X\n; another comment\nversion=1.0\n",
			check: func(t *testing.T, m *Manifest) {
				assert.Equal(t, "X", m.Name)
				assert.Equal(t, "1.0", m.Version)
			},
			description: "Hash and semicolon lines are comments",
		},
		{
			name:  "CRLFLineEndings_ShouldParse",
			input: "[general]\r\nname=X\r\nversion=1.0\r\n",
			check: func(t *testing.T, m *Manifest) {
				assert.Equal(t, "X", m.Name)
				assert.Equal(t, "1.0", m.Version)
			},
			description: "Windows line endings are normalized",
		},
		{
			name:  "LeadingBOM_ShouldBeStripped",
			input: "\ufeff[general]\nname=X\n",
			check: func(t *testing.T, m *Manifest) {
				assert.Equal(t, "X", m.Name)
			},
			description: "A UTF-8 BOM must not break the first line",
		},
		{
			name:  "CaseInsensitiveKeys_ShouldMatch",
			input: "[general]\nNAME=X\nQgisMinimumVersion=3.22\n",
			check: func(t *testing.T, m *Manifest) {
				assert.Equal(t, "X", m.Name)
				assert.Equal(t, "3.22", m.QGISMinimumVersion)
			},
			description: "Key lookup ignores case",
		},
		{
			name:  "DuplicateKey_LastWins",
			input: "[general]\nname=First\nname=Second\n",
			check: func(t *testing.T, m *Manifest) {
				assert.Equal(t, "Second", m.Name)
				assert.Equal(t, []string{"name"}, m.DuplicateKeys())
			},
			description: "Later occurrences override earlier ones",
		},
		{
			name:  "UnknownKeys_GoToExtra",
			input: "[general]\nname=X\nplugin_dependencies=numpy\n",
			check: func(t *testing.T, m *Manifest) {
				assert.Equal(t, "numpy", m.Extra["plugin_dependencies"])
			},
			description: "Unknown keys are preserved for round-tripping",
		},
		{
			name:  "OtherSections_AreIgnored",
			input: "[general]\nname=X\n[advanced]\nname=Hidden\nsecret=1\n",
			check: func(t *testing.T, m *Manifest) {
				assert.Equal(t, "X", m.Name)
				assert.NotContains(t, m.Extra, "secret")
			},
			description: "Only [general] keys are read",
		},
		{
			name:  "BlankLineEndsMultilineValue",
			input: "[general]\nabout=first\n    second\n\nname=X\n",
			check: func(t *testing.T, m *Manifest) {
				assert.Equal(t, "first\nsecond", m.About)
				assert.Equal(t, "X", m.Name)
			},
			description: "A blank line terminates a continuation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Parse(strings.NewReader(tt.input))
			require.NoError(t, err, tt.description)
			tt.check(t, m)
		})
	}
}

// TestParse_RejectsMalformedInput tests parser error handling
func TestParse_RejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantErr     string
		description string
	}{
		{
			name:        "EmptyInput_ShouldFail",
			input:       "",
			wantErr:     "no [general] section",
			description: "An empty file has no [general] section",
		},
		{
			name:        "MissingGeneralSection_ShouldFail",
			input:       "[metadata]\nname=X\n",
			wantErr:     "no [general] section",
			description: "Other sections do not substitute for [general]",
		},
		{
			name:        "KeyBeforeSection_ShouldFail",
			input:       "name=X\n[general]\n",
			wantErr:     "before any section header",
			description: "Keys must live inside a section",
		},
		{
			name:        "MalformedSectionHeader_ShouldFail",
			input:       "[general\nname=X\n",
			wantErr:     "malformed section header",
			description: "Unterminated headers are rejected",
		},
		{
			name:        "LineWithoutSeparator_ShouldFail",
			input:       "[general]\njustaword\n",
			wantErr:     "expected key=value",
			description: "A bare word is not a key/value pair",
		},
		{
			name:        "ContinuationWithoutKey_ShouldFail",
			input:       "[general]\n    dangling\n",
			wantErr:     "continuation line without a key",
			description: "Indented lines need a preceding key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			require.Error(t, err, tt.description)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// TestManifest_RoundTrip verifies parse -> write -> parse is lossless
func TestManifest_RoundTrip(t *testing.T) {
	original, err := Parse(strings.NewReader(sampleManifest))
	require.NoError(t, err)
	original.Extra["plugin_dependencies"] = "numpy"

	var buf bytes.Buffer
	require.NoError(t, original.Write(&buf))

	reparsed, err := Parse(&buf)
	require.NoError(t, err)

	assert.Equal(t, original.Name, reparsed.Name)
	assert.Equal(t, original.QGISMinimumVersion, reparsed.QGISMinimumVersion)
	assert.Equal(t, original.Description, reparsed.Description)
	assert.Equal(t, original.About, reparsed.About, "multi-line values must survive the round trip")
	assert.Equal(t, original.Version, reparsed.Version)
	assert.Equal(t, original.Author, reparsed.Author)
	assert.Equal(t, original.Email, reparsed.Email)
	assert.Equal(t, original.Tracker, reparsed.Tracker)
	assert.Equal(t, original.Repository, reparsed.Repository)
	assert.Equal(t, original.Tags, reparsed.Tags)
	assert.Equal(t, original.Homepage, reparsed.Homepage)
	assert.Equal(t, original.Category, reparsed.Category)
	assert.Equal(t, original.Icon, reparsed.Icon)
	assert.Equal(t, original.Experimental.Raw(), reparsed.Experimental.Raw())
	assert.Equal(t, original.HasProcessingProvider.Raw(), reparsed.HasProcessingProvider.Raw())
	assert.Equal(t, original.Extra, reparsed.Extra)
}

// TestManifest_Write_CanonicalOrder checks the writer's key ordering
func TestManifest_Write_CanonicalOrder(t *testing.T) {
	m := New()
	m.Name = "X"
	m.Version = "1.0"
	m.QGISMinimumVersion = "3.22"
	m.Description = "d"
	m.Author = "a"
	m.Email = "a@b.c"
	m.Extra["zzz_custom"] = "1"

	var buf bytes.Buffer
	require.NoError(t, m.Write(&buf))
	out := buf.String()

	require.True(t, strings.HasPrefix(out, "[general]\n"), "section header must come first")

	positions := []string{"name=", "qgisMinimumVersion=", "description=", "version=", "author=", "email=", "zzz_custom="}
	last := -1
	for _, needle := range positions {
		idx := strings.Index(out, needle)
		require.GreaterOrEqual(t, idx, 0, "missing key %q in output", needle)
		assert.Greater(t, idx, last, "key %q out of canonical order", needle)
		last = idx
	}

	assert.NotContains(t, out, "experimental=", "unset flags must be omitted")
}

// TestLoadDir_ReadsMetadataFile tests filesystem loading
func TestLoadDir_ReadsMetadataFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(sampleManifest), 0644))

	m, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, "Cross Section Digitizer", m.Name)

	_, err = LoadDir(filepath.Join(dir, "missing"))
	assert.Error(t, err, "missing metadata.txt should surface as an error")
}

// TestManifest_PropertyBased_WriteParseRoundTrip feeds generated values
// through Write and back through Parse
func TestManifest_PropertyBased_WriteParseRoundTrip(t *testing.T) {
	// Lines start and end on a visible character because the parser
	// trims surrounding whitespace, and never start with a comment
	// marker because indented comment lines are dropped.
	genLine := rapid.StringMatching(`[A-Za-z0-9][A-Za-z0-9 ,.=:/_()-]{0,38}[A-Za-z0-9]`)
	genValue := rapid.Custom(func(t *rapid.T) string {
		lines := rapid.SliceOfN(genLine, 1, 4).Draw(t, "lines")
		return strings.Join(lines, "\n")
	})

	rapid.Check(t, func(t *rapid.T) {
		m := New()
		m.Name = genLine.Draw(t, "name")
		m.Description = genLine.Draw(t, "description")
		m.About = genValue.Draw(t, "about")
		m.Version = fmt.Sprintf("%d.%d.%d",
			rapid.IntRange(0, 99).Draw(t, "major"),
			rapid.IntRange(0, 99).Draw(t, "minor"),
			rapid.IntRange(0, 99).Draw(t, "patch"))
		m.Author = genLine.Draw(t, "author")
		m.Tags = genLine.Draw(t, "tags")

		var buf bytes.Buffer
		require.NoError(t, m.Write(&buf))

		reparsed, err := Parse(&buf)
		require.NoError(t, err)

		assert.Equal(t, m.Name, reparsed.Name)
		assert.Equal(t, m.Description, reparsed.Description)
		assert.Equal(t, m.About, reparsed.About)
		assert.Equal(t, m.Version, reparsed.Version)
		assert.Equal(t, m.Author, reparsed.Author)
		assert.Equal(t, m.Tags, reparsed.Tags)
	})
}
