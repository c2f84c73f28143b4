package manifest

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// requiredKeys must be present with non-empty values. The first six are
// what the QGIS plugin loader demands, the rest is what the official
// repository rejects uploads without.
var requiredKeys = []string{
	KeyName,
	KeyQGISMinimumVersion,
	KeyDescription,
	KeyVersion,
	KeyAuthor,
	KeyEmail,
	KeyAbout,
	KeyTracker,
	KeyRepository,
}

// validCategories are the plugin menu categories the manager accepts.
var validCategories = []string{"Plugins", "Raster", "Vector", "Database", "Mesh", "Web"}

// Validate checks the manifest against the rules enforced on plugin
// upload. All violations are collected into a single error so a user can
// fix everything in one pass.
func (m *Manifest) Validate() error {
	var errs *multierror.Error

	for _, key := range requiredKeys {
		if value, _ := m.get(key); strings.TrimSpace(value) == "" {
			errs = multierror.Append(errs, fmt.Errorf("required key %q is missing or empty", key))
		}
	}

	minVersion := Version{}
	if m.QGISMinimumVersion != "" {
		v, err := ParseVersion(m.QGISMinimumVersion)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", KeyQGISMinimumVersion, err))
		} else {
			minVersion = v
		}
	}
	if m.QGISMaximumVersion != "" {
		v, err := ParseVersion(m.QGISMaximumVersion)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", KeyQGISMaximumVersion, err))
		} else if !minVersion.IsZero() && v.Compare(minVersion) < 0 {
			errs = multierror.Append(errs, fmt.Errorf("%s %q is below %s %q",
				KeyQGISMaximumVersion, m.QGISMaximumVersion, KeyQGISMinimumVersion, m.QGISMinimumVersion))
		}
	}
	if m.Version != "" {
		if _, err := ParseVersion(m.Version); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", KeyVersion, err))
		}
	}

	if m.Email != "" && !looksLikeEmail(m.Email) {
		errs = multierror.Append(errs, fmt.Errorf("%s %q is not a valid address", KeyEmail, m.Email))
	}

	urlKeys := []struct {
		key   string
		value string
	}{
		{KeyTracker, m.Tracker},
		{KeyRepository, m.Repository},
		{KeyHomepage, m.Homepage},
	}
	for _, entry := range urlKeys {
		if entry.value == "" {
			continue
		}
		if err := checkHTTPURL(entry.value); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", entry.key, err))
		}
	}

	if m.Category != "" {
		valid := false
		for _, category := range validCategories {
			if m.Category == category {
				valid = true
				break
			}
		}
		if !valid {
			errs = multierror.Append(errs, fmt.Errorf("%s %q must be one of: %s",
				KeyCategory, m.Category, strings.Join(validCategories, ", ")))
		}
	}

	flags := []struct {
		key  string
		flag Flag
	}{
		{KeyExperimental, m.Experimental},
		{KeyDeprecated, m.Deprecated},
		{KeyServer, m.Server},
		{KeyHasProcessingProvider, m.HasProcessingProvider},
	}
	for _, entry := range flags {
		if !entry.flag.IsSet() {
			continue
		}
		if _, err := parseBool(entry.flag.Raw()); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", entry.key, err))
		}
	}

	return errs.ErrorOrNil()
}

// Warnings reports conditions that do not block a release but usually
// indicate a mistake.
func (m *Manifest) Warnings() []string {
	var warnings []string

	if m.Icon == "" {
		warnings = append(warnings, "no icon set, the plugin manager will show a placeholder")
	}
	if m.Homepage == "" {
		warnings = append(warnings, "no homepage set")
	}
	if m.Tags == "" {
		warnings = append(warnings, "no tags set, the plugin will be hard to find in search")
	}
	if m.Category == "" {
		warnings = append(warnings, "no category set, defaulting to Plugins")
	}
	if m.Experimental.Bool() && m.Deprecated.Bool() {
		warnings = append(warnings, "plugin is marked both experimental and deprecated")
	} else if m.Deprecated.Bool() {
		warnings = append(warnings, "plugin is marked deprecated, the repository hides it by default")
	}
	for _, key := range m.duplicates {
		warnings = append(warnings, fmt.Sprintf("key %q appears more than once, the last value wins", key))
	}

	return warnings
}

func looksLikeEmail(s string) bool {
	at := strings.IndexByte(s, '@')
	if at <= 0 || at == len(s)-1 {
		return false
	}
	return !strings.ContainsAny(s, " \t")
}

func checkHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL %q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("URL %q has no host", raw)
	}
	return nil
}
