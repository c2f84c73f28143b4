package manifest

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a value object for dotted plugin and QGIS versions such as
// "3.28", "1.0.2" or "0.4.0-beta1". A leading "v" is accepted so release
// tags compare cleanly against manifest versions.
type Version struct {
	parts []int
	pre   string
	raw   string
}

// ParseVersion parses a version string with validation.
func ParseVersion(raw string) (Version, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Version{}, fmt.Errorf("version cannot be empty")
	}

	num := s
	if len(num) > 1 && (num[0] == 'v' || num[0] == 'V') && num[1] >= '0' && num[1] <= '9' {
		num = num[1:]
	}

	pre := ""
	if i := strings.IndexByte(num, '-'); i >= 0 {
		num, pre = num[:i], num[i+1:]
		if pre == "" {
			return Version{}, fmt.Errorf("invalid version %q: empty pre-release suffix", raw)
		}
	}

	fields := strings.Split(num, ".")
	if len(fields) > 4 {
		return Version{}, fmt.Errorf("invalid version %q: more than 4 components", raw)
	}

	parts := make([]int, 0, len(fields))
	for _, field := range fields {
		n, err := strconv.Atoi(field)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("invalid version %q: component %q is not a number", raw, field)
		}
		parts = append(parts, n)
	}

	return Version{parts: parts, pre: pre, raw: s}, nil
}

// String returns the version as it was written.
func (v Version) String() string {
	return v.raw
}

// IsZero reports whether the version is the uninitialized zero value.
func (v Version) IsZero() bool {
	return len(v.parts) == 0
}

// PreRelease returns the suffix after "-", if any.
func (v Version) PreRelease() string {
	return v.pre
}

// Compare orders two versions: -1 if v is older than other, 0 if equal,
// 1 if newer. Missing components count as zero, so "1.2" equals "1.2.0".
// A release is newer than any pre-release with the same number.
func (v Version) Compare(other Version) int {
	n := len(v.parts)
	if len(other.parts) > n {
		n = len(other.parts)
	}
	for i := 0; i < n; i++ {
		a, b := 0, 0
		if i < len(v.parts) {
			a = v.parts[i]
		}
		if i < len(other.parts) {
			b = other.parts[i]
		}
		if a != b {
			if a < b {
				return -1
			}
			return 1
		}
	}

	switch {
	case v.pre == other.pre:
		return 0
	case v.pre == "":
		return 1
	case other.pre == "":
		return -1
	case v.pre < other.pre:
		return -1
	default:
		return 1
	}
}
