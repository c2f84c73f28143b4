package manifest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestParseVersion_ValidatesInput tests version parsing with various inputs
func TestParseVersion_ValidatesInput(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expectError bool
		description string
	}{
		{
			name:        "SingleComponent_ShouldSucceed",
			input:       "3",
			expectError: false,
			description: "A bare major version is valid",
		},
		{
			name:        "TwoComponents_ShouldSucceed",
			input:       "3.28",
			expectError: false,
			description: "QGIS versions are usually major.minor",
		},
		{
			name:        "FourComponents_ShouldSucceed",
			input:       "1.2.3.4",
			expectError: false,
			description: "Up to four components are allowed",
		},
		{
			name:        "LeadingV_ShouldSucceed",
			input:       "v1.2.3",
			expectError: false,
			description: "Release tags often carry a v prefix",
		},
		{
			name:        "PreRelease_ShouldSucceed",
			input:       "0.4.0-beta1",
			expectError: false,
			description: "Pre-release suffixes are allowed",
		},
		{
			name:        "Empty_ShouldFail",
			input:       "",
			expectError: true,
			description: "Empty versions are rejected",
		},
		{
			name:        "Whitespace_ShouldFail",
			input:       "   ",
			expectError: true,
			description: "Whitespace-only versions are rejected",
		},
		{
			name:        "NonNumeric_ShouldFail",
			input:       "abc",
			expectError: true,
			description: "Components must be numbers",
		},
		{
			name:        "TooManyComponents_ShouldFail",
			input:       "1.2.3.4.5",
			expectError: true,
			description: "More than four components is rejected",
		},
		{
			name:        "EmptyComponent_ShouldFail",
			input:       "1..2",
			expectError: true,
			description: "Consecutive dots leave an empty component",
		},
		{
			name:        "EmptyPreRelease_ShouldFail",
			input:       "1.2-",
			expectError: true,
			description: "A dangling dash is not a pre-release",
		},
		{
			name:        "NegativeComponent_ShouldFail",
			input:       "-1.2",
			expectError: true,
			description: "A leading dash leaves no numeric part",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ParseVersion(tt.input)
			if tt.expectError {
				assert.Error(t, err, tt.description)
				assert.True(t, v.IsZero(), "failed parse should return the zero version")
			} else {
				require.NoError(t, err, tt.description)
				assert.Equal(t, strings.TrimSpace(tt.input), v.String(), "String() should preserve the input")
				assert.False(t, v.IsZero())
			}
		})
	}
}

// TestVersion_Compare_OrdersCorrectly tests version ordering semantics
func TestVersion_Compare_OrdersCorrectly(t *testing.T) {
	tests := []struct {
		name     string
		a        string
		b        string
		expected int
	}{
		{name: "Equal", a: "1.2.3", b: "1.2.3", expected: 0},
		{name: "MissingComponentsAreZero", a: "1.2", b: "1.2.0", expected: 0},
		{name: "TagPrefixIgnored", a: "v1.2.3", b: "1.2.3", expected: 0},
		{name: "MinorOrders", a: "1.2", b: "1.3", expected: -1},
		{name: "MajorBeatsMinor", a: "2.0", b: "1.9.9", expected: 1},
		{name: "PatchOrders", a: "1.2.4", b: "1.2.3", expected: 1},
		{name: "ReleaseBeatsPreRelease", a: "1.0.0", b: "1.0.0-beta1", expected: 1},
		{name: "PreReleasesOrderLexically", a: "1.0.0-alpha", b: "1.0.0-beta", expected: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := must(ParseVersion(tt.a))
			b := must(ParseVersion(tt.b))
			assert.Equal(t, tt.expected, a.Compare(b), "%s vs %s", tt.a, tt.b)
			assert.Equal(t, -tt.expected, b.Compare(a), "comparison must be antisymmetric")
		})
	}
}

// TestVersion_PropertyBased_CompareConsistency checks ordering invariants
func TestVersion_PropertyBased_CompareConsistency(t *testing.T) {
	genVersion := func(t *rapid.T, label string) Version {
		count := rapid.IntRange(1, 4).Draw(t, label+"Count")
		parts := make([]string, count)
		for i := range parts {
			parts[i] = fmt.Sprintf("%d", rapid.IntRange(0, 99).Draw(t, label+"Part"))
		}
		raw := strings.Join(parts, ".")
		if rapid.Bool().Draw(t, label+"Pre") {
			raw += "-rc" + fmt.Sprintf("%d", rapid.IntRange(1, 9).Draw(t, label+"PreNum"))
		}
		return must(ParseVersion(raw))
	}

	rapid.Check(t, func(t *rapid.T) {
		a := genVersion(t, "a")
		b := genVersion(t, "b")

		assert.Equal(t, 0, a.Compare(a), "a version must equal itself")
		assert.Equal(t, -b.Compare(a), a.Compare(b), "Compare must be antisymmetric")
	})
}

func must[T any](value T, err error) T {
	if err != nil {
		panic(err)
	}
	return value
}
