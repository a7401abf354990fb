// Package versioning compares the MAJOR.MINOR.PATCH version strings carried by
// platform content (fromversion/toversion and pack currentVersion).
package versioning

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Platform bounds used when a content item leaves an end of its version range open.
const (
	Floor   = "5.0.0"
	Ceiling = "99.99.99"
)

// Comparison is the result of comparing two versions.
type Comparison int

const (
	ComparisonUnknown Comparison = iota
	ComparisonLess
	ComparisonEqual
	ComparisonGreater
)

var compactPattern = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)$`)

// Version is a parsed compact version.
type Version struct {
	Major int
	Minor int
	Patch int
	raw   string
}

// Parse parses a compact MAJOR.MINOR.PATCH version string.
func Parse(s string) (Version, error) {
	trimmed := strings.TrimSpace(s)
	m := compactPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return Version{}, fmt.Errorf("invalid version %q: expected MAJOR.MINOR.PATCH", s)
	}
	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	patch, _ := strconv.Atoi(m[3])
	return Version{Major: major, Minor: minor, Patch: patch, raw: trimmed}, nil
}

// MustParse parses a version known to be valid at compile time.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// ParseOrDefault parses s, falling back to def when s is empty.
func ParseOrDefault(s, def string) (Version, error) {
	if strings.TrimSpace(s) == "" {
		return Parse(def)
	}
	return Parse(s)
}

// String returns the original version string.
func (v Version) String() string {
	if v.raw != "" {
		return v.raw
	}
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// IsZero reports whether the version was never parsed.
func (v Version) IsZero() bool {
	return v.raw == "" && v.Major == 0 && v.Minor == 0 && v.Patch == 0
}

// Compare returns the ordering of v relative to other.
func (v Version) Compare(other Version) Comparison {
	for _, pair := range [][2]int{{v.Major, other.Major}, {v.Minor, other.Minor}, {v.Patch, other.Patch}} {
		if pair[0] < pair[1] {
			return ComparisonLess
		}
		if pair[0] > pair[1] {
			return ComparisonGreater
		}
	}
	return ComparisonEqual
}

// LessThan reports v < other.
func (v Version) LessThan(other Version) bool {
	return v.Compare(other) == ComparisonLess
}

// GreaterThan reports v > other.
func (v Version) GreaterThan(other Version) bool {
	return v.Compare(other) == ComparisonGreater
}

// AtLeast reports v >= other.
func (v Version) AtLeast(other Version) bool {
	return v.Compare(other) != ComparisonLess
}

// BumpPatch returns the version with its patch component incremented. Pack
// version-raise checks use this to name the expected next release.
func (v Version) BumpPatch() Version {
	return Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}
}
